// Package scoring validates and sanitizes leaderboard submissions.
package scoring

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/povelc/portfolio/internal/domain/model"
)

// Default limits.
const (
	DefaultMaxTime       = 300.0
	DefaultMaxNameLength = 50
)

// Sentinel errors.
var (
	ErrInvalidScore = errors.New("invalid score data")
	ErrEmptyName    = errors.New("player name is empty")
	ErrTimeRange    = errors.New("time out of range")
)

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithMaxTime sets the inclusive upper bound for times.
func WithMaxTime(maxTime float64) Option {
	return func(v *Validator) {
		if maxTime > 0 {
			v.maxTime = maxTime
		}
	}
}

// WithMaxNameLength sets the name truncation length in characters.
func WithMaxNameLength(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxNameLength = n
		}
	}
}

// Validator checks candidate times and sanitizes names.
type Validator struct {
	maxTime       float64
	maxNameLength int
	timeRule      string
	validate      *validator.Validate
}

// New creates a Validator with the given options.
func New(opts ...Option) *Validator {
	v := &Validator{
		maxTime:       DefaultMaxTime,
		maxNameLength: DefaultMaxNameLength,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.timeRule = fmt.Sprintf("gt=0,lte=%g", v.maxTime)
	return v
}

var defaultValidator = New() //nolint:gochecknoglobals // stateless default rules

// Validate reports whether c.Time is in (0, maxTime]. NaN and infinities fail.
func (v *Validator) Validate(c model.Candidate) bool {
	return v.validate.Var(c.Time, v.timeRule) == nil
}

// SanitizeName trims whitespace and truncates to the maximum length.
// It fails if nothing is left.
func (v *Validator) SanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if utf8.RuneCountInString(name) > v.maxNameLength {
		runes := []rune(name)
		name = string(runes[:v.maxNameLength])
	}
	return name, nil
}

// Prepare sanitizes and validates a raw submission.
func (v *Validator) Prepare(name string, t float64) (model.Candidate, error) {
	clean, err := v.SanitizeName(name)
	if err != nil {
		return model.Candidate{}, fmt.Errorf("%w: %w", ErrInvalidScore, err)
	}
	c := model.Candidate{PlayerName: clean, Time: t}
	if !v.Validate(c) {
		return model.Candidate{}, fmt.Errorf("%w: %w: %v", ErrInvalidScore, ErrTimeRange, t)
	}
	return c, nil
}

// Validate applies the default rules.
func Validate(c model.Candidate) bool { return defaultValidator.Validate(c) }

// SanitizeName applies the default rules.
func SanitizeName(name string) (string, error) { return defaultValidator.SanitizeName(name) }

// Prepare applies the default rules.
func Prepare(name string, t float64) (model.Candidate, error) {
	return defaultValidator.Prepare(name, t)
}
