package scorebench

import (
	"fmt"
	"slices"
)

// Verify checks that board is ascending and at most display long. With exact
// set, it must also hold precisely the display fastest processed times.
func Verify(board []Entry, processed []Submission, display int, exact bool) error {
	if len(board) > display {
		return fmt.Errorf("%w: %d entries, display size %d", ErrVerification, len(board), display)
	}
	for i := 1; i < len(board); i++ {
		if board[i].Time < board[i-1].Time {
			return fmt.Errorf("%w: entry %d (%.3f) is faster than entry %d (%.3f)",
				ErrVerification, i, board[i].Time, i-1, board[i-1].Time)
		}
	}
	if !exact {
		return nil
	}

	want := make([]float64, 0, len(processed))
	for _, s := range processed {
		want = append(want, s.Time)
	}
	slices.Sort(want)
	want = want[:min(display, len(want))]

	if len(board) != len(want) {
		return fmt.Errorf("%w: %d entries, want %d", ErrVerification, len(board), len(want))
	}
	for i, e := range board {
		if e.Time != want[i] {
			return fmt.Errorf("%w: position %d has %.3f, want %.3f", ErrVerification, i, e.Time, want[i])
		}
	}
	return nil
}
