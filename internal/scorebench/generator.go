package scorebench

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// timePrecision rounds generated times to milliseconds.
const timePrecision = 1000

// Generate returns n submissions with distinct names and times in (0, MaxTime].
func Generate(n int, seed uint64) []Submission {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // seed only
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1)) //nolint:gosec // load data, not secrets
	out := make([]Submission, n)
	for i := range out {
		out[i] = Submission{
			PlayerName: fmt.Sprintf("bench-%04d", i),
			Time:       randomTime(rng),
		}
	}
	return out
}

// randomTime skews towards faster runs so the top of the board churns.
func randomTime(rng *rand.Rand) float64 {
	u := rng.Float64()
	t := math.Ceil(u*u*MaxTime*timePrecision) / timePrecision
	if t <= 0 {
		t = 1.0 / timePrecision
	}
	return t
}
