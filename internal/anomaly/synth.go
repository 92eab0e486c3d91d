package anomaly

import (
	"math"
	"math/rand/v2"

	"github.com/opensource-finance/kestrel/internal/features"
)

// BootstrapSize is the number of synthetic rows used for the first fit.
const BootstrapSize = 1000

// NewRand returns the deterministic generator used for synthesis and fitting.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

var (
	normalHourWeights = []float64{0.1, 0.15, 0.15, 0.2, 0.2, 0.1, 0.05, 0.03, 0.02} // hours 9..17
	normalDayWeights  = []float64{0.2, 0.2, 0.2, 0.2, 0.1, 0.05, 0.05}
	anomalyHourWeight = func() []float64 {
		w := make([]float64, 24)
		for h := range w {
			if h < 6 || h >= 18 {
				w[h] = 0.1
			} else {
				w[h] = 0.02
			}
		}
		return w
	}()
)

// Synthesize generates n labelled rows: 90% normal daytime activity and 10%
// anomalous activity (large, late, fast, high share of balance). Labels are
// 1 for the anomalous rows. The same rng state always yields the same rows.
func Synthesize(rng *rand.Rand, n int) ([]features.Vector, []int) {
	normal := int(float64(n) * 0.9)
	rows := make([]features.Vector, 0, n)
	labels := make([]int, 0, n)

	for i := 0; i < normal; i++ {
		rows = append(rows, features.Vector{
			lognormal(rng, 8, 1),
			float64(9 + choice(rng, normalHourWeights)),
			float64(choice(rng, normalDayWeights)),
			0,
			1,
			uniform(rng, 0.01, 0.3),
			uniform(rng, 0, 0.2),
			uniform(rng, 0, 0.1),
			uniform(rng, 0, 0.2),
			float64(rng.IntN(8)),
		})
		labels = append(labels, 0)
	}

	for i := normal; i < n; i++ {
		rows = append(rows, features.Vector{
			lognormal(rng, 10, 1.5),
			float64(choice(rng, anomalyHourWeight)),
			float64(rng.IntN(7)),
			bernoulli(rng, 0.7),
			bernoulli(rng, 0.3),
			uniform(rng, 0.5, 1),
			uniform(rng, 0.3, 1),
			uniform(rng, 0.2, 0.8),
			uniform(rng, 0.3, 1),
			float64(rng.IntN(8)),
		})
		labels = append(labels, 1)
	}
	return rows, labels
}

func lognormal(rng *rand.Rand, mu, sigma float64) float64 {
	return math.Exp(mu + sigma*rng.NormFloat64())
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func bernoulli(rng *rand.Rand, p float64) float64 {
	if rng.Float64() < p {
		return 1
	}
	return 0
}

// choice picks an index with probability proportional to its weight.
func choice(rng *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}
