// Package sampling turns a logit vector into a single token id.
//
// The pipeline is: temperature scale, softmax with max subtraction, optional
// top-k truncation, optional top-p (nucleus) truncation, then a categorical
// draw from an injected random source. Each filter renormalizes so the
// surviving probabilities sum to 1.
package sampling

import (
	"math"
	"math/rand"
	"sort"
)

// Params configures one sampling step.
type Params struct {
	// Temperature must be > 0. 1 is a no-op, <1 sharpens, >1 flattens.
	Temperature float64
	// TopK keeps the k most likely tokens. 0 disables.
	TopK int
	// TopP keeps the smallest prefix whose mass reaches TopP. 0 or >=1 disables.
	TopP float64
}

// Sampler draws token ids. It is not safe for concurrent use.
type Sampler struct {
	rng *rand.Rand
}

// New returns a Sampler drawing from src.
func New(src rand.Source) *Sampler {
	return &Sampler{rng: rand.New(src)}
}

// NewSeeded returns a Sampler with a deterministic source.
func NewSeeded(seed int64) *Sampler {
	return New(rand.NewSource(seed))
}

// Distribution returns the filtered, renormalized probability vector for
// logits. ErrDegenerateDistribution is returned when no mass survives.
func Distribution(logits []float32, p Params) ([]float64, error) {
	temp := p.Temperature
	if temp <= 0 {
		temp = 1
	}
	probs := Softmax(ScaleTemperature(logits, temp))
	if err := renormalize(probs); err != nil {
		return nil, err
	}
	if p.TopK > 0 && p.TopK < len(probs) {
		if err := ApplyTopK(probs, p.TopK); err != nil {
			return nil, err
		}
	}
	if p.TopP > 0 && p.TopP < 1 {
		if err := ApplyTopP(probs, p.TopP); err != nil {
			return nil, err
		}
	}
	return probs, nil
}

// Next samples one id from logits. A collapsed distribution falls back to
// argmax over the raw logits; fellBack reports that case.
func (s *Sampler) Next(logits []float32, p Params) (id int, fellBack bool) {
	probs, err := Distribution(logits, p)
	if err != nil {
		return Argmax(logits), true
	}
	return s.Draw(probs), false
}

// Draw walks a uniform draw against the cumulative distribution of probs.
// An all-zero vector yields argmax (index 0 on ties).
func (s *Sampler) Draw(probs []float64) int {
	r := s.rng.Float64()
	var c float64
	last := -1
	for i, pr := range probs {
		if pr <= 0 {
			continue
		}
		last = i
		c += pr
		if r < c {
			return i
		}
	}
	if last >= 0 {
		// rounding left r just above the final cumulative value
		return last
	}
	return argmax64(probs)
}

// ScaleTemperature divides each logit by temp.
func ScaleTemperature(logits []float32, temp float64) []float64 {
	out := make([]float64, len(logits))
	inv := 1 / temp
	for i, l := range logits {
		out[i] = float64(l) * inv
	}
	return out
}

// Softmax computes exp(x-max)/sum in place and returns x. Non-finite inputs
// (NaN, -Inf) contribute zero mass.
func Softmax(x []float64) []float64 {
	maxv := math.Inf(-1)
	for _, v := range x {
		if !math.IsNaN(v) && v > maxv {
			maxv = v
		}
	}
	if math.IsInf(maxv, 0) {
		// all -Inf/NaN, or a +Inf spike
		for i, v := range x {
			if math.IsInf(maxv, 1) && math.IsInf(v, 1) {
				x[i] = 1
			} else {
				x[i] = 0
			}
		}
		return x
	}
	var sum float64
	for i, v := range x {
		if math.IsNaN(v) {
			x[i] = 0
			continue
		}
		e := math.Exp(v - maxv)
		x[i] = e
		sum += e
	}
	if sum > 0 {
		inv := 1 / sum
		for i := range x {
			x[i] *= inv
		}
	}
	return x
}

// ApplyTopK zeroes all but the k highest probabilities (lowest index wins
// ties) and renormalizes.
func ApplyTopK(probs []float64, k int) error {
	if k <= 0 || k >= len(probs) {
		return renormalize(probs)
	}
	order := sortedDesc(probs)
	for _, i := range order[k:] {
		probs[i] = 0
	}
	return renormalize(probs)
}

// ApplyTopP keeps the highest-probability prefix whose cumulative mass first
// reaches p, zeroes the tail and renormalizes.
func ApplyTopP(probs []float64, p float64) error {
	if p <= 0 || p >= 1 {
		return renormalize(probs)
	}
	order := sortedDesc(probs)
	var c float64
	cut := len(order)
	for n, i := range order {
		c += probs[i]
		if c >= p {
			cut = n + 1
			break
		}
	}
	for _, i := range order[cut:] {
		probs[i] = 0
	}
	return renormalize(probs)
}

// Argmax returns the index of the largest logit, or 0 for an empty or
// all-NaN slice.
func Argmax(x []float32) int {
	best := 0
	bestV := float32(math.Inf(-1))
	for i, v := range x {
		if v > bestV {
			best, bestV = i, v
		}
	}
	return best
}

func argmax64(x []float64) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}

// sortedDesc returns indices ordered by descending probability, stable on
// index for ties.
func sortedDesc(probs []float64) []int {
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return probs[order[a]] > probs[order[b]] })
	return order
}

func renormalize(probs []float64) error {
	var sum float64
	for _, v := range probs {
		if v > 0 && !math.IsInf(v, 0) {
			sum += v
		}
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return ErrDegenerateDistribution
	}
	inv := 1 / sum
	for i, v := range probs {
		if v > 0 {
			probs[i] = v * inv
		} else {
			probs[i] = 0
		}
	}
	return nil
}
