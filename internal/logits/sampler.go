package logits

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

// PipelineConfig configures a sampling pipeline for one generation request.
type PipelineConfig struct {
	// Temperature scales the logits. Values <= 0 select the deterministic
	// greedy pipeline; the stochastic stages are skipped entirely.
	Temperature float32
	// TopP is the nucleus threshold: sampling is restricted to the
	// smallest token set whose cumulative probability reaches TopP.
	// Values <= 0 or > 1 disable the restriction.
	TopP float32
	// Seed initializes the random draw. Zero picks a time-derived seed,
	// giving every pipeline fresh random state.
	Seed int64
}

// Pipeline draws tokens from a logits vector. A pipeline is built per
// request and must not be reused across requests: its random state is part
// of the request, not of the session.
type Pipeline struct {
	cfg    PipelineConfig
	greedy bool
	rng    *rand.Rand

	idx  []int
	prob []float64
}

// NewPipeline builds the pipeline selected by cfg: greedy argmax for
// temperatures <= 0, otherwise temperature scale, top-p filter, and a
// random draw from the renormalized shortlist.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	greedy := cfg.Temperature <= 0
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Pipeline{
		cfg:    cfg,
		greedy: greedy,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Greedy reports whether the pipeline is the deterministic argmax variant.
func (p *Pipeline) Greedy() bool { return p.greedy }

// Sample draws one token id from the logits vector. It returns -1 for an
// empty vector; callers treat a negative id as an invalid token and stop.
func (p *Pipeline) Sample(logits []float32) int {
	if len(logits) == 0 {
		return -1
	}
	if p.greedy {
		return argmax(logits)
	}

	invTemp := 1.0 / float64(p.cfg.Temperature)

	if cap(p.idx) < len(logits) {
		p.idx = make([]int, len(logits))
		p.prob = make([]float64, len(logits))
	}
	idx := p.idx[:len(logits)]
	prob := p.prob[:len(logits)]
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return logits[idx[a]] > logits[idx[b]]
	})

	// Softmax over the temperature-scaled logits, max-subtracted for
	// numerical stability. idx[0] holds the maximum after the sort.
	maxv := float64(logits[idx[0]]) * invTemp
	var sum float64
	for i, id := range idx {
		e := math.Exp(float64(logits[id])*invTemp - maxv)
		prob[i] = e
		sum += e
	}
	if sum == 0 {
		return idx[0]
	}
	invSum := 1.0 / sum
	for i := range prob {
		prob[i] *= invSum
	}

	// Nucleus cut: keep the smallest prefix reaching TopP, then
	// renormalize the survivors.
	cut := len(prob)
	if p.cfg.TopP < 1 {
		var c float64
		for i := range prob {
			c += prob[i]
			if float32(c) >= p.cfg.TopP {
				cut = i + 1
				break
			}
		}
		var kept float64
		for i := 0; i < cut; i++ {
			kept += prob[i]
		}
		if kept > 0 {
			scale := 1.0 / kept
			for i := 0; i < cut; i++ {
				prob[i] *= scale
			}
		}
	}

	r := p.rng.Float64()
	var c float64
	for i := 0; i < cut; i++ {
		c += prob[i]
		if r <= c {
			return idx[i]
		}
	}
	return idx[cut-1]
}

// argmax returns the index of the maximum value in the slice.
func argmax(x []float32) int {
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}
