package engine

import (
	"fmt"
	"math"

	"modelrt/internal/sampling"
)

// Finish reasons reported in Result.FinishReason.
const (
	FinishLength     = "length"
	FinishStop       = "stop"
	FinishTokenLimit = "token_limit"
	FinishCanceled   = "canceled"
	// FinishError marks a run aborted by a backend or output failure.
	FinishError = "error"
)

// Options are the per-request decode parameters. Zero values mean unset.
type Options struct {
	MaxTokens     int
	Temperature   float64
	TopP          float64
	TopK          int
	StopSequences []string
	// Seed selects the random source; 0 picks a time-based seed.
	Seed int64
	// TokenLimit caps prompt plus generated tokens. 0 means unlimited.
	TokenLimit int
}

// request is Options after defaults and validation.
type request struct {
	maxTokens  int
	params     sampling.Params
	stops      []string
	maxStopLen int
	seed       int64
	tokenLimit int
}

func (e *Engine) resolve(o Options) (request, error) {
	r := request{
		maxTokens:  o.MaxTokens,
		seed:       o.Seed,
		tokenLimit: o.TokenLimit,
		params: sampling.Params{
			Temperature: o.Temperature,
			TopK:        o.TopK,
			TopP:        o.TopP,
		},
	}
	switch {
	case o.MaxTokens < 0:
		return r, invalidOptionsError{msg: fmt.Sprintf("max_tokens %d < 0", o.MaxTokens)}
	case o.MaxTokens == 0:
		r.maxTokens = e.defaultMaxTokens
	}
	switch t := o.Temperature; {
	case math.IsNaN(t) || math.IsInf(t, 0) || t < 0:
		return r, invalidOptionsError{msg: fmt.Sprintf("temperature %v", t)}
	case t == 0:
		r.params.Temperature = defaultTemperature
	}
	if p := o.TopP; math.IsNaN(p) || p < 0 || p > 1 {
		return r, invalidOptionsError{msg: fmt.Sprintf("top_p %v not in (0,1]", p)}
	}
	if o.TopK < 0 {
		return r, invalidOptionsError{msg: fmt.Sprintf("top_k %d < 0", o.TopK)}
	}
	if o.TokenLimit < 0 {
		return r, invalidOptionsError{msg: fmt.Sprintf("token limit %d < 0", o.TokenLimit)}
	}
	for _, s := range o.StopSequences {
		if s == "" {
			continue
		}
		r.stops = append(r.stops, s)
		if len(s) > r.maxStopLen {
			r.maxStopLen = len(s)
		}
	}
	return r, nil
}
