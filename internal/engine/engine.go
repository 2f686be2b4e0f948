// Package engine runs the autoregressive decode loop: forward pass over the
// full sequence, sampling, stop checks, repeat.
//
// Each step re-evaluates the entire growing sequence. Backends thread an
// opaque backend.DecodeState through the steps; no key/value cache is kept,
// so a generation of n tokens costs O(n) forward passes over O(n) inputs.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"modelrt/internal/backend"
	"modelrt/internal/sampling"
	"modelrt/internal/tokenizer"
)

// Defaults applied when corresponding Config/Options fields are unset.
const (
	defaultMaxTokens   = 64
	defaultTemperature = 1.0
)

// Config configures an Engine.
type Config struct {
	Tokenizer *tokenizer.Tokenizer
	Logger    zerolog.Logger
	// DefaultMaxTokens applies when Options.MaxTokens is 0.
	DefaultMaxTokens int
	// StopOnEOS ends generation when the end sentinel is sampled.
	StopOnEOS bool
	// NewSource builds the random source for a seed. Defaults to rand.NewSource.
	NewSource func(seed int64) rand.Source
}

// Engine is safe for concurrent use; each Run owns its sampler.
type Engine struct {
	tok              *tokenizer.Tokenizer
	log              zerolog.Logger
	defaultMaxTokens int
	stopOnEOS        bool
	newSource        func(int64) rand.Source
}

// Result is the outcome of one Run.
type Result struct {
	// Tokens holds only the generated ids, not the prompt.
	Tokens       []int
	Text         string
	FinishReason string
	Elapsed      time.Duration
	// Seed is the seed actually used, for reproducing the run.
	Seed int64
	// Fallbacks counts steps that used argmax after a collapsed distribution.
	Fallbacks int
}

func New(cfg Config) *Engine {
	e := &Engine{
		tok:              cfg.Tokenizer,
		log:              cfg.Logger,
		defaultMaxTokens: cfg.DefaultMaxTokens,
		stopOnEOS:        cfg.StopOnEOS,
		newSource:        cfg.NewSource,
	}
	if e.tok == nil {
		e.tok = tokenizer.New(tokenizer.DefaultVocabulary())
	}
	if e.defaultMaxTokens <= 0 {
		e.defaultMaxTokens = defaultMaxTokens
	}
	if e.newSource == nil {
		e.newSource = rand.NewSource
	}
	return e
}

// Tokenizer returns the tokenizer shared by every run.
func (e *Engine) Tokenizer() *tokenizer.Tokenizer { return e.tok }

// Run generates up to MaxTokens tokens after prompt. It stops early on a
// stop-sequence match (the text is cut before the match), on the token limit
// or when ctx ends. On cancellation the partial Result is returned together
// with ctx.Err().
func (e *Engine) Run(ctx context.Context, model backend.Model, prompt []int, opts Options) (Result, error) {
	start := time.Now()
	if model == nil {
		return Result{}, ErrInferenceOutput("no model")
	}
	if len(prompt) == 0 {
		return Result{}, invalidOptionsError{msg: "empty prompt"}
	}
	req, err := e.resolve(opts)
	if err != nil {
		return Result{}, err
	}
	if req.seed == 0 {
		req.seed = time.Now().UnixNano()
	}
	sampler := sampling.New(e.newSource(req.seed))
	vocab := e.tok.VocabSize()

	seq := make([]int, len(prompt), len(prompt)+min(req.maxTokens, 1024))
	copy(seq, prompt)
	res := Result{Seed: req.seed, FinishReason: FinishLength}
	state := model.NewState()
	var text strings.Builder

	finish := func(reason string) {
		res.FinishReason = reason
		res.Elapsed = time.Since(start)
		generationsTotal.WithLabelValues(reason).Inc()
		generationDuration.Observe(res.Elapsed.Seconds())
		tokensGenerated.Add(float64(len(res.Tokens)))
	}

	for len(res.Tokens) < req.maxTokens {
		if req.tokenLimit > 0 && len(seq) >= req.tokenLimit {
			res.Text = text.String()
			finish(FinishTokenLimit)
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			res.Text = text.String()
			finish(FinishCanceled)
			return res, err
		}

		logits, err := model.Forward(ctx, state, seq)
		if err != nil {
			res.Text = text.String()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				finish(FinishCanceled)
				return res, err
			}
			finish(FinishError)
			return res, fmt.Errorf("forward step %d: %w", len(res.Tokens), err)
		}
		if err := checkLogits(logits, vocab); err != nil {
			res.Text = text.String()
			finish(FinishError)
			return res, err
		}

		id, fell := sampler.Next(logits, req.params)
		if fell {
			res.Fallbacks++
			samplingFallbacks.Inc()
			e.log.Debug().Str("event", "sampling_fallback").Int("step", len(res.Tokens)).Int("token", id).Msg("engine: degenerate distribution")
		}
		seq = append(seq, id)
		res.Tokens = append(res.Tokens, id)

		if e.stopOnEOS && e.tok.IsEOS(id) {
			res.Text = text.String()
			finish(FinishStop)
			return res, nil
		}

		prevLen := text.Len()
		if piece := e.tok.Decode([]int{id}); piece != "" {
			if prevLen > 0 {
				text.WriteByte(' ')
			}
			text.WriteString(piece)
		}
		if cut, ok := matchStop(text.String(), prevLen, req); ok {
			res.Text = strings.TrimRight(text.String()[:cut], " ")
			finish(FinishStop)
			return res, nil
		}
	}
	res.Text = text.String()
	finish(FinishLength)
	e.log.Debug().Str("event", "generation_done").Int("tokens", len(res.Tokens)).
		Dur("took", res.Elapsed).Msg("engine: generation finished")
	return res, nil
}

func checkLogits(logits []float32, vocab int) error {
	switch {
	case logits == nil:
		return ErrInferenceOutput("missing logits")
	case len(logits) == 0:
		return ErrInferenceOutput("empty logits")
	case len(logits) > vocab:
		return ErrInferenceOutput(fmt.Sprintf("logits width %d exceeds vocabulary %d", len(logits), vocab))
	}
	return nil
}

// matchStop looks for the earliest stop sequence that ends in the text added
// since prevLen. It returns the byte offset where the match starts.
func matchStop(text string, prevLen int, req request) (int, bool) {
	if len(req.stops) == 0 || len(text) == prevLen {
		return 0, false
	}
	from := prevLen - req.maxStopLen
	if from < 0 {
		from = 0
	}
	best := -1
	for _, s := range req.stops {
		if i := strings.Index(text[from:], s); i >= 0 {
			if at := from + i; best < 0 || at < best {
				best = at
			}
		}
	}
	return best, best >= 0
}
