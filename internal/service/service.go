// Package service implements the runtime operations exposed across the
// worker boundary: model lifecycle, text generation and document analysis.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"modelrt/internal/backend"
	"modelrt/internal/engine"
	"modelrt/internal/manager"
	"modelrt/pkg/types"
)

// InferenceErrorPrefix marks a generation failure returned in band by GenerateText.
const InferenceErrorPrefix = "[Inference Error: "

// Config wires a Service.
type Config struct {
	Manager *manager.Manager
	Engine  *engine.Engine
	Logger  zerolog.Logger
	// DefaultModel is used when a request leaves the model id empty.
	DefaultModel string
	// Preload lists models loaded by Initialize.
	Preload []string
}

type Service struct {
	mgr          *manager.Manager
	eng          *engine.Engine
	log          zerolog.Logger
	defaultModel string
	preload      []string

	initOnce sync.Once
	initErr  error
}

func New(cfg Config) *Service {
	return &Service{
		mgr:          cfg.Manager,
		eng:          cfg.Engine,
		log:          cfg.Logger,
		defaultModel: cfg.DefaultModel,
		preload:      append([]string(nil), cfg.Preload...),
	}
}

// Initialize checks wiring and loads the preload list. It runs once; later
// calls return the first result. Preload failures are logged, not returned.
func (s *Service) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		if s.mgr == nil || s.eng == nil {
			s.initErr = errors.New("service: manager and engine are required")
			return
		}
		for _, id := range s.preload {
			if !s.mgr.LoadModel(ctx, id, "") {
				s.log.Warn().Str("event", "preload_failed").Str("model", id).Msg("service: preload failed")
			}
		}
		s.log.Info().Str("event", "initialized").Strs("loaded", s.mgr.LoadedModels()).Msg("service: ready")
	})
	return s.initErr
}

func (s *Service) resolveID(id string) string {
	if strings.TrimSpace(id) == "" {
		return s.defaultModel
	}
	return id
}

// LoadModel allocates a session for id. See manager.Manager.LoadModel.
func (s *Service) LoadModel(ctx context.Context, id, location string) bool {
	return s.mgr.LoadModel(ctx, s.resolveID(id), location)
}

// UnloadModel releases the session for id.
func (s *Service) UnloadModel(id string) bool {
	return s.mgr.UnloadModel(s.resolveID(id))
}

// Generate runs one generation against a loaded session.
func (s *Service) Generate(ctx context.Context, id, prompt string, opts types.GenerateOptions) (types.GenerationResult, error) {
	start := time.Now()
	id = s.resolveID(id)
	lease, err := s.mgr.Acquire(ctx, id)
	if err != nil {
		return types.GenerationResult{}, err
	}
	defer lease.Release()

	desc := lease.Descriptor()
	tokens := s.eng.Tokenizer().EncodePrompt(prompt)
	res, err := s.eng.Run(ctx, lease.Model(), tokens, engine.Options{
		MaxTokens:     opts.MaxTokens,
		Temperature:   opts.Temperature,
		TopP:          opts.TopP,
		TopK:          opts.TopK,
		StopSequences: opts.StopSequences,
		Seed:          opts.Seed,
		TokenLimit:    desc.TokenLimit,
	})
	out := types.GenerationResult{
		Text:            res.Text,
		TokensGenerated: len(res.Tokens),
		ElapsedMs:       time.Since(start).Milliseconds(),
		FinishReason:    res.FinishReason,
	}
	if errors.Is(err, backend.ErrModelClosed) {
		err = manager.ErrSessionUnavailable(id, "released")
	}
	if err != nil {
		s.log.Warn().Err(err).Str("event", "generate_failed").Str("model", id).Msg("service: generation failed")
		return out, err
	}
	s.log.Debug().Str("event", "generate_done").Str("model", id).Int("tokens", out.TokensGenerated).
		Str("finish", out.FinishReason).Int64("ms", out.ElapsedMs).Msg("service: generation finished")
	return out, nil
}

// GenerateText is Generate with failures folded into the returned text as
// "[Inference Error: ...]". It never panics.
func (s *Service) GenerateText(ctx context.Context, id, prompt string, opts types.GenerateOptions) (text string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("event", "generate_panic").Str("model", id).Interface("panic", r).Msg("service: recovered")
			text = inferenceError(fmt.Errorf("panic: %v", r))
		}
	}()
	res, err := s.Generate(ctx, id, prompt, opts)
	if err != nil {
		return inferenceError(err)
	}
	return res.Text
}

func inferenceError(err error) string {
	return InferenceErrorPrefix + err.Error() + "]"
}

// IsInferenceError reports whether text is an in-band generation failure.
func IsInferenceError(text string) bool {
	return strings.HasPrefix(text, InferenceErrorPrefix)
}

// LoadedModels returns the ids of live sessions, sorted.
func (s *Service) LoadedModels() []string { return s.mgr.LoadedModels() }

// ModelInfo returns the descriptor for id, or nil when it is not registered.
func (s *Service) ModelInfo(id string) *types.ModelDescriptor {
	d, ok := s.mgr.ModelInfo(s.resolveID(id))
	if !ok {
		return nil
	}
	return &d
}

// ListModels returns every registered descriptor.
func (s *Service) ListModels() []types.ModelDescriptor { return s.mgr.ListModels() }

// Status proxies manager.Manager.Status.
func (s *Service) Status() types.StatusResponse { return s.mgr.Status() }

// Cleanup unloads every session, continuing past per-model failures.
func (s *Service) Cleanup(ctx context.Context) error {
	err := s.mgr.Cleanup(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("event", "cleanup_partial").Msg("service: cleanup finished with errors")
	}
	return err
}
