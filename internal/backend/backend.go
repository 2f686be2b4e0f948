// Package backend abstracts the model runtime that turns a token sequence
// into next-token logits.
package backend

import (
	"context"
	"errors"

	"modelrt/pkg/types"
)

// ErrModelClosed is returned by Forward after Close.
var ErrModelClosed = errors.New("model closed")

// DecodeState is opaque per-generation state threaded through decode steps.
// Backends that re-evaluate the full sequence keep only bookkeeping here;
// an incremental backend would keep its cache here.
type DecodeState interface {
	// Steps is the number of forward passes performed with this state.
	Steps() int
}

// Model is a loaded model handle. It is exclusively owned by one session.
type Model interface {
	// VocabSize is the width of the logit vector returned by Forward.
	VocabSize() int
	// NewState allocates decode state for one generation.
	NewState() DecodeState
	// Forward evaluates the entire sequence and returns logits for the
	// final position.
	Forward(ctx context.Context, state DecodeState, tokens []int) ([]float32, error)
	// Close releases resources held by the model.
	Close() error
}

// Backend allocates models from artifacts.
type Backend interface {
	// Load reads the artifact at location and returns a ready model. It may
	// block and must honor ctx.
	Load(ctx context.Context, desc types.ModelDescriptor, location string) (Model, error)
}

// Func adapts a function to Backend.
type Func func(ctx context.Context, desc types.ModelDescriptor, location string) (Model, error)

func (f Func) Load(ctx context.Context, desc types.ModelDescriptor, location string) (Model, error) {
	return f(ctx, desc, location)
}
