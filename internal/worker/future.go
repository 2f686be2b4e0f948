package worker

import (
	"context"

	"modelrt/pkg/types"
)

// Future is the pending result of an asynchronous client call.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func goFuture[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn()
	}()
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is available or ctx ends. Ending ctx here
// does not cancel the call; cancel the ctx passed to the Go* method for that.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (c *Client) GoLoadModel(ctx context.Context, id, location string) *Future[bool] {
	return goFuture(func() (bool, error) { return c.LoadModel(ctx, id, location), nil })
}

func (c *Client) GoUnloadModel(ctx context.Context, id string) *Future[bool] {
	return goFuture(func() (bool, error) { return c.UnloadModel(ctx, id), nil })
}

func (c *Client) GoGenerate(ctx context.Context, id, prompt string, opts types.GenerateOptions) *Future[types.GenerationResult] {
	return goFuture(func() (types.GenerationResult, error) { return c.Generate(ctx, id, prompt, opts) })
}

func (c *Client) GoGenerateText(ctx context.Context, id, prompt string, opts types.GenerateOptions) *Future[string] {
	return goFuture(func() (string, error) { return c.GenerateText(ctx, id, prompt, opts), nil })
}

func (c *Client) GoAnalyzeDocument(ctx context.Context, id, content string, kind types.AnalysisKind) *Future[types.AnalysisResult] {
	return goFuture(func() (types.AnalysisResult, error) { return c.AnalyzeDocument(ctx, id, content, kind) })
}

func (c *Client) GoLoadedModels(ctx context.Context) *Future[[]string] {
	return goFuture(func() ([]string, error) { return c.LoadedModels(ctx) })
}

func (c *Client) GoModelInfo(ctx context.Context, id string) *Future[*types.ModelDescriptor] {
	return goFuture(func() (*types.ModelDescriptor, error) { return c.ModelInfo(ctx, id) })
}

func (c *Client) GoCleanup(ctx context.Context) *Future[struct{}] {
	return goFuture(func() (struct{}, error) { return struct{}{}, c.Cleanup(ctx) })
}
