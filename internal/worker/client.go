package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"modelrt/internal/service"
	"modelrt/pkg/types"
)

// Client issues calls to a Worker through a Broker. Every method is
// independent; the Go* variants return a Future instead of blocking.
// When ctx ends before the reply arrives the client signals cancellation
// to the worker and returns ctx.Err().
type Client struct {
	broker Broker
	log    zerolog.Logger
	newID  func() string
}

func NewClient(b Broker, log zerolog.Logger) *Client {
	return &Client{broker: b, log: log, newID: uuid.NewString}
}

func (c *Client) call(ctx context.Context, method Method, params, out any) error {
	id := c.newID()
	call := &Call{ID: id, Method: method, EnqueuedAt: time.Now().UnixMilli()}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
		call.Params = data
	}

	sub, err := c.broker.Subscribe(ctx, id)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	if err := c.broker.Enqueue(ctx, call); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	select {
	case r, ok := <-sub.Replies():
		return decodeReply(id, r, ok, out)
	case <-ctx.Done():
		// The worker may have replied in the same instant; no signal then.
		select {
		case r, ok := <-sub.Replies():
			if ok && r != nil {
				return ctx.Err()
			}
		default:
		}
		if err := c.broker.SignalCancel(context.Background(), id); err != nil {
			c.log.Warn().Err(err).Str("call", id).Msg("client: cancel signal failed")
		}
		return ctx.Err()
	}
}

func decodeReply(id string, r *Reply, ok bool, out any) error {
	if !ok || r == nil {
		return fmt.Errorf("reply channel closed for call %s", id)
	}
	if r.Error != "" {
		return &RemoteError{Code: r.Code, Message: r.Error}
	}
	if out == nil || len(r.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func (c *Client) Initialize(ctx context.Context) error {
	return c.call(ctx, MethodInitialize, nil, nil)
}

// LoadModel reports false on transport failures as well as load failures.
func (c *Client) LoadModel(ctx context.Context, id, location string) bool {
	var ok bool
	if err := c.call(ctx, MethodLoadModel, loadParams{ID: id, Location: location}, &ok); err != nil {
		c.log.Warn().Err(err).Str("model", id).Msg("client: load_model failed")
		return false
	}
	return ok
}

func (c *Client) UnloadModel(ctx context.Context, id string) bool {
	var ok bool
	if err := c.call(ctx, MethodUnloadModel, modelParams{ID: id}, &ok); err != nil {
		c.log.Warn().Err(err).Str("model", id).Msg("client: unload_model failed")
		return false
	}
	return ok
}

// Generate returns typed errors as *RemoteError; see ErrorCode.
func (c *Client) Generate(ctx context.Context, id, prompt string, opts types.GenerateOptions) (types.GenerationResult, error) {
	var res types.GenerationResult
	err := c.call(ctx, MethodGenerate, generateParams{ID: id, Prompt: prompt, Options: opts}, &res)
	return res, err
}

// GenerateText never fails: transport errors are returned in band like
// generation errors.
func (c *Client) GenerateText(ctx context.Context, id, prompt string, opts types.GenerateOptions) string {
	var text string
	if err := c.call(ctx, MethodGenerateText, generateParams{ID: id, Prompt: prompt, Options: opts}, &text); err != nil {
		return service.InferenceErrorPrefix + err.Error() + "]"
	}
	return text
}

func (c *Client) AnalyzeDocument(ctx context.Context, id, content string, kind types.AnalysisKind) (types.AnalysisResult, error) {
	var res types.AnalysisResult
	err := c.call(ctx, MethodAnalyzeDocument, analyzeParams{ID: id, Content: content, Kind: kind}, &res)
	return res, err
}

func (c *Client) LoadedModels(ctx context.Context) ([]string, error) {
	var ids []string
	err := c.call(ctx, MethodLoadedModels, nil, &ids)
	return ids, err
}

// ModelInfo returns nil without error when id is not registered.
func (c *Client) ModelInfo(ctx context.Context, id string) (*types.ModelDescriptor, error) {
	var d *types.ModelDescriptor
	err := c.call(ctx, MethodModelInfo, modelParams{ID: id}, &d)
	return d, err
}

func (c *Client) ListModels(ctx context.Context) ([]types.ModelDescriptor, error) {
	var out []types.ModelDescriptor
	err := c.call(ctx, MethodListModels, nil, &out)
	return out, err
}

func (c *Client) Status(ctx context.Context) (types.StatusResponse, error) {
	var st types.StatusResponse
	err := c.call(ctx, MethodStatus, nil, &st)
	return st, err
}

func (c *Client) Cleanup(ctx context.Context) error {
	return c.call(ctx, MethodCleanup, nil, nil)
}
