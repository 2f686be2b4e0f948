package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"modelrt/internal/service"
)

// Worker dequeues calls and executes them one at a time against a Service.
// A long generation blocks every call behind it, load and unload included.
type Worker struct {
	workerID string
	svc      *service.Service
	broker   Broker
	log      zerolog.Logger
}

func New(svc *service.Service, b Broker, log zerolog.Logger) *Worker {
	return &Worker{
		workerID: fmt.Sprintf("worker-%d", os.Getpid()),
		svc:      svc,
		broker:   b,
		log:      log,
	}
}

// Run processes calls until ctx ends. It returns ctx.Err() on shutdown or
// the broker error that stopped dequeuing.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Str("worker", w.workerID).Msg("worker started, waiting for calls")

	callCh := make(chan *Call)
	errCh := make(chan error, 1)

	// Goroutine to fetch calls from the broker
	go func() {
		defer close(callCh)
		for {
			call, err := w.broker.Dequeue(ctx)
			if err != nil {
				if ctx.Err() == nil {
					errCh <- err
				}
				return
			}
			select {
			case callCh <- call:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case call, ok := <-callCh:
			if !ok {
				select {
				case err := <-errCh:
					w.log.Error().Err(err).Str("worker", w.workerID).Msg("dequeue failed, shutting down")
					return err
				default:
				}
				return ctx.Err()
			}
			w.process(ctx, call)
		case <-ctx.Done():
			w.log.Info().Str("worker", w.workerID).Msg("worker shutting down")
			return ctx.Err()
		}
	}
}

func (w *Worker) process(ctx context.Context, call *Call) {
	start := time.Now()
	if call.EnqueuedAt > 0 {
		queueWait.Observe(time.Since(time.UnixMilli(call.EnqueuedAt)).Seconds())
	}
	w.log.Debug().Str("call", call.ID).Str("method", string(call.Method)).Msg("-> processing call")

	callCtx, cancelCall := context.WithCancel(ctx)
	defer cancelCall()
	if cancelCh, err := w.broker.WatchCancel(callCtx, call.ID); err != nil {
		w.log.Warn().Err(err).Str("call", call.ID).Msg("cancel watch unavailable")
	} else {
		go func() {
			select {
			case <-cancelCh:
				w.log.Debug().Str("call", call.ID).Msg("cancellation signal received")
				cancelCall()
			case <-callCtx.Done():
			}
		}()
	}

	reply := w.dispatch(callCtx, call)
	outcome := "ok"
	if reply.Error != "" {
		outcome = reply.Code
	}
	callsTotal.WithLabelValues(string(call.Method), outcome).Inc()
	callDuration.WithLabelValues(string(call.Method)).Observe(time.Since(start).Seconds())

	if err := w.broker.Publish(context.Background(), reply); err != nil {
		w.log.Error().Err(err).Str("call", call.ID).Msg("failed to publish reply")
	}
	w.log.Debug().Str("call", call.ID).Str("outcome", outcome).Dur("took", time.Since(start)).Msg("<- finished call")
}

// dispatch runs the call and builds its reply. Panics become internal errors.
func (w *Worker) dispatch(ctx context.Context, call *Call) (reply *Reply) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Str("call", call.ID).Interface("panic", r).Msg("call panicked")
			reply = &Reply{ID: call.ID, Error: fmt.Sprintf("panic: %v", r), Code: CodeInternal}
		}
	}()
	result, err := w.execute(ctx, call)
	if err != nil {
		return &Reply{ID: call.ID, Error: err.Error(), Code: codeFor(err)}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return &Reply{ID: call.ID, Error: "encode result: " + err.Error(), Code: CodeInternal}
	}
	return &Reply{ID: call.ID, Result: data}
}

func decodeParams(call *Call, v any) error {
	if len(call.Params) == 0 {
		return fmt.Errorf("%w: %s requires params", errBadParams, call.Method)
	}
	if err := json.Unmarshal(call.Params, v); err != nil {
		return fmt.Errorf("%w: %v", errBadParams, err)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, call *Call) (any, error) {
	switch call.Method {
	case MethodInitialize:
		return true, w.svc.Initialize(ctx)
	case MethodLoadModel:
		var p loadParams
		if err := decodeParams(call, &p); err != nil {
			return nil, err
		}
		return w.svc.LoadModel(ctx, p.ID, p.Location), nil
	case MethodUnloadModel:
		var p modelParams
		if err := decodeParams(call, &p); err != nil {
			return nil, err
		}
		return w.svc.UnloadModel(p.ID), nil
	case MethodGenerate:
		var p generateParams
		if err := decodeParams(call, &p); err != nil {
			return nil, err
		}
		return w.svc.Generate(ctx, p.ID, p.Prompt, p.Options)
	case MethodGenerateText:
		var p generateParams
		if err := decodeParams(call, &p); err != nil {
			return nil, err
		}
		return w.svc.GenerateText(ctx, p.ID, p.Prompt, p.Options), nil
	case MethodAnalyzeDocument:
		var p analyzeParams
		if err := decodeParams(call, &p); err != nil {
			return nil, err
		}
		return w.svc.AnalyzeDocument(ctx, p.ID, p.Content, p.Kind)
	case MethodLoadedModels:
		return w.svc.LoadedModels(), nil
	case MethodModelInfo:
		var p modelParams
		if err := decodeParams(call, &p); err != nil {
			return nil, err
		}
		return w.svc.ModelInfo(p.ID), nil
	case MethodListModels:
		return w.svc.ListModels(), nil
	case MethodStatus:
		return w.svc.Status(), nil
	case MethodCleanup:
		return true, w.svc.Cleanup(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownMethod, call.Method)
	}
}
