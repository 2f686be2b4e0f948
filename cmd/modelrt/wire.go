package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"modelrt/internal/backend"
	"modelrt/internal/common/fsutil"
	"modelrt/internal/config"
	"modelrt/internal/engine"
	"modelrt/internal/manager"
	"modelrt/internal/registry"
	"modelrt/internal/service"
	"modelrt/internal/tokenizer"
	"modelrt/internal/worker"
	"modelrt/pkg/types"
)

const redisPingTimeout = 3 * time.Second

// stack is the in-process model runtime behind a worker.
type stack struct {
	catalog *registry.Catalog
	mgr     *manager.Manager
	svc     *service.Service
}

// loadCatalog merges the models directory scan with the manifest; manifest
// entries win on id clashes. extra descriptors are added last.
func loadCatalog(cfg config.Config, extra ...types.ModelDescriptor) (*registry.Catalog, error) {
	var lists [][]types.ModelDescriptor
	if cfg.ModelsDir != "" {
		dir, err := fsutil.ExpandHome(cfg.ModelsDir)
		if err != nil {
			return nil, err
		}
		if fsutil.PathExists(dir) {
			descs, err := registry.LoadDir(dir)
			if err != nil {
				return nil, fmt.Errorf("scan models dir: %w", err)
			}
			lists = append(lists, descs)
		}
	}
	if cfg.Manifest != "" {
		descs, err := registry.LoadManifest(cfg.Manifest)
		if err != nil {
			return nil, err
		}
		lists = append(lists, descs)
	}
	lists = append(lists, extra)
	return registry.NewCatalog(registry.Merge(lists...))
}

func loadTokenizer(cfg config.Config) (*tokenizer.Tokenizer, error) {
	if cfg.VocabFile == "" {
		return tokenizer.New(tokenizer.DefaultVocabulary()), nil
	}
	path, err := fsutil.ExpandHome(cfg.VocabFile)
	if err != nil {
		return nil, err
	}
	v, err := tokenizer.LoadVocabulary(path)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return tokenizer.New(v), nil
}

func buildStack(cfg config.Config, log zerolog.Logger, extra ...types.ModelDescriptor) (*stack, error) {
	cat, err := loadCatalog(cfg, extra...)
	if err != nil {
		return nil, err
	}
	tok, err := loadTokenizer(cfg)
	if err != nil {
		return nil, err
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Catalog:       cat,
		Backend:       backend.NewToy(backend.ToyConfig{VocabSize: tok.VocabSize(), Hidden: cfg.HiddenSize}),
		Logger:        log.With().Str("component", "manager").Logger(),
		Publisher:     manager.LogPublisher{Log: log.With().Str("component", "events").Logger()},
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       cfg.MaxWait.Std(),
		DrainTimeout:  cfg.DrainTimeout.Std(),
	})
	eng := engine.New(engine.Config{
		Tokenizer:        tok,
		Logger:           log.With().Str("component", "engine").Logger(),
		DefaultMaxTokens: cfg.DefaultMaxTokens,
		StopOnEOS:        cfg.StopOnEOS,
	})
	svc := service.New(service.Config{
		Manager:      mgr,
		Engine:       eng,
		Logger:       log.With().Str("component", "service").Logger(),
		DefaultModel: cfg.DefaultModel,
		Preload:      cfg.Preload,
	})
	log.Info().Int("models", cat.Len()).Int("vocab", tok.VocabSize()).Msg("runtime ready")
	return &stack{catalog: cat, mgr: mgr, svc: svc}, nil
}

// newBroker returns the configured broker and a close func.
func newBroker(ctx context.Context, cfg config.Config) (worker.Broker, func() error, error) {
	switch cfg.Broker {
	case config.BrokerRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(pctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return worker.NewRedisBroker(rdb, cfg.QueueName), rdb.Close, nil
	default:
		return worker.NewMemoryBroker(cfg.MaxQueueDepth), func() error { return nil }, nil
	}
}
