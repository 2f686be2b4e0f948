package manager

import (
	"time"

	"github.com/rs/zerolog"

	"modelrt/internal/backend"
	"modelrt/internal/registry"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth      = 32
	defaultMaxWait            = 30 * time.Second
	defaultDrainTimeout       = 5 * time.Second
	defaultReleaseFailHistory = 64
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Catalog *registry.Catalog
	Backend backend.Backend
	// Logger receives lifecycle diagnostics. The zero value logs nothing.
	Logger    zerolog.Logger
	Publisher EventPublisher

	MaxQueueDepth int
	MaxWait       time.Duration
	// DrainTimeout bounds how long Unload waits for in-flight work.
	DrainTimeout time.Duration
	// ReleaseFailHistory caps the release_failed list in Status.
	ReleaseFailHistory int
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		catalog:   cfg.Catalog,
		backend:   cfg.Backend,
		log:       cfg.Logger,
		publisher: cfg.Publisher,
		sessions:  make(map[string]*Session),
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	if cfg.ReleaseFailHistory <= 0 {
		m.releaseFailCap = defaultReleaseFailHistory
	} else {
		m.releaseFailCap = cfg.ReleaseFailHistory
	}
	m.startTime = time.Now()
	return m
}
