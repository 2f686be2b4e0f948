package backend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"modelrt/internal/common/fsutil"
	"modelrt/pkg/types"
)

// Defaults applied when corresponding ToyConfig fields are unset.
const (
	defaultToyHidden = 16
	defaultToyDecay  = 0.6
)

// ToyConfig configures the built-in toy backend.
type ToyConfig struct {
	// VocabSize must match the tokenizer vocabulary.
	VocabSize int
	Hidden    int
	// Decay weights earlier positions by Decay^(distance from the end).
	Decay float32
	// LoadDelay simulates allocation latency.
	LoadDelay time.Duration
}

// Toy is a deterministic backend for tests and local experiments. Weights
// are derived from an xxhash of the artifact bytes, so the same artifact
// always produces the same model.
type Toy struct {
	cfg ToyConfig
}

func NewToy(cfg ToyConfig) *Toy {
	if cfg.Hidden <= 0 {
		cfg.Hidden = defaultToyHidden
	}
	if cfg.Decay <= 0 || cfg.Decay > 1 {
		cfg.Decay = defaultToyDecay
	}
	return &Toy{cfg: cfg}
}

func (b *Toy) Load(ctx context.Context, desc types.ModelDescriptor, location string) (Model, error) {
	if b.cfg.VocabSize <= 0 {
		return nil, fmt.Errorf("toy backend: vocab size not configured")
	}
	if strings.TrimSpace(location) == "" {
		location = desc.ArtifactLocation
	}
	if strings.TrimSpace(location) == "" {
		return nil, errors.New("artifact location is empty")
	}
	path, err := fsutil.ExpandHome(location)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("artifact %s is empty", path)
	}

	if b.cfg.LoadDelay > 0 {
		select {
		case <-time.After(b.cfg.LoadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newToyModel(b.cfg, xxhash.Sum64(data)), nil
}

// toyModel is a bag-of-embeddings language model: h = sum(decay^k * Emb[t])
// over the sequence, logits = h*W + bias.
type toyModel struct {
	vocab  int
	hidden int
	decay  float32
	emb    []float32 // [vocab x hidden]
	w      []float32 // [hidden x vocab]
	bias   []float32 // [vocab]

	mu     sync.RWMutex
	closed bool
}

func newToyModel(cfg ToyConfig, seed uint64) *toyModel {
	m := &toyModel{
		vocab:  cfg.VocabSize,
		hidden: cfg.Hidden,
		decay:  cfg.Decay,
		emb:    make([]float32, cfg.VocabSize*cfg.Hidden),
		w:      make([]float32, cfg.Hidden*cfg.VocabSize),
		bias:   make([]float32, cfg.VocabSize),
	}
	rng := rand.New(rand.NewSource(int64(seed)))
	scale := float32(1 / math.Sqrt(float64(cfg.Hidden)))
	for i := range m.emb {
		m.emb[i] = float32(rng.NormFloat64()) * scale
	}
	for i := range m.w {
		m.w[i] = float32(rng.NormFloat64()) * scale * 4
	}
	for i := range m.bias {
		m.bias[i] = float32(rng.NormFloat64()) * 0.1
	}
	return m
}

type toyState struct{ steps int }

func (s *toyState) Steps() int { return s.steps }

func (m *toyModel) VocabSize() int { return m.vocab }

func (m *toyModel) NewState() DecodeState { return &toyState{} }

func (m *toyModel) Forward(ctx context.Context, state DecodeState, tokens []int) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrModelClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, errors.New("forward: empty sequence")
	}
	h := make([]float32, m.hidden)
	weight := float32(1)
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i] % m.vocab
		if tok < 0 {
			tok += m.vocab
		}
		row := m.emb[tok*m.hidden : (tok+1)*m.hidden]
		for j := range h {
			h[j] += weight * row[j]
		}
		weight *= m.decay
	}
	logits := make([]float32, m.vocab)
	for j := 0; j < m.vocab; j++ {
		var sum float32
		for i := 0; i < m.hidden; i++ {
			sum += h[i] * m.w[i*m.vocab+j]
		}
		logits[j] = sum + m.bias[j]
	}
	if st, ok := state.(*toyState); ok && st != nil {
		st.steps++
	}
	return logits, nil
}

func (m *toyModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrModelClosed
	}
	m.closed = true
	m.emb, m.w, m.bias = nil, nil, nil
	return nil
}
