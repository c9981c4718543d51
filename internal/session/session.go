// Package session implements the inference session manager: model and
// context lifecycle, the batched decode loop, sampler selection, overflow
// handling, and the locking that serializes all access to the backend.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/samcharles93/hearth/internal/backend"
	"github.com/samcharles93/hearth/internal/logger"
)

// State tracks the session lifecycle. Transitions:
// Idle -> (Load) -> ContextReady -> (Generate) -> ContextReady, with
// ModelReady as the degraded state after a failed context reset.
type State int

const (
	StateIdle State = iota
	StateModelReady
	StateContextReady
	StateGenerating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateModelReady:
		return "model-ready"
	case StateContextReady:
		return "context-ready"
	case StateGenerating:
		return "generating"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultSafetyMargin is the number of context slots reserved at the end of
// the window so generation always stops before the cache overflows.
const DefaultSafetyMargin = 32

// DefaultStopMarker is the in-band turn-end sequence. It is matched against
// rendered text and never emitted; distinct from the vocabulary EOS token.
const DefaultStopMarker = "<|im_end|>"

// PromptTooLongMessage is the fixed user-facing result for prompts that do
// not leave room for generation inside the context window.
const PromptTooLongMessage = "Error: prompt is too long for the context window, please shorten it."

// Config assembles a session. Backend is required; everything else has
// defaults applied by New.
type Config struct {
	Backend backend.Backend
	Logger  logger.Logger

	// Context carries the decode-context parameters fixed at load time.
	Context backend.ContextConfig

	// SafetyMargin reserves context slots at the end of the window.
	SafetyMargin int
	// StopMarker is the turn-end string matched against rendered output.
	// Empty selects DefaultStopMarker.
	StopMarker string
}

// Session owns one Model/Context pair. A single mutex guards the entire
// load/generate/unload surface: no two operations interleave, and a
// generation runs to completion before the lock is released.
type Session struct {
	mu  sync.Mutex
	cfg Config
	log logger.Logger

	state       State
	model       backend.Model
	ctx         backend.Context
	ctxCfg      backend.ContextConfig
	modelPath   string
	fingerprint uint64

	engine *batchEngine
}

// New validates cfg and returns an idle session.
func New(cfg Config) (*Session, error) {
	if cfg.Backend == nil {
		return nil, errors.New("session: backend is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Context.ContextLen <= 0 {
		cfg.Context.ContextLen = 2048
	}
	if cfg.Context.BatchSize <= 0 {
		cfg.Context.BatchSize = 512
	}
	if err := cfg.Context.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = DefaultSafetyMargin
	}
	if cfg.StopMarker == "" {
		cfg.StopMarker = DefaultStopMarker
	}
	return &Session{
		cfg:    cfg,
		log:    cfg.Logger.With("component", "session"),
		state:  StateIdle,
		engine: newBatchEngine(cfg.Context.BatchSize),
	}, nil
}

// Load loads the model at path and allocates the first decode context,
// replacing any previously loaded model. contextLen overrides the configured
// context capacity when positive; the override lasts until the next Load,
// it never alters the configured value.
func (s *Session) Load(path string, contextLen int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unloadLocked()

	s.ctxCfg = s.cfg.Context
	if contextLen > 0 {
		s.ctxCfg.ContextLen = contextLen
	}

	start := time.Now()
	s.log.Info("loading model", "path", path, "context_len", s.ctxCfg.ContextLen)

	model, err := s.cfg.Backend.LoadModel(path)
	if err != nil {
		s.log.Error("model load failed", "path", path, "error", err)
		return fmt.Errorf("load %s: %w", path, err)
	}

	ctx, err := model.NewContext(s.ctxCfg)
	if err != nil {
		// No partial state: a model without a context is useless to the
		// caller, so free it and stay idle.
		_ = model.Close()
		s.log.Error("context allocation failed", "error", err)
		return fmt.Errorf("create context: %w", err)
	}

	s.model = model
	s.ctx = ctx
	s.modelPath = path
	s.fingerprint = fingerprintFile(path)
	s.state = StateContextReady

	s.log.Info("model loaded",
		"path", path,
		"vocab", model.VocabSize(),
		"context_len", ctx.Capacity(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// IsLoaded reports whether both model and context are currently allocated.
func (s *Session) IsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateContextReady && s.model != nil && s.ctx != nil
}

// Unload frees all resources. It is idempotent.
func (s *Session) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unloadLocked()
}

// Close implements io.Closer for callers that manage the session as a
// resource.
func (s *Session) Close() error {
	s.Unload()
	return nil
}

func (s *Session) unloadLocked() {
	if s.ctx != nil {
		_ = s.ctx.Close()
		s.ctx = nil
	}
	if s.model != nil {
		_ = s.model.Close()
		s.model = nil
	}
	if s.state != StateIdle {
		s.log.Info("model unloaded", "path", s.modelPath)
	}
	s.modelPath = ""
	s.fingerprint = 0
	s.state = StateIdle
}

// resetContextLocked destroys and recreates the decode context so every
// generation starts from an empty attention cache. Incremental cache reuse
// was tried against earlier backend revisions and reverted; full recreation
// costs tens of milliseconds and survives backend version changes.
func (s *Session) resetContextLocked() error {
	if s.ctx != nil {
		_ = s.ctx.Close()
		s.ctx = nil
	}
	ctx, err := s.model.NewContext(s.ctxCfg)
	if err != nil {
		s.state = StateModelReady
		s.log.Error("context reset failed", "error", err)
		return fmt.Errorf("reset context: %w", err)
	}
	s.ctx = ctx
	s.state = StateContextReady
	return nil
}

// Info returns the human-readable status string. The leading fields follow
// the historic "Vocab: N | Ctx: M" shape hosts already parse.
func (s *Session) Info() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil {
		return "No model loaded"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Vocab: %d", s.model.VocabSize())
	capacity := s.ctxCfg.ContextLen
	if s.ctx != nil {
		capacity = s.ctx.Capacity()
	}
	fmt.Fprintf(&b, " | Ctx: %d", capacity)
	fmt.Fprintf(&b, " | Threads: %d/%d", s.ctxCfg.ThreadsBatch, s.ctxCfg.Threads)
	fmt.Fprintf(&b, " | Batch: %d", s.ctxCfg.BatchSize)
	fmt.Fprintf(&b, " | Cache: %s", s.ctxCfg.CachePrecision)
	if s.fingerprint != 0 {
		fmt.Fprintf(&b, " | Model: %016x", s.fingerprint)
	}
	return b.String()
}

// ModelPath returns the path of the loaded model, or "" when idle.
func (s *Session) ModelPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelPath
}

// fingerprintFile hashes the model file for identification in status output.
// Backends that do not read the filesystem (the toy backend) have no file to
// hash; zero means "no fingerprint".
func fingerprintFile(path string) uint64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0
	}
	return h.Sum64()
}
