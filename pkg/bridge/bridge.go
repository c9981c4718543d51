// Package bridge exposes the inference session across a foreign-function
// style boundary: a handful of blocking operations with string/bool results
// and no error values. Hosts embed this package (or a thin cgo export over
// it) and are expected to serialize their own calls; the session lock
// underneath is a safety net, not a substitute for correct host usage.
//
// Nothing in this package may panic across the boundary: every operation
// recovers internally and degrades to its documented failure value.
package bridge

import (
	"fmt"

	"github.com/samcharles93/hearth/internal/backend"
	"github.com/samcharles93/hearth/internal/logger"
	"github.com/samcharles93/hearth/internal/session"
)

// Options configures a Bridge. Backend is required.
type Options struct {
	Backend backend.Backend
	Logger  logger.Logger

	Context      backend.ContextConfig
	SafetyMargin int
	StopMarker   string
}

// Bridge owns one session and adapts it to the host calling convention.
type Bridge struct {
	s   *session.Session
	log logger.Logger
}

// New builds a bridge around a fresh session.
func New(opts Options) (*Bridge, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	s, err := session.New(session.Config{
		Backend:      opts.Backend,
		Logger:       opts.Logger,
		Context:      opts.Context,
		SafetyMargin: opts.SafetyMargin,
		StopMarker:   opts.StopMarker,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	return &Bridge{s: s, log: opts.Logger.With("component", "bridge")}, nil
}

// Load loads the model at path, replacing any previously loaded model.
// contextLen overrides the configured context capacity when positive. The
// boolean is the only failure signal hosts get; details go to the log.
func (b *Bridge) Load(path string, contextLen int) (ok bool) {
	defer b.recoverTo("load", func() { ok = false })
	return b.s.Load(path, contextLen) == nil
}

// Generate runs one blocking generation and returns the produced text.
// Hard failures return the empty string; a mid-generation decode failure
// returns whatever text was produced before it.
func (b *Bridge) Generate(prompt string, maxNewTokens int, temperature, topP float64) (text string) {
	defer b.recoverTo("generate", func() { text = "" })
	res := b.s.Generate(session.Request{
		Prompt:       prompt,
		MaxNewTokens: maxNewTokens,
		Temperature:  temperature,
		TopP:         topP,
	}, nil)
	return res.Text
}

// IsLoaded reports whether both model and context are allocated.
func (b *Bridge) IsLoaded() (loaded bool) {
	defer b.recoverTo("isLoaded", func() { loaded = false })
	return b.s.IsLoaded()
}

// Unload frees all resources. Idempotent.
func (b *Bridge) Unload() {
	defer b.recoverTo("unload", func() {})
	b.s.Unload()
}

// ModelInfo returns the human-readable status string.
func (b *Bridge) ModelInfo() (info string) {
	defer b.recoverTo("modelInfo", func() { info = "No model loaded" })
	return b.s.Info()
}

// Close releases the session. Provided for Go hosts that treat the bridge
// as a resource; FFI hosts call Unload.
func (b *Bridge) Close() error {
	b.Unload()
	return nil
}

// recoverTo converts a panic into the operation's failure value. A panic
// escaping across the boundary would abort the host process, which the
// boundary contract forbids.
func (b *Bridge) recoverTo(op string, fallback func()) {
	if rec := recover(); rec != nil {
		b.log.Error("panic recovered at host boundary", "op", op, "panic", rec)
		fallback()
	}
}
