// Package backend defines the capability surface hearth requires from a
// compute backend. Concrete backends (llama.cpp bindings, a remote runner,
// the in-process toy model) implement these interfaces once; the rest of the
// system is isolated from backend API churn.
package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the failure taxonomy. Backends wrap these so callers
// can classify failures with errors.Is without depending on backend types.
var (
	ErrModelLoad = errors.New("model load failed")
	ErrContext   = errors.New("context allocation failed")
	ErrTokenize  = errors.New("tokenize failed")
	ErrDecode    = errors.New("decode failed")
)

// Cache precision names accepted by ContextConfig.Validate. The value is
// passed through to the backend; backends may reject precisions they do not
// support.
const (
	CacheF32  = "f32"
	CacheF16  = "f16"
	CacheQ8_0 = "q8_0"
)

// ContextConfig fixes the decode-context parameters at creation time.
type ContextConfig struct {
	// ContextLen is the maximum number of cached token positions.
	ContextLen int
	// BatchSize is the default decode batch capacity.
	BatchSize int
	// Threads is the thread count for single-step decode.
	Threads int
	// ThreadsBatch is the thread count for prompt prefill.
	ThreadsBatch int
	// CachePrecision selects the numeric format of the attention cache.
	CachePrecision string
}

// Validate normalizes the config and rejects values no backend can honor.
func (c *ContextConfig) Validate() error {
	if c.ContextLen <= 0 {
		return fmt.Errorf("context length must be positive, got %d", c.ContextLen)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.Threads <= 0 {
		c.Threads = 1
	}
	if c.ThreadsBatch <= 0 {
		c.ThreadsBatch = c.Threads
	}
	prec := strings.ToLower(strings.TrimSpace(c.CachePrecision))
	if prec == "" {
		prec = CacheF16
	}
	switch prec {
	case CacheF32, CacheF16, CacheQ8_0:
		c.CachePrecision = prec
	default:
		return fmt.Errorf("unknown cache precision %q (expected f32, f16, or q8_0)", c.CachePrecision)
	}
	return nil
}

// Backend loads models. Implementations must be safe to call from a single
// goroutine at a time; hearth serializes all access through the session lock.
type Backend interface {
	Name() string
	// LoadModel reads weights and vocabulary from path. Failures wrap
	// ErrModelLoad.
	LoadModel(path string) (Model, error)
}

// Model is an immutable loaded model. A Model must outlive every Context
// created from it; Close frees the weights and invalidates the handle.
type Model interface {
	// NewContext allocates fresh decode state with an empty attention
	// cache. Failures wrap ErrContext.
	NewContext(cfg ContextConfig) (Context, error)
	// Tokenize converts text to token ids, prepending the
	// beginning-of-sequence marker and recognizing special/control tokens
	// embedded in the text. Failures wrap ErrTokenize.
	Tokenize(text string) ([]int, error)
	// TokenPiece renders a token id to its raw byte fragment. Control
	// tokens legitimately render to zero bytes.
	TokenPiece(id int) []byte
	// EOS returns the end-of-sequence token id, or a negative value if
	// the vocabulary has none.
	EOS() int
	VocabSize() int
	Close() error
}

// Context is mutable decode state bound to one Model: the attention cache
// plus the thread and batch configuration it was created with.
type Context interface {
	// Decode runs one forward pass over the batch, appending every slot
	// to the attention cache. Failures wrap ErrDecode and leave the cache
	// contents unspecified; callers discard the context afterwards.
	Decode(b *Batch) error
	// Logits returns the vocabulary distribution for batch slot i of the
	// most recent Decode call. i = -1 addresses the last slot that had
	// its logits flag set. The returned slice is only valid until the
	// next Decode.
	Logits(i int) []float32
	// Capacity reports the maximum number of cached positions.
	Capacity() int
	Close() error
}
