// Package toy provides a small deterministic in-process backend used for
// tests and demos. It implements the full capability surface with a
// byte-level vocabulary and a tiny recurrent scoring model, so the session
// layer can be exercised end to end without model files or native kernels.
package toy

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/samcharles93/hearth/internal/backend"
)

// Vocabulary layout: ids 0 and 1 are the BOS/EOS control tokens, 2..257 map
// the 256 byte values, 258 is a padding control token that renders to zero
// bytes.
const (
	bosID     = 0
	eosID     = 1
	byteBase  = 2
	padID     = 258
	vocabSize = 259
)

const hiddenSize = 32

// Backend builds toy models. The zero value is usable; the Fail* fields
// inject failures for tests.
type Backend struct {
	// FailLoad makes LoadModel fail unconditionally.
	FailLoad bool
	// FailContext makes Model.NewContext fail unconditionally.
	FailContext bool
	// FailDecodeAfter makes the Nth and subsequent Decode calls on every
	// context fail. Zero disables injection.
	FailDecodeAfter int
}

func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "toy" }

// LoadModel derives deterministic weights from the path string, so the same
// path always yields the same model. The filesystem is not consulted.
func (b *Backend) LoadModel(path string) (backend.Model, error) {
	if b.FailLoad {
		return nil, fmt.Errorf("%w: injected failure for %q", backend.ErrModelLoad, path)
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty model path", backend.ErrModelLoad)
	}
	m := &model{backend: b, path: path}
	m.fill(xxhash.Sum64String(path))
	return m, nil
}

type model struct {
	backend *Backend
	path    string
	emb     [][]float32 // [vocab][hidden]
	proj    [][]float32 // [vocab][hidden], scored by dot product
	closed  bool
}

// fill populates the embedding and projection matrices from a seeded LCG.
func (m *model) fill(seed uint64) {
	state := seed | 1
	next := func() float32 {
		state = state*6364136223846793005 + 1442695040888963407
		// Top bits, mapped into [-0.5, 0.5).
		return float32(state>>40)/float32(1<<24) - 0.5
	}
	m.emb = make([][]float32, vocabSize)
	m.proj = make([][]float32, vocabSize)
	for i := 0; i < vocabSize; i++ {
		m.emb[i] = make([]float32, hiddenSize)
		m.proj[i] = make([]float32, hiddenSize)
		for j := 0; j < hiddenSize; j++ {
			m.emb[i][j] = next()
			m.proj[i][j] = next()
		}
	}
}

// specials are recognized during tokenization (parse-special behavior): a
// literal occurrence in the text maps to the control token id instead of
// being split into bytes.
var specials = []struct {
	text string
	id   int
}{
	{"<s>", bosID},
	{"</s>", eosID},
	{"<pad>", padID},
}

func (m *model) Tokenize(text string) ([]int, error) {
	if m.closed {
		return nil, fmt.Errorf("%w: model closed", backend.ErrTokenize)
	}
	ids := []int{bosID}
	for i := 0; i < len(text); {
		matched := false
		for _, sp := range specials {
			if strings.HasPrefix(text[i:], sp.text) {
				ids = append(ids, sp.id)
				i += len(sp.text)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		ids = append(ids, byteBase+int(text[i]))
		i++
	}
	return ids, nil
}

func (m *model) TokenPiece(id int) []byte {
	if id >= byteBase && id < byteBase+256 {
		return []byte{byte(id - byteBase)}
	}
	// Control tokens render to nothing.
	return nil
}

func (m *model) EOS() int       { return eosID }
func (m *model) VocabSize() int { return vocabSize }

func (m *model) Close() error {
	m.closed = true
	return nil
}

func (m *model) NewContext(cfg backend.ContextConfig) (backend.Context, error) {
	if m.closed {
		return nil, fmt.Errorf("%w: model closed", backend.ErrContext)
	}
	if m.backend.FailContext {
		return nil, fmt.Errorf("%w: injected failure", backend.ErrContext)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrContext, err)
	}
	return &decodeContext{
		model: m,
		cfg:   cfg,
		h:     make([]float32, hiddenSize),
	}, nil
}

// decodeContext carries the recurrent hidden state standing in for a real
// attention cache: every decoded token folds into h, so output depends on
// the full decoded history exactly like a KV cache would.
type decodeContext struct {
	model   *model
	cfg     backend.ContextConfig
	h       []float32
	npos    int
	decodes int

	slotLogits [][]float32 // per-slot logits of the last Decode, nil when unflagged
	lastFlag   int
	closed     bool
}

func (c *decodeContext) Decode(b *backend.Batch) error {
	if c.closed {
		return fmt.Errorf("%w: context closed", backend.ErrDecode)
	}
	c.decodes++
	if f := c.model.backend.FailDecodeAfter; f > 0 && c.decodes >= f {
		return fmt.Errorf("%w: injected failure at call %d", backend.ErrDecode, c.decodes)
	}
	if b.Len() == 0 {
		return fmt.Errorf("%w: empty batch", backend.ErrDecode)
	}
	if c.npos+b.Len() > c.cfg.ContextLen {
		return fmt.Errorf("%w: cache overflow (%d + %d > %d)",
			backend.ErrDecode, c.npos, b.Len(), c.cfg.ContextLen)
	}

	c.slotLogits = make([][]float32, b.Len())
	c.lastFlag = -1
	for i, tok := range b.Tokens {
		if tok < 0 || tok >= vocabSize {
			return fmt.Errorf("%w: token %d out of range", backend.ErrDecode, tok)
		}
		emb := c.model.emb[tok]
		for j := range c.h {
			c.h[j] = 0.9*c.h[j] + emb[j]
		}
		c.npos++
		if b.GetLogits[i] {
			c.slotLogits[i] = c.score()
			c.lastFlag = i
		}
	}
	return nil
}

func (c *decodeContext) score() []float32 {
	out := make([]float32, vocabSize)
	for id := 0; id < vocabSize; id++ {
		var sum float32
		row := c.model.proj[id]
		for j := range c.h {
			sum += c.h[j] * row[j]
		}
		out[id] = sum
	}
	return out
}

func (c *decodeContext) Logits(i int) []float32 {
	if i == -1 {
		i = c.lastFlag
	}
	if i < 0 || i >= len(c.slotLogits) {
		return nil
	}
	return c.slotLogits[i]
}

func (c *decodeContext) Capacity() int { return c.cfg.ContextLen }

func (c *decodeContext) Close() error {
	c.closed = true
	return nil
}
