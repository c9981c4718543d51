package session

import (
	"fmt"

	"github.com/samcharles93/hearth/internal/backend"
)

// batchEngine builds decode batches and drives prefill and single-step
// decode calls against a context.
type batchEngine struct {
	defaultBatch int
	step         *backend.Batch
}

func newBatchEngine(defaultBatch int) *batchEngine {
	if defaultBatch <= 0 {
		defaultBatch = 512
	}
	return &batchEngine{
		defaultBatch: defaultBatch,
		step:         backend.NewBatch(1),
	}
}

// Prefill decodes the full prompt in one batch: every token at increasing
// positions from 0 on sequence 0, with logits materialized only for the
// final slot — only the last position's distribution is needed to sample
// the first generated token. The batch is sized to the larger of the prompt
// length and the configured default so a long prompt is never truncated.
func (e *batchEngine) Prefill(ctx backend.Context, tokens []int) error {
	if len(tokens) == 0 {
		return fmt.Errorf("prefill: %w: no tokens", backend.ErrDecode)
	}
	size := e.defaultBatch
	if len(tokens) > size {
		size = len(tokens)
	}
	b := backend.NewBatch(size)
	for i, tok := range tokens {
		if err := b.Add(tok, i, 0, i == len(tokens)-1); err != nil {
			return fmt.Errorf("prefill: %w", err)
		}
	}
	if err := ctx.Decode(b); err != nil {
		return fmt.Errorf("prefill: %w", err)
	}
	return nil
}

// Step decodes one sampled token at the given position, reusing a one-slot
// batch. Logits are always materialized: every step's distribution feeds
// the next sample.
func (e *batchEngine) Step(ctx backend.Context, token, pos int) error {
	e.step.Clear()
	if err := e.step.Add(token, pos, 0, true); err != nil {
		return fmt.Errorf("step: %w", err)
	}
	if err := ctx.Decode(e.step); err != nil {
		return fmt.Errorf("step at position %d: %w", pos, err)
	}
	return nil
}
