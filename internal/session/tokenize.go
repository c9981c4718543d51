package session

import (
	"fmt"

	"github.com/samcharles93/hearth/internal/backend"
)

// tokenizer adapts the loaded model's vocabulary for the generation loop.
// Tokenization always includes the beginning-of-sequence marker and special
// token parsing; both are backend responsibilities and enabled
// unconditionally.
type tokenizer struct {
	model backend.Model
}

// Tokenize converts prompt text to token ids. Zero tokens for non-empty
// text means the backend misbehaved; the request is aborted rather than
// decoded into nothing.
func (t tokenizer) Tokenize(text string) ([]int, error) {
	ids, err := t.model.Tokenize(text)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 && len(text) > 0 {
		return nil, fmt.Errorf("%w: empty tokenization for %d bytes of text",
			backend.ErrTokenize, len(text))
	}
	return ids, nil
}

// Render converts a token to its byte fragment. An empty fragment is a
// legitimate result for control tokens, not a failure.
func (t tokenizer) Render(id int) []byte {
	return t.model.TokenPiece(id)
}
