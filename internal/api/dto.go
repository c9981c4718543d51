package api

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// GenerateRequest is the POST /v1/generate body. Sampling fields mirror the
// session request; omitted fields fall back to server defaults.
type GenerateRequest struct {
	Prompt       string   `json:"prompt"`
	MaxNewTokens *int     `json:"max_new_tokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	TopP         *float64 `json:"top_p,omitempty"`
	Seed         *int64   `json:"seed,omitempty"`
}

// GenerateResponse is the generation outcome. Text is empty on hard
// failures; Reason says why generation stopped.
type GenerateResponse struct {
	ID     string        `json:"id"`
	Text   string        `json:"text"`
	Reason string        `json:"reason"`
	Usage  GenerateUsage `json:"usage"`
}

type GenerateUsage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	DurationMS       int64   `json:"duration_ms"`
	TokensPerSecond  float64 `json:"tokens_per_second"`
}

// InfoResponse is the GET /v1/info body.
type InfoResponse struct {
	Loaded bool   `json:"loaded"`
	Model  string `json:"model,omitempty"`
	Info   string `json:"info"`
}

type errorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var v T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("decode request: %w", err)
	}
	return v, nil
}

func encodeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
