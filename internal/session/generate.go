package session

import (
	"bytes"
	"time"
	"unicode/utf8"

	"github.com/samcharles93/hearth/internal/logits"
)

// Request carries the parameters of one generation call. It is immutable
// for the duration of the call.
type Request struct {
	Prompt       string
	MaxNewTokens int
	// Temperature <= 0 selects deterministic greedy sampling.
	Temperature float64
	// TopP is the nucleus threshold for stochastic sampling.
	TopP float64
	// Seed pins the random draw for reproducible stochastic output.
	// Zero draws a fresh seed per request.
	Seed int64
}

// StopReason records why a generation ended.
type StopReason int

const (
	// ReasonBudget: the max-new-tokens budget was exhausted.
	ReasonBudget StopReason = iota
	// ReasonStopToken: the model emitted end-of-sequence or an invalid id.
	ReasonStopToken
	// ReasonStopMarker: the rendered text contained the turn-end marker.
	ReasonStopMarker
	// ReasonCapacity: the context reached the safety margin.
	ReasonCapacity
	// ReasonDecodeError: the backend failed mid-generation; partial
	// output is kept and the session stays usable.
	ReasonDecodeError
	// ReasonNotLoaded: no model is loaded.
	ReasonNotLoaded
	// ReasonContextError: the pre-generation context reset failed.
	ReasonContextError
	// ReasonTokenizeError: the prompt could not be tokenized.
	ReasonTokenizeError
	// ReasonPromptTooLong: the prompt leaves no room inside the context
	// window; no decode calls were made.
	ReasonPromptTooLong
)

func (r StopReason) String() string {
	switch r {
	case ReasonBudget:
		return "budget"
	case ReasonStopToken:
		return "stop-token"
	case ReasonStopMarker:
		return "stop-marker"
	case ReasonCapacity:
		return "capacity"
	case ReasonDecodeError:
		return "decode-error"
	case ReasonNotLoaded:
		return "not-loaded"
	case ReasonContextError:
		return "context-error"
	case ReasonTokenizeError:
		return "tokenize-error"
	case ReasonPromptTooLong:
		return "prompt-too-long"
	default:
		return "unknown"
	}
}

// Stats summarizes one generation.
type Stats struct {
	PromptTokens    int
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
}

// Result is the outcome of one generation call, owned by that call.
type Result struct {
	Text   string
	Reason StopReason
	Stats  Stats
}

// StreamFunc receives rendered text as it is produced. Callbacks run inside
// the generation loop under the session lock.
type StreamFunc func(text string)

// Generate runs one blocking generation. It never fails hard: every error
// is folded into the Result so the host boundary can stay a plain string.
// The context is destroyed and recreated first, so no state leaks between
// calls; multi-turn memory is the host's job to re-supply in the prompt.
func (s *Session) Generate(req Request, stream StreamFunc) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil {
		return Result{Reason: ReasonNotLoaded}
	}
	if err := s.resetContextLocked(); err != nil {
		return Result{Reason: ReasonContextError}
	}

	s.state = StateGenerating
	defer func() {
		if s.state == StateGenerating {
			s.state = StateContextReady
		}
	}()

	res := s.generateLocked(req, stream)
	s.log.Debug("generation finished",
		"reason", res.Reason.String(),
		"prompt_tokens", res.Stats.PromptTokens,
		"new_tokens", res.Stats.TokensGenerated,
		"duration", res.Stats.Duration.Round(time.Millisecond),
	)
	return res
}

func (s *Session) generateLocked(req Request, stream StreamFunc) Result {
	start := time.Now()

	tok := tokenizer{model: s.model}
	ids, err := tok.Tokenize(req.Prompt)
	if err != nil {
		s.log.Warn("tokenize failed", "error", err)
		return Result{Reason: ReasonTokenizeError}
	}

	capacity := s.ctx.Capacity()
	margin := s.cfg.SafetyMargin
	if len(ids)+margin >= capacity {
		s.log.Warn("prompt too long",
			"prompt_tokens", len(ids), "capacity", capacity, "margin", margin)
		return Result{
			Text:   PromptTooLongMessage,
			Reason: ReasonPromptTooLong,
			Stats:  Stats{PromptTokens: len(ids)},
		}
	}

	if err := s.engine.Prefill(s.ctx, ids); err != nil {
		s.log.Warn("prefill failed", "error", err)
		return Result{Reason: ReasonDecodeError, Stats: Stats{PromptTokens: len(ids)}}
	}

	pipe := logits.NewPipeline(logits.PipelineConfig{
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
		Seed:        req.Seed,
	})

	var (
		out      []byte
		streamed int
		marker   = []byte(s.cfg.StopMarker)
		vocab    = s.model.VocabSize()
		eos      = s.model.EOS()
		pos      = len(ids)
		reason   = ReasonBudget
		stats    = Stats{PromptTokens: len(ids)}
	)

	emit := func(final bool) {
		if stream == nil || streamed >= len(out) {
			return
		}
		safe := len(out)
		if !final {
			// Hold back bytes that could still become the stop marker
			// or that end mid-rune; they are flushed once resolved.
			safe -= markerOverlap(out, marker)
			safe -= incompleteRuneTail(out[:safe])
		}
		if safe > streamed {
			stream(EncodeTransport(out[streamed:safe]))
			streamed = safe
		}
	}

	// The loop order is deliberate: sample, render and match the stop
	// marker, then decode. Decoding first would spend a forward pass on a
	// token that stop detection discards; decoding after keeps the cache
	// consistent with exactly the tokens accepted into the output.
	for i := 0; i < req.MaxNewTokens; i++ {
		next := pipe.Sample(s.ctx.Logits(-1))
		if next < 0 || next >= vocab || next == eos {
			reason = ReasonStopToken
			break
		}

		out = append(out, tok.Render(next)...)
		stats.TokensGenerated++

		if len(marker) > 0 {
			if idx := bytes.Index(out, marker); idx >= 0 {
				out = out[:idx]
				reason = ReasonStopMarker
				break
			}
		}
		emit(false)

		if err := s.engine.Step(s.ctx, next, pos); err != nil {
			s.log.Warn("decode failed mid-generation, keeping partial output",
				"position", pos, "error", err)
			reason = ReasonDecodeError
			break
		}
		pos++

		if pos >= capacity-margin {
			reason = ReasonCapacity
			break
		}
	}
	emit(true)

	stats.Duration = time.Since(start)
	if secs := stats.Duration.Seconds(); secs > 0 {
		stats.TPS = float64(stats.TokensGenerated) / secs
	}
	return Result{Text: EncodeTransport(out), Reason: reason, Stats: stats}
}

// markerOverlap returns the length of the longest suffix of b that is a
// proper prefix of marker. Those bytes may still complete into the marker
// on a later token and must not be streamed yet.
func markerOverlap(b, marker []byte) int {
	maxL := len(marker) - 1
	if maxL > len(b) {
		maxL = len(b)
	}
	for l := maxL; l > 0; l-- {
		if bytes.HasSuffix(b, marker[:l]) {
			return l
		}
	}
	return 0
}

// incompleteRuneTail returns the number of trailing bytes that start a
// multi-byte UTF-8 sequence the buffer has not finished yet.
func incompleteRuneTail(b []byte) int {
	for i := 1; i <= 3 && i <= len(b); i++ {
		c := b[len(b)-i]
		if c&0xC0 != 0x80 { // rune start
			if c >= 0x80 && !utf8.Valid(b[len(b)-i:]) {
				return i
			}
			return 0
		}
	}
	return 0
}
