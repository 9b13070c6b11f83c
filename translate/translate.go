// Package translate turns free-text requests into structured queries with a
// single tool-less model call.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sammcj/actorglue/llm"
	"github.com/sammcj/actorglue/types"
)

// Grammar describes the target language of a translation
type Grammar struct {
	Name         string
	Instructions string
	// Structured grammars are parsed as a JSON object
	Structured bool
}

var (
	// GmailSearch produces a Gmail search-box query
	GmailSearch = Grammar{
		Name: "gmail_search",
		Instructions: `Translate the user's request into a single Gmail search query using Gmail search operators ` +
			`(from:, to:, subject:, has:attachment, filename:, after:YYYY/MM/DD, before:YYYY/MM/DD, newer_than:, label:, is:unread). ` +
			`Reply with the query only, no explanation.`,
	}

	// PhoneCall produces the parameters of an outbound phone call
	PhoneCall = Grammar{
		Name: "phone_call",
		Instructions: `Extract outbound phone call parameters from the user's request. Reply with a single JSON object ` +
			`and nothing else, using these keys when the request mentions them: "from_number" and "to_number" ` +
			`(E.164 format, e.g. +14155550100), "agent_id", and "retell_llm_dynamic_variables" (an object of ` +
			`string values the voice agent can use, such as customer_name). Omit keys the request does not mention.`,
		Structured: true,
	}
)

// ParseError reports model output that could not be read in the target grammar
type ParseError struct {
	Grammar string
	RawText string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse %s translation %q: %v", e.Grammar, e.RawText, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Result is the outcome of a translation. Callers must check ParseError
// before using Text or Data.
type Result struct {
	Text       string
	Data       map[string]any
	ParseError *ParseError
}

// OK reports whether the translation is usable
func (r Result) OK() bool { return r.ParseError == nil }

// String returns a string field of a structured result
func (r Result) String(key string) string {
	if v, ok := r.Data[key].(string); ok {
		return v
	}
	return ""
}

// Map returns an object field of a structured result
func (r Result) Map(key string) map[string]any {
	if v, ok := r.Data[key].(map[string]any); ok {
		return v
	}
	return nil
}

// Translator asks the model to rewrite requests into a grammar
type Translator struct {
	provider  llm.Provider
	model     string
	maxTokens int
	logger    *slog.Logger
}

// New creates a translator. An empty model uses the provider's default.
func New(provider llm.Provider, model string, logger *slog.Logger) *Translator {
	return &Translator{provider: provider, model: model, maxTokens: 1024, logger: logger}
}

// Translate converts request into grammar g. Model failures are returned as
// errors; unreadable output comes back as Result.ParseError.
func (t *Translator) Translate(ctx context.Context, request string, g Grammar) (Result, error) {
	resp, err := t.provider.Chat(ctx, llm.Request{
		Model:     t.model,
		System:    g.Instructions,
		Turns:     []types.Turn{{Role: types.RoleUser, Blocks: []types.Block{types.TextBlock(request)}}},
		MaxTokens: t.maxTokens,
	})
	if err != nil {
		return Result{}, fmt.Errorf("translate to %s: %w", g.Name, err)
	}

	raw := resp.Turn().Text()
	text := StripFences(raw)
	t.logger.Debug("translation", "grammar", g.Name, "raw", raw, "text", text)

	if text == "" {
		return Result{ParseError: &ParseError{Grammar: g.Name, RawText: raw, Err: fmt.Errorf("empty translation")}}, nil
	}
	if !g.Structured {
		return Result{Text: text}, nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return Result{Text: text, ParseError: &ParseError{Grammar: g.Name, RawText: raw, Err: err}}, nil
	}
	if data == nil {
		return Result{Text: text, ParseError: &ParseError{Grammar: g.Name, RawText: raw, Err: fmt.Errorf("expected a JSON object")}}, nil
	}
	return Result{Text: text, Data: data}, nil
}

var languageTag = regexp.MustCompile(`^[A-Za-z0-9_+-]+$`)

// StripFences unwraps a markdown code fence, with or without a language
// tag line, and then one pair of matching surrounding quotes.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		if first, body, hasNewline := strings.Cut(rest, "\n"); hasNewline {
			tag := strings.TrimSpace(first)
			// a lone word with nothing after it is the answer, not a tag
			content := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(body), "```"))
			if tag == "" || (languageTag.MatchString(tag) && content != "") {
				rest = body
			}
		}
		rest = strings.TrimSpace(rest)
		s = strings.TrimSpace(strings.TrimSuffix(rest, "```"))
	}

	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
