// Package content generates the short texts shown next to a moon: a piece
// of trivia, an encouraging message and observing advice. Text comes from
// Gemini when an API key is configured and from local templates otherwise.
package content

import (
	"context"
	"errors"
	"strings"
	"time"
)

// PlaceholderAPIKey is the sample key shipped in example configs. It is
// treated the same as no key.
const PlaceholderAPIKey = "your-api-key-here"

const (
	SourceGemini = "gemini"
	SourceDummy  = "dummy"
)

// unavailable stands in for a section the model did not produce
const unavailable = "Content unavailable."

var ErrEmptyResponse = errors.New("empty response from model")

// Content is one generated set of texts
type Content struct {
	Trivia      string    `json:"trivia" msgpack:"trivia"`
	Message     string    `json:"message" msgpack:"message"`
	Observation string    `json:"observation" msgpack:"observation"`
	Source      string    `json:"source" msgpack:"source"`
	GeneratedAt time.Time `json:"generated_at" msgpack:"generated_at"`
}

// Request describes the moon the texts are about
type Request struct {
	Date      string    // YYYY-MM-DD
	MoonAge   float64   // days
	PhaseName string    // may be empty
	Sunset    time.Time // optional, zero when unknown
}

// CacheKey identifies the prompt inputs that vary between requests: the
// date, plus the sunset minute when one is given.
func (r Request) CacheKey() string {
	if r.Sunset.IsZero() {
		return r.Date
	}
	return r.Date + "@" + r.Sunset.UTC().Format("15:04")
}

// Generator produces Content for a Request
type Generator interface {
	Generate(ctx context.Context, req Request) (Content, error)
}

// KeyConfigured reports whether key is usable for the Gemini API
func KeyConfigured(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != PlaceholderAPIKey
}

var sectionTags = [3]string{"[Trivia]", "[Message]", "[Observation]"}

// ParseResponse splits a model reply into its tagged sections. Each
// section runs from its tag to the next '[' or the end of the text. A
// missing trivia section falls back to the first 200 characters of the
// reply; other missing sections read as unavailable.
func ParseResponse(text string) Content {
	var sections [3]string
	var found [3]bool

	for i, tag := range sectionTags {
		start := strings.Index(text, tag)
		if start < 0 {
			continue
		}
		body := text[start+len(tag):]
		if end := strings.IndexByte(body, '['); end >= 0 {
			body = body[:end]
		}
		sections[i] = strings.TrimSpace(body)
		found[i] = true
	}

	c := Content{
		Trivia:      sections[0],
		Message:     sections[1],
		Observation: sections[2],
	}
	if !found[0] {
		c.Trivia = truncateRunes(strings.TrimSpace(text), 200)
		if c.Trivia == "" {
			c.Trivia = unavailable
		}
	}
	if !found[1] {
		c.Message = unavailable
	}
	if !found[2] {
		c.Observation = unavailable
	}
	return c
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
