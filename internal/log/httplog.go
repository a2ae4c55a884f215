package log

import (
	"sync"
	"time"
)

// httpLogCapacity is how many requests the HTTP log keeps
const httpLogCapacity = 1000

// HTTPLogEntry represents an HTTP request/response log entry
type HTTPLogEntry struct {
	Timestamp  time.Time     `json:"timestamp" msgpack:"timestamp"`
	Method     string        `json:"method" msgpack:"method"`
	Path       string        `json:"path" msgpack:"path"`
	Status     int           `json:"status" msgpack:"status"`
	Duration   time.Duration `json:"duration" msgpack:"duration"`
	Size       int           `json:"size" msgpack:"size"`
	RemoteAddr string        `json:"remote_addr" msgpack:"remote_addr"`
	UserAgent  string        `json:"user_agent" msgpack:"user_agent"`
	Error      string        `json:"error,omitempty" msgpack:"error,omitempty"`
}

// HTTPLogBuffer is a fixed-size ring of recent requests, safe for
// concurrent use.
type HTTPLogBuffer struct {
	mu      sync.Mutex
	entries []HTTPLogEntry
	next    int
	full    bool
}

// NewHTTPLogBuffer returns a buffer holding the last capacity entries.
func NewHTTPLogBuffer(capacity int) *HTTPLogBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &HTTPLogBuffer{entries: make([]HTTPLogEntry, capacity)}
}

// Add appends an entry, evicting the oldest when full.
func (b *HTTPLogBuffer) Add(e HTTPLogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns
// everything held.
func (b *HTTPLogBuffer) Recent(limit int) []HTTPLogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.next
	if b.full {
		n = len(b.entries)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]HTTPLogEntry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (b.next - i + len(b.entries)) % len(b.entries)
		out = append(out, b.entries[idx])
	}
	return out
}

var (
	httpLogBuffer     *HTTPLogBuffer
	httpLogBufferOnce sync.Once
)

// GetHTTPLogBuffer returns the process-wide HTTP log, creating it if necessary
func GetHTTPLogBuffer() *HTTPLogBuffer {
	httpLogBufferOnce.Do(func() {
		httpLogBuffer = NewHTTPLogBuffer(httpLogCapacity)
	})
	return httpLogBuffer
}

// LogHTTPRequest records a finished request in the HTTP log and writes it
// to the main logger, at error level when err is set.
func LogHTTPRequest(e HTTPLogEntry, err error) {
	if err != nil {
		e.Error = err.Error()
	}
	GetHTTPLogBuffer().Add(e)

	fields := []interface{}{
		"method", e.Method,
		"path", e.Path,
		"status", e.Status,
		"duration_ms", e.Duration.Milliseconds(),
		"size", e.Size,
		"remote_addr", e.RemoteAddr,
	}
	switch {
	case err != nil:
		log.Errorw("http request failed", append(fields, "error", e.Error)...)
	case e.Status >= 500:
		log.Warnw("http request", fields...)
	default:
		log.Debugw("http request", fields...)
	}
}
