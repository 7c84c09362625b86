package observability

import (
	"strconv"
	"sync"
	"time"
)

// Auth event counter keys.
const (
	AuthLoginSucceeded       = "login_succeeded"
	AuthLoginFailed          = "login_failed"
	AuthTokenExpired         = "token_expired"
	AuthTokenMalformed       = "token_malformed"
	AuthRequestAuthenticated = "request_authenticated"
	AuthRequestRejected      = "request_rejected"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	authCount    map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		authCount:    make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordAuth increments the counter for an authentication event.
func (m *Metrics) RecordAuth(event string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authCount[event]++
}

// AuthCount returns the current count for an authentication event.
func (m *Metrics) AuthCount(event string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authCount[event]
}

// Snapshot copies every counter, keyed by family.
func (m *Metrics) Snapshot() map[string]map[string]int64 {
	out := map[string]map[string]int64{
		"requests": {},
		"errors":   {},
		"auth":     {},
	}
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		out["requests"][k] = v
	}
	for k, v := range m.errorCount {
		out["errors"][k] = v
	}
	for k, v := range m.authCount {
		out["auth"][k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
