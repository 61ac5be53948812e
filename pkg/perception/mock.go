package perception

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-rover/pkg/directive"
)

// Mock implements the perception contract for testing.
type Mock struct {
	// PerceiveFunc is called when Perceive is invoked.
	PerceiveFunc func(ctx context.Context) (directive.Directive, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu     sync.Mutex
	calls  []MockCall
	closed bool
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Time   time.Time
}

// NewMock creates a mock that answers the given directives in order and
// repeats the last one once exhausted. With no directives it answers Stop.
func NewMock(answers ...directive.Directive) *Mock {
	m := &Mock{}
	i := 0
	m.PerceiveFunc = func(ctx context.Context) (directive.Directive, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if len(answers) == 0 {
			return directive.Stop, nil
		}
		d := answers[len(answers)-1]
		if i < len(answers) {
			d = answers[i]
		}
		i++
		return d, nil
	}
	return m
}

// Perceive calls PerceiveFunc and records the call.
func (m *Mock) Perceive(ctx context.Context) (directive.Directive, error) {
	m.record("Perceive")
	if m.PerceiveFunc != nil {
		return m.PerceiveFunc(ctx)
	}
	return directive.Unknown, ErrUnrecognized
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close")
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of calls to a method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mock) record(method string) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: method, Time: time.Now()})
	m.mu.Unlock()
}
