package output

import (
	"errors"
	"fmt"
	"io"
)

// Sink is a destination for check results and lifecycle events.
type Sink interface {
	Write(v any) error
	Close() error
}

// Manager fans every value out to all registered sinks. A failing sink does
// not stop the others; errors are joined. After Close the manager is empty and
// further writes fail.
type Manager struct {
	sinks  []Sink
	closed bool
}

var errManagerClosed = errors.New("output manager is closed")

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if m.closed {
		return errManagerClosed
	}
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

func (m *Manager) Write(v any) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if m.closed {
		return errManagerClosed
	}
	return m.each("write", func(s Sink) error { return s.Write(v) })
}

// Close closes every sink once. Calling it again is a no-op.
func (m *Manager) Close() error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if m.closed {
		return nil
	}
	err := m.each("close", Sink.Close)
	m.sinks = nil
	m.closed = true
	return err
}

func (m *Manager) each(op string, fn func(Sink) error) error {
	var errs []error
	for _, s := range m.sinks {
		if err := fn(s); err != nil {
			errs = append(errs, fmt.Errorf("%s %T: %w", op, s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s sinks: %w", op, errors.Join(errs...))
	}
	return nil
}

type flusher interface {
	Flush() error
}

func flushIfPossible(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
