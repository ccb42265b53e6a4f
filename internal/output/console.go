package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"reposplit/internal/check"
)

var statusColors = map[check.Status]*color.Color{
	check.StatusActive:   color.New(color.FgGreen),
	check.StatusArchived: color.New(color.FgYellow),
	check.StatusMissing:  color.New(color.FgRed, color.Bold),
	check.StatusInvalid:  color.New(color.FgMagenta),
	check.StatusError:    color.New(color.FgRed),
}

type ConsoleSink struct {
	writer          io.Writer
	format          string // "text", "json", "ndjson"
	mu              sync.Mutex
	results         []check.Result
	allowedStatuses map[check.Status]bool
}

func NewConsoleSink(w io.Writer, format string, filterStatuses []string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}

	s := &ConsoleSink{
		writer:  w,
		format:  format,
		results: []check.Result{},
	}
	if len(filterStatuses) > 0 {
		s.allowedStatuses = make(map[check.Status]bool)
		for _, st := range filterStatuses {
			s.allowedStatuses[check.Status(strings.ToUpper(strings.TrimSpace(st)))] = true
		}
	}
	return s
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := v.(check.Result); ok && len(s.allowedStatuses) > 0 && !s.allowedStatuses[r.Status] {
		return nil
	}

	switch s.format {
	case "json":
		if r, ok := v.(check.Result); ok {
			s.results = append(s.results, r)
		}
		return nil
	case "ndjson":
		enc := json.NewEncoder(s.writer)
		enc.SetEscapeHTML(false)
		var err error
		switch t := v.(type) {
		case Event:
			err = enc.Encode(t)
		case check.Result:
			err = enc.Encode(eventFromResult(t))
		default:
			return nil
		}
		if err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	case "text":
		r, ok := v.(check.Result)
		if !ok {
			return nil
		}
		if err := writeResultLine(s.writer, r); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func writeResultLine(w io.Writer, r check.Result) error {
	status := "[" + string(r.Status) + "]"
	if c, ok := statusColors[r.Status]; ok {
		status = c.Sprint(status)
	}
	line := status + " " + r.Key
	if r.Repo != "" && !strings.EqualFold(r.Repo, r.Key) {
		line += " (" + r.Repo + ")"
	}
	if r.PushedAt != nil {
		line += " pushed " + r.PushedAt.UTC().Format("2006-01-02")
	}
	if r.Message != "" {
		line += " - " + r.Message
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		enc := json.NewEncoder(s.writer)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s.results); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	case "text", "ndjson":
		return nil
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}
