package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"reposplit/internal/check"
)

// FileSink writes check output to a file. In json mode results are streamed
// as elements of one indented array and lifecycle events are dropped; in
// ndjson mode every event and result is one line.
type FileSink struct {
	path   string
	format string
	file   *os.File
	w      *bufio.Writer
	mu     sync.Mutex
	n      int
}

func NewFileSink(path string, format string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}

	if format == "" {
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".json":
			format = "json"
		case ".ndjson", ".jsonl":
			format = "ndjson"
		default:
			return nil, fmt.Errorf("cannot infer output format from file extension %q", ext)
		}
	}
	if format != "json" && format != "ndjson" {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	return &FileSink{path: path, format: format, file: f, w: bufio.NewWriter(f)}, nil
}

func (s *FileSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		r, ok := v.(check.Result)
		if !ok {
			return nil
		}
		return s.writeArrayElement(r)
	}

	enc := json.NewEncoder(s.w)
	enc.SetEscapeHTML(false)
	switch t := v.(type) {
	case Event:
		return enc.Encode(t)
	case check.Result:
		return enc.Encode(eventFromResult(t))
	}
	return nil
}

func (s *FileSink) writeArrayElement(r check.Result) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("  ", "  ")
	if err := enc.Encode(r); err != nil {
		return err
	}

	sep := ",\n  "
	if s.n == 0 {
		sep = "[\n  "
	}
	if _, err := s.w.WriteString(sep); err != nil {
		return err
	}
	if _, err := s.w.Write(bytes.TrimRight(buf.Bytes(), "\n")); err != nil {
		return err
	}
	s.n++
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.format == "json" {
		tail := "\n]\n"
		if s.n == 0 {
			tail = "[]\n"
		}
		_, err = s.w.WriteString(tail)
	}
	if flushErr := flushIfPossible(s.w); flushErr != nil && err == nil {
		err = flushErr
	}
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}
