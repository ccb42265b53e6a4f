package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reposplit/internal/check"
)

func TestNewFileSink_InferFormat(t *testing.T) {
	for _, name := range []string{"out.json", "out.ndjson", "out.jsonl", "nested/dir/out.json"} {
		t.Run(name, func(t *testing.T) {
			s, err := NewFileSink(filepath.Join(t.TempDir(), name), "")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			_ = s.Close()
		})
	}
}

func TestNewFileSink_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		format  string
		wantErr string
	}{
		{name: "unknown extension", file: "out.unknown", wantErr: "cannot infer output format"},
		{name: "unsupported format", file: "out.json", format: "xml", wantErr: "unsupported output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileSink(filepath.Join(t.TempDir(), tt.file), tt.format)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := NewFileSink("", "json"); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestFileSink_JSON_AggregatesResults_AndIgnoresEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	s, err := NewFileSink(path, "json")
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	if err := s.Write(Event{Type: EventCheckStarted}); err != nil {
		t.Fatalf("Write event failed: %v", err)
	}
	if err := s.Write(check.Result{Key: "o/a", Status: check.StatusActive}); err != nil {
		t.Fatalf("Write result failed: %v", err)
	}
	if err := s.Write(check.Result{Key: "o/b", Status: check.StatusMissing, Message: "gone"}); err != nil {
		t.Fatalf("Write result failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var got []check.Result
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v\nbody=%s", err, string(b))
	}
	if len(got) != 2 || got[0].Key != "o/a" || got[1].Status != check.StatusMissing {
		t.Fatalf("unexpected results: %#v", got)
	}
}

func TestFileSink_NDJSON_StreamsEventsAndResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")

	s, err := NewFileSink(path, "")
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	if err := s.Write(Event{Type: EventCheckStarted, Partition: "matched", Total: 1}); err != nil {
		t.Fatalf("Write event failed: %v", err)
	}
	if err := s.Write(check.Result{Key: "o/a", Repo: "o/a", Status: check.StatusArchived}); err != nil {
		t.Fatalf("Write result failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 ndjson lines, got %d\nbody=%s", len(lines), string(b))
	}

	var e1 Event
	if err := json.Unmarshal([]byte(lines[0]), &e1); err != nil {
		t.Fatalf("Unmarshal line 1 failed: %v", err)
	}
	if e1.Type != EventCheckStarted || e1.Partition != "matched" || e1.Total != 1 {
		t.Fatalf("unexpected start event: %#v", e1)
	}

	var e2 Event
	if err := json.Unmarshal([]byte(lines[1]), &e2); err != nil {
		t.Fatalf("Unmarshal line 2 failed: %v", err)
	}
	if e2.Type != EventRepoResult || e2.Result == nil {
		t.Fatalf("unexpected repo.result event: %#v", e2)
	}
	if e2.Result.Key != "o/a" || e2.Result.Status != check.StatusArchived {
		t.Fatalf("unexpected result payload: %#v", e2.Result)
	}
}

func TestFileSink_JSON_Layout(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	s, err := NewFileSink(empty, "")
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if b, _ := os.ReadFile(empty); string(b) != "[]\n" {
		t.Fatalf("empty array: got %q", b)
	}

	one := filepath.Join(dir, "one.json")
	s, err = NewFileSink(one, "")
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	if err := s.Write(check.Result{Key: "o/<a>", Status: check.StatusActive}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	want := "[\n  {\n    \"key\": \"o/<a>\",\n    \"status\": \"ACTIVE\"\n  }\n]\n"
	if b, _ := os.ReadFile(one); string(b) != want {
		t.Fatalf("got %q, want %q", b, want)
	}
}
