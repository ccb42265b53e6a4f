// Package dataset loads and writes the repository map: a JSON object keyed by
// repository identifier whose values are per-repository metadata records.
//
// Key order of the input document is preserved. Records are kept as raw JSON
// and written back unchanged apart from indentation and escaped text in
// strings, which is written literally.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Record is one repository's metadata object, kept as raw JSON.
type Record = json.RawMessage

// Dataset is an insertion-ordered map from repository identifier to Record.
type Dataset struct {
	keys    []string
	records map[string]Record
}

// New returns an empty Dataset.
func New() *Dataset {
	return &Dataset{records: make(map[string]Record)}
}

// Set inserts or replaces the record for key. A replaced key keeps its
// original position.
func (d *Dataset) Set(key string, rec Record) {
	if d.records == nil {
		d.records = make(map[string]Record)
	}
	if _, ok := d.records[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.records[key] = rec
}

func (d *Dataset) Get(key string) (Record, bool) {
	if d == nil {
		return nil, false
	}
	rec, ok := d.records[key]
	return rec, ok
}

// Keys returns the keys in insertion order. The slice is a copy.
func (d *Dataset) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len reports the number of keys.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// MarshalJSON writes the dataset as a JSON object in insertion order.
// Keys are not HTML-escaped.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if d != nil {
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		for i, k := range d.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := enc.Encode(k); err != nil {
				return nil, err
			}
			// Encode terminates each value with a newline.
			buf.Truncate(buf.Len() - 1)
			buf.WriteByte(':')
			rec := d.records[k]
			if len(rec) == 0 {
				buf.WriteString("null")
				continue
			}
			lit, err := unescapeStrings(rec)
			if err != nil {
				return nil, fmt.Errorf("record %q: %w", k, err)
			}
			buf.Write(lit)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// unescapeStrings rewrites every string literal in raw that contains an escape
// sequence so that non-ASCII text and '/' are written literally. Control
// characters, quotes and backslashes stay escaped. Everything outside string
// literals, numbers included, is copied byte for byte.
func unescapeStrings(raw []byte) ([]byte, error) {
	if bytes.IndexByte(raw, '\\') < 0 {
		return raw, nil
	}

	var out bytes.Buffer
	out.Grow(len(raw))
	enc := json.NewEncoder(&out)
	enc.SetEscapeHTML(false)

	for i := 0; i < len(raw); {
		if raw[i] != '"' {
			out.WriteByte(raw[i])
			i++
			continue
		}

		end, escaped := i+1, false
		for ; end < len(raw) && raw[end] != '"'; end++ {
			if raw[end] == '\\' {
				escaped = true
				end++
			}
		}
		if end >= len(raw) {
			return nil, errors.New("unterminated string literal")
		}

		lit := raw[i : end+1]
		if !escaped {
			out.Write(lit)
		} else {
			var str string
			if err := json.Unmarshal(lit, &str); err != nil {
				return nil, err
			}
			if err := enc.Encode(str); err != nil {
				return nil, err
			}
			out.Truncate(out.Len() - 1)
		}
		i = end + 1
	}
	return out.Bytes(), nil
}

func (d *Dataset) UnmarshalJSON(b []byte) error {
	got, err := Decode(bytes.NewReader(b))
	if err != nil {
		return err
	}
	*d = *got
	return nil
}

// Decode reads a single JSON object from r. The root must be an object;
// anything after it other than whitespace is rejected.
func Decode(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Offset: dec.InputOffset(), Err: errors.New("empty document")}
		}
		return nil, classifyDecodeErr(dec, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("document root is %s: %w", describeToken(tok), ErrNotObject)
	}

	ds := New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, classifyDecodeErr(dec, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, &ParseError{Offset: dec.InputOffset(), Err: fmt.Errorf("expected object key, got %v", keyTok)}
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, classifyDecodeErr(dec, err)
		}
		ds.Set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, classifyDecodeErr(dec, err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, classifyDecodeErr(dec, err)
		}
		return nil, &ParseError{Offset: dec.InputOffset(), Err: errors.New("unexpected data after top-level object")}
	}
	return ds, nil
}

// Load reads and decodes the dataset stored at path.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	defer f.Close()

	ds, err := Decode(f)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
			return nil, pe
		}
		var ioe *IOError
		if errors.As(err, &ioe) {
			ioe.Path = path
			return nil, ioe
		}
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ds, nil
}

// WriteFile writes ds to path as indented JSON (two spaces) followed by a
// newline. Non-ASCII text and HTML characters are written literally. Parent
// directories are created as needed and an existing file is overwritten.
func WriteFile(path string, ds *Dataset) error {
	if path == "" {
		return &IOError{Op: "write", Path: path, Err: errors.New("output path required")}
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &IOError{Op: "write", Path: path, Err: err}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}

	err = Encode(f, ds)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Encode writes ds to w using the same formatting as WriteFile.
func Encode(w io.Writer, ds *Dataset) error {
	if ds == nil {
		ds = New()
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(ds)
}

func classifyDecodeErr(dec *json.Decoder, err error) error {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return &ParseError{Offset: se.Offset, Err: err}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &ParseError{Offset: dec.InputOffset(), Err: io.ErrUnexpectedEOF}
	}
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		return &ParseError{Offset: ute.Offset, Err: err}
	}
	return &IOError{Op: "read", Err: err}
}

func describeToken(tok json.Token) string {
	switch t := tok.(type) {
	case json.Delim:
		if t == '[' {
			return "an array"
		}
		return fmt.Sprintf("%q", string(t))
	case string:
		return "a string"
	case float64, json.Number:
		return "a number"
	case bool:
		return "a boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", tok)
	}
}
