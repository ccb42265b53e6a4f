package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultInput      = "found_repositories.json"
	DefaultMatchedOut = "filtered_2023_or_null.json"
	DefaultOtherOut   = "filtered_other.json"
	DefaultField      = "lastCheckedAt"
	DefaultPrefix     = "2023"

	PartitionMatched = "matched"
	PartitionOther   = "other"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields, keep these in sync:
	// - CLI flags in internal/cli (root.go, check.go)
	// - flag names in internal/flags
	Input     Input     `yaml:"input"`
	Output    Output    `yaml:"output"`
	Predicate Predicate `yaml:"predicate"`
	Check     Check     `yaml:"check"`
	Runtime   Runtime   `yaml:"runtime"`
}

type Input struct {
	// Path is the repository map to split (see --input).
	Path string `yaml:"path"`
}

type Output struct {
	// Matched receives records selected by the predicate (see --matched-out).
	Matched string `yaml:"matched"`

	// Other receives every remaining record (see --other-out).
	Other string `yaml:"other"`
}

type Predicate struct {
	// Field is the record field inspected by the split (see --field).
	Field string `yaml:"field"`

	// Prefix selects string values of Field for the matched half (see --prefix).
	// Null or absent values are always matched.
	Prefix string `yaml:"prefix"`
}

type Check struct {
	// Partition selects which half is looked up on GitHub (see --partition).
	// Allowed values: matched, other.
	Partition string `yaml:"partition"`

	// Format controls the console sink format (see --format).
	// Allowed values: text, json, ndjson.
	Format string `yaml:"format"`

	// APIURL overrides the GitHub REST API root, e.g. for GitHub Enterprise
	// (see --api-url). Empty means api.github.com.
	APIURL string `yaml:"api_url"`

	// Out writes check results to this path (see --out).
	Out string `yaml:"out"`

	// OutFormat selects the format for Out (see --out-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the file extension.
	OutFormat string `yaml:"out_format"`

	// Concurrency bounds in-flight GitHub lookups (see --concurrency). Must be >= 1.
	Concurrency int `yaml:"concurrency"`

	// Timeout bounds the whole check run (see --timeout). Must be > 0.
	Timeout time.Duration `yaml:"timeout"`
}

type Runtime struct {
	// Verbose enables debug logging, including every GitHub API call.
	Verbose bool `yaml:"verbose"`
}

func New() *Config {
	return &Config{
		Input: Input{
			Path: DefaultInput,
		},
		Output: Output{
			Matched: DefaultMatchedOut,
			Other:   DefaultOtherOut,
		},
		Predicate: Predicate{
			Field:  DefaultField,
			Prefix: DefaultPrefix,
		},
		Check: Check{
			Partition:   PartitionMatched,
			Format:      "text",
			Concurrency: 5,
			Timeout:     10 * time.Minute,
		},
	}
}

// LoadFile overlays the YAML document at path onto c. Keys missing from the
// file keep their current values; unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	c.Input.Path = strings.TrimSpace(c.Input.Path)
	c.Output.Matched = strings.TrimSpace(c.Output.Matched)
	c.Output.Other = strings.TrimSpace(c.Output.Other)
	c.Predicate.Field = strings.TrimSpace(c.Predicate.Field)

	// Path validation
	if c.Input.Path == "" {
		return errors.New("--input must not be empty")
	}
	if c.Output.Matched == "" {
		return errors.New("--matched-out must not be empty")
	}
	if c.Output.Other == "" {
		return errors.New("--other-out must not be empty")
	}
	in := filepath.Clean(c.Input.Path)
	matched := filepath.Clean(c.Output.Matched)
	other := filepath.Clean(c.Output.Other)
	if matched == other {
		return fmt.Errorf("--matched-out and --other-out must differ (both %q)", c.Output.Matched)
	}
	if matched == in || other == in {
		return fmt.Errorf("output paths must not overwrite the input %q", c.Input.Path)
	}

	// Predicate validation
	if c.Predicate.Field == "" {
		return errors.New("--field must not be empty")
	}

	// Check validation
	c.Check.Partition = normalizeEnumValue(c.Check.Partition)
	if c.Check.Partition == "" {
		c.Check.Partition = PartitionMatched
	}
	if c.Check.Partition != PartitionMatched && c.Check.Partition != PartitionOther {
		return fmt.Errorf("unsupported --partition: %s (must be one of: matched, other)", c.Check.Partition)
	}
	c.Check.Format = normalizeEnumValue(c.Check.Format)
	if c.Check.Format == "" {
		c.Check.Format = "text"
	}
	if c.Check.Format != "text" && c.Check.Format != "json" && c.Check.Format != "ndjson" {
		return fmt.Errorf("unsupported --format: %s (must be one of: text, json, ndjson)", c.Check.Format)
	}
	c.Check.APIURL = strings.TrimSpace(c.Check.APIURL)
	if c.Check.APIURL != "" {
		u, err := url.Parse(c.Check.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid --api-url: %q", c.Check.APIURL)
		}
	}
	if c.Check.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Check.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}

	if c.Check.Out != "" {
		c.Check.OutFormat = normalizeEnumValue(c.Check.OutFormat)
		if c.Check.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Check.Out))
			switch ext {
			case ".json":
				c.Check.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Check.OutFormat = "ndjson"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else if c.Check.OutFormat != "json" && c.Check.OutFormat != "ndjson" {
			return fmt.Errorf("unsupported output format: %s", c.Check.OutFormat)
		}
	}

	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
