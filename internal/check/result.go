package check

import "time"

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusArchived Status = "ARCHIVED"
	StatusMissing  Status = "MISSING"
	StatusInvalid  Status = "INVALID"
	StatusError    Status = "ERROR"
)

// Result is the outcome of looking up one dataset key on GitHub.
type Result struct {
	Key      string     `json:"key"`
	Repo     string     `json:"repo,omitempty"`
	Status   Status     `json:"status"`
	PushedAt *time.Time `json:"pushed_at,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// Failed reports whether the entry needs attention: the repository is gone,
// the key is unusable, or the lookup failed.
func (r Result) Failed() bool {
	switch r.Status {
	case StatusMissing, StatusInvalid, StatusError:
		return true
	default:
		return false
	}
}

type Summary struct {
	Total  int
	Counts map[Status]int
}

func (s Summary) Failed() int {
	return s.Counts[StatusMissing] + s.Counts[StatusInvalid] + s.Counts[StatusError]
}
