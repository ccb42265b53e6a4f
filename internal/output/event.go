package output

import "reposplit/internal/check"

// Event is a lifecycle record for NDJSON streaming output:
// check.started, repo.result, check.finished.
//
// JSON mode remains an aggregate array of check.Result values.
type Event struct {
	Type      string `json:"type"`
	Partition string `json:"partition,omitempty"`
	*check.Result
	Total    int `json:"total,omitempty"`
	Failures int `json:"failed,omitempty"`
	ExitCode int `json:"exit_code,omitempty"`
}

const (
	EventCheckStarted  = "check.started"
	EventRepoResult    = "repo.result"
	EventCheckFinished = "check.finished"
)

func eventFromResult(r check.Result) Event {
	return Event{Type: EventRepoResult, Result: &r}
}
