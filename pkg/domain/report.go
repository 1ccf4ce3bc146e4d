package domain

import "time"

// PassStats summarizes the work done by a pass.
type PassStats struct {
	Duration    time.Duration `json:"duration"`
	Nodes       int           `json:"nodes"`
	Invocations int           `json:"invocations"`
	Failures    int           `json:"failures"`
	Texts       int           `json:"texts"`
	Diagnostics int           `json:"diagnostics"`
}

// PassReport is the externally published outcome of a completed pass.
type PassReport struct {
	PassID      string          `json:"pass_id"`
	Session     string          `json:"session"`
	Pipeline    string          `json:"pipeline"`
	FinishedAt  time.Time       `json:"finished_at"`
	Texts       []GeneratedText `json:"texts"`
	Diagnostics []Diagnostic    `json:"diagnostics"`
	Stats       PassStats       `json:"stats"`
}

// Text returns the text generated under hint, if any.
func (r *PassReport) Text(hint string) (string, bool) {
	for _, t := range r.Texts {
		if t.HintName == hint {
			return t.Text, true
		}
	}
	return "", false
}
