package domain

// Document is a raw input read from a document feed.
type Document struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Content  string         `json:"content"`
}

// Key identifies the document across feed snapshots.
func (d Document) Key() string { return d.ID }
