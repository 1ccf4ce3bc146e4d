package loam

// DocumentMetadata is the front matter of a document read by the feed.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
type DocumentMetadata struct {
	ID      string   `json:"id" mapstructure:"id"`
	Title   string   `json:"title" mapstructure:"title"`
	Summary string   `json:"summary" mapstructure:"summary"`
	Tags    []string `json:"tags" mapstructure:"tags"`
	Draft   bool     `json:"draft" mapstructure:"draft"`

	// Extra keeps every other front matter key.
	Extra map[string]any `json:"-" mapstructure:",remain"`
}

// toMap flattens the metadata into the generic form carried by domain.Document.
func (m DocumentMetadata) toMap() map[string]any {
	out := make(map[string]any, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Title != "" {
		out["title"] = m.Title
	}
	if m.Summary != "" {
		out["summary"] = m.Summary
	}
	if len(m.Tags) > 0 {
		out["tags"] = m.Tags
	}
	if m.Draft {
		out["draft"] = true
	}
	return out
}
