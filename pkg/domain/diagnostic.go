package domain

import (
	"fmt"
	"strings"
)

// Severity ranks a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is an externally visible message produced during a pass.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code,omitempty"`
	Message  string   `json:"message"`

	// NodeID and NodeName attribute the diagnostic to the node that produced it.
	NodeID   NodeID `json:"node_id,omitempty"`
	NodeName string `json:"node_name,omitempty"`

	// Position is the index of the upstream entry being processed, or -1.
	Position int `json:"position"`
}

func (d Diagnostic) String() string {
	var sb strings.Builder
	sb.WriteString(string(d.Severity))
	if d.Code != "" {
		sb.WriteString(" ")
		sb.WriteString(d.Code)
	}
	if d.NodeName != "" {
		fmt.Fprintf(&sb, " [%s", d.NodeName)
		if d.Position >= 0 {
			fmt.Fprintf(&sb, "#%d", d.Position)
		}
		sb.WriteString("]")
	}
	sb.WriteString(": ")
	sb.WriteString(d.Message)
	return sb.String()
}

// Errorf builds an error-severity diagnostic not bound to any node.
func Errorf(code, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, Code: code, Message: fmt.Sprintf(format, args...), Position: -1}
}

// Warningf builds a warning-severity diagnostic not bound to any node.
func Warningf(code, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Code: code, Message: fmt.Sprintf(format, args...), Position: -1}
}
