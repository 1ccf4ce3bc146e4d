package incremental

import (
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
)

// ExecutionContext accumulates the externally visible results of a pass: generated texts keyed
// by hint name and an ordered list of diagnostics.
type ExecutionContext struct {
	texts  []domain.GeneratedText
	owners map[string]producer
	diags  []domain.Diagnostic

	// OnClash, when set, is called for every duplicate hint warning.
	OnClash func(domain.Diagnostic)
}

type producer struct {
	node string
	hint string
}

// NewExecutionContext creates an empty context.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{owners: make(map[string]producer)}
}

// AddText records text produced by node. Hint names are compared case-insensitively; when a
// hint is already taken, the first text is kept and a TND002 warning is recorded instead.
// It reports whether the text was kept.
func (ec *ExecutionContext) AddText(node AnyNode, text domain.GeneratedText) bool {
	key := strings.ToLower(text.HintName)
	if first, taken := ec.owners[key]; taken {
		d := domain.Warningf(domain.CodeDuplicateHint,
			"generated text %q from %q conflicts with %q from %q; keeping the first",
			text.HintName, node.Name(), first.hint, first.node)
		d.NodeID = node.ID()
		d.NodeName = node.Name()
		ec.diags = append(ec.diags, d)
		if ec.OnClash != nil {
			ec.OnClash(d)
		}
		return false
	}
	ec.owners[key] = producer{node: node.Name(), hint: text.HintName}
	ec.texts = append(ec.texts, text)
	return true
}

// AddDiagnostic appends a diagnostic.
func (ec *ExecutionContext) AddDiagnostic(d domain.Diagnostic) {
	ec.diags = append(ec.diags, d)
}

// Texts returns the generated texts in insertion order.
func (ec *ExecutionContext) Texts() []domain.GeneratedText {
	return append([]domain.GeneratedText(nil), ec.texts...)
}

// Diagnostics returns the diagnostics in insertion order.
func (ec *ExecutionContext) Diagnostics() []domain.Diagnostic {
	return append([]domain.Diagnostic(nil), ec.diags...)
}
