package incremental

import (
	"fmt"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
)

// Pipeline is the fixed graph of nodes evaluated by every pass.
// Nodes are added through the package constructors (Input, Select, RegisterOutput, ...);
// because a node can only reference nodes that already exist, the graph is acyclic.
type Pipeline struct {
	name string

	mu      sync.Mutex
	nodes   []AnyNode
	byName  map[string]AnyNode
	outputs []Output
	errs    []error
	nextID  domain.NodeID
	sealed  bool
}

// NewPipeline creates an empty pipeline.
func NewPipeline(name string) *Pipeline {
	return &Pipeline{
		name:   name,
		byName: make(map[string]AnyNode),
	}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// register assigns the node its identity. Structural problems are recorded and reported by Build.
func (p *Pipeline) register(n AnyNode, assign func(domain.NodeID)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sealed {
		p.errs = append(p.errs, fmt.Errorf("node %q added after the pipeline was built", n.Name()))
		return
	}
	if n.Name() == "" {
		p.errs = append(p.errs, fmt.Errorf("node #%d has an empty name", len(p.nodes)+1))
	} else if _, exists := p.byName[n.Name()]; exists {
		p.errs = append(p.errs, fmt.Errorf("%w: %q", domain.ErrDuplicateNode, n.Name()))
	}
	for _, up := range n.Upstream() {
		if up == nil {
			p.errs = append(p.errs, fmt.Errorf("node %q has a nil upstream", n.Name()))
			continue
		}
		if o, ok := up.(owned); !ok || o.owner() != p {
			p.errs = append(p.errs, fmt.Errorf("%w: %q used by %q", domain.ErrForeignNode, up.Name(), n.Name()))
		}
	}

	p.nextID++
	assign(p.nextID)
	p.nodes = append(p.nodes, n)
	if n.Name() != "" {
		if _, exists := p.byName[n.Name()]; !exists {
			p.byName[n.Name()] = n
		}
	}
	if out, ok := n.(Output); ok {
		p.outputs = append(p.outputs, out)
	}
}

func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
}

// Build validates the declared graph and freezes it. It is safe to call more than once.
func (p *Pipeline) Build() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sealed = true

	errs := append([]error(nil), p.errs...)
	if len(p.outputs) == 0 {
		errs = append(errs, domain.ErrNoOutputs)
	}
	if len(errs) > 0 {
		return &BuildError{Pipeline: p.name, Errors: errs}
	}
	return nil
}

// Nodes returns every node in registration order.
func (p *Pipeline) Nodes() []AnyNode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]AnyNode(nil), p.nodes...)
}

// Outputs returns the output nodes in registration order.
func (p *Pipeline) Outputs() []Output {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Output(nil), p.outputs...)
}

// Lookup finds a node by name.
func (p *Pipeline) Lookup(name string) (AnyNode, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.byName[name]
	return n, ok
}

// Node finds a node by ID.
func (p *Pipeline) Node(id domain.NodeID) (AnyNode, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == 0 || int(id) > len(p.nodes) {
		return nil, false
	}
	return p.nodes[id-1], true
}
