package domain

import "errors"

// ErrDuplicateNode is returned when the same node is registered twice in a pipeline.
var ErrDuplicateNode = errors.New("duplicate node")

// ErrForeignNode is returned when a node from another pipeline is used as an upstream.
var ErrForeignNode = errors.New("node belongs to a different pipeline")

// ErrArity is returned when a combine node is wired to an upstream of the wrong cardinality.
var ErrArity = errors.New("malformed combine arity")

// ErrNoOutputs is returned when a pipeline is built without any output node.
var ErrNoOutputs = errors.New("pipeline has no outputs")

// ErrInputAfterPull is returned when input state is set after the pass started pulling nodes.
var ErrInputAfterPull = errors.New("input state set after pulls began")

// ErrMisalignedInput is returned when host-classified input entries do not line up with
// the previous table of that input.
var ErrMisalignedInput = errors.New("input entries misaligned with previous table")

// ErrBuilderSealed is returned when a builder is used after ToImmutable.
var ErrBuilderSealed = errors.New("builder already finalized")

// ErrInvalidHint is returned for unusable generated text hint names.
var ErrInvalidHint = errors.New("invalid hint name")

// ErrSessionNotFound is returned when a session ID is unknown to a session manager.
var ErrSessionNotFound = errors.New("session not found")

// ErrDuplicateKey is returned when keyed input values share a key.
var ErrDuplicateKey = errors.New("duplicate key")
