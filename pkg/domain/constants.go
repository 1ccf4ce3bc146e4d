package domain

// Diagnostic codes reported by the driver itself.
const (
	// CodeCallbackFailure is reported when a transform or output callback fails.
	CodeCallbackFailure = "TND001"
	// CodeDuplicateHint is reported when two outputs claim the same hint name in one pass.
	CodeDuplicateHint = "TND002"
)
