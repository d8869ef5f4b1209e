package engine

// InvokeStatus is the outcome kind of a step invocation.
type InvokeStatus int

const (
	StatusSuccess InvokeStatus = iota
	StatusPending
	StatusFailure
)

func (s InvokeStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPending:
		return "pending"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// InvokeResult is the outcome of a step invocation.
type InvokeResult struct {
	Status      InvokeStatus
	Description string
}

// Success returns a successful result.
func Success() InvokeResult {
	return InvokeResult{Status: StatusSuccess}
}

// Pending returns a pending result; description may be empty.
func Pending(description string) InvokeResult {
	return InvokeResult{Status: StatusPending, Description: description}
}

// Failure returns a failed result carrying a message for the orchestrator.
func Failure(description string) InvokeResult {
	return InvokeResult{Status: StatusFailure, Description: description}
}
