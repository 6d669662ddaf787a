package tool

// Result is the uniform outcome of every tool operation.
// Error is set only when Success is false.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
}

// OK builds a successful result.
func OK(output string) Result {
	return Result{Success: true, Output: output}
}

// Fail builds a failed result carrying err's message.
func Fail(err error) Result {
	if err == nil {
		return Result{Success: false}
	}
	return Result{Success: false, Error: err.Error()}
}

// Declined builds a failed result for an operation that was never attempted.
// It carries no error so the message itself is fed back to the model.
func Declined(message string) Result {
	return Result{Success: false, Output: message}
}

// Feedback is the text that closes the loop with the model: the error when
// there is one, the output otherwise.
func (r Result) Feedback() string {
	if r.Error != "" {
		return "Execution error: " + r.Error
	}
	return r.Output
}
