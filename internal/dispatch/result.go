package dispatch

// Result is the uniform outcome of a dispatch: {"ok": true, ...} or
// {"error": "..."}.
type Result map[string]interface{}

// OK builds a success result carrying fields.
func OK(fields map[string]interface{}) Result {
	r := Result{"ok": true}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

// Fail builds an error result.
func Fail(err error) Result {
	return Result{"error": err.Error()}
}

// Failed reports whether r carries an error.
func (r Result) Failed() bool {
	_, ok := r["error"]
	return ok
}

// ErrorMessage returns the error message, or "".
func (r Result) ErrorMessage() string {
	msg, _ := r["error"].(string)
	return msg
}
