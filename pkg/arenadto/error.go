package arenadto

// DomainError is the authority's structured error shape, carried in the body
// of rejected HTTP responses and inside rejection event payloads.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "arena client error"
}
