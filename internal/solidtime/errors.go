package solidtime

import "fmt"

// ConfigError means a request was refused before any network call
// because required configuration is missing.
type ConfigError struct {
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s is not configured — run 'solidtime config' to set it up", e.Missing)
}

// APIError is a non-2xx response outside the caller's tolerated set.
// The transport notifies the user when it raises one; callers must not
// announce it again.
type APIError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
}

// Unauthorized reports whether the failure is an authentication or
// authorization rejection, which callers surface as a distinct state
// rather than a generic failure.
func (e *APIError) Unauthorized() bool {
	return e.Status == 401 || e.Status == 403
}

// NetworkError means no response was obtained at all.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IntegrityError is a local invariant violation detected before a
// write, e.g. a cached active entry with no organization id. The
// operation is blocked and a refresh requested instead of guessing.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return "local state inconsistent: " + e.Reason
}
