package domain

// TokenVerifier verifies a bearer token and returns the authenticated user ID.
// Authentication itself is an external capability; the engine only needs the
// yes/no answer and the caller identity for audit entries.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}
