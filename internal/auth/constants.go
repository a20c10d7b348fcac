package auth

// Session headers set by the upstream session layer.
const (
	HeaderSessionUserID   = "X-Session-User-Id"
	HeaderSessionUsername = "X-Session-Username"
)
