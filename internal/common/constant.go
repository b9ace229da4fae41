package common

// HTTP headers understood by the session API.
const (
	RefreshTokenHeaderName  = "X-Refresh-Token"
	AuthorizationHeaderName = "Authorization"
	BearerPrefix            = "Bearer "
)
