package common

// Cookie names carrying the two credentials between the browser and the
// HTTP transport.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)
