package auth

import "github.com/golang-jwt/jwt/v5"

// AccessClaims is carried by the short-lived access token. SessionToken
// binds the access token to a specific Session record — validation is not
// complete until the session manager confirms that session is active,
// non-expired, and non-revoked.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionToken string `json:"session_token"`
}

// SessionClaims is carried by the long-lived session (refresh) token.
// Subject (inherited from RegisteredClaims) holds the user ID.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// ServiceClaims is carried by inter-service tokens minted by one sibling
// service and verified by another. Service names the calling service;
// the issuer identifies which service minted the token.
type ServiceClaims struct {
	jwt.RegisteredClaims
	Service string `json:"service"`
}
