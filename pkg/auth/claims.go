package auth

import "github.com/golang-jwt/jwt/v5"

// Tokens is the credential pair a storefront session holds for the REST backend.
// Refresh is the value of the refresh cookie; it may be empty when the backend
// keeps the refresh cookie out of reach, in which case a 401 signs the user out.
type Tokens struct {
	Access  string `json:"accessToken"`
	Refresh string `json:"refreshToken,omitempty"`
}

// Empty reports whether no access token is held.
func (t Tokens) Empty() bool {
	return t.Access == ""
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Email  string
	Role   string
}

// AccessTokenClaims are the claims the backend puts in its access tokens.
type AccessTokenClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
