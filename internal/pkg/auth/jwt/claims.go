package jwt

import "github.com/golang-jwt/jwt/v5"

// Payload is the claim set of a channel access token. It is issued after a
// successful channel password check and presented on the WebSocket upgrade.
type Payload struct {
	jwt.RegisteredClaims

	// Code is the channel the holder may connect to.
	Code string `json:"code"`
}
