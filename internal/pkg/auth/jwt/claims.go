package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims that establish a participant's identity on
// the real-time connection. The token is presented once, at the WebSocket
// handshake; every event received on that connection afterwards is attributed
// to the UserID carried here.
type Payload struct {
	// StandardClaims embeds the JWT standard fields (Exp, Iat, Iss) used for
	// token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the unique identifier of the connecting user.
	UserID string `json:"user_id"`

	// DisplayName is the user's display name, echoed into presence payloads.
	DisplayName string `json:"display_name,omitempty"`
}
