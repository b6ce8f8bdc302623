package account

import (
	"encoding/json"
	"time"

	"github.com/papercomputeco/folio/pkg/access"
	"github.com/papercomputeco/folio/pkg/credentials"
)

// Facade error kinds. Classified access errors pass through unchanged; any
// other failure is reported under one of these.
const (
	KindLogin    access.Kind = "LOGIN_ERROR"
	KindRegister access.Kind = "REGISTER_ERROR"
	KindRefresh  access.Kind = "REFRESH_ERROR"
	KindLogout   access.Kind = "LOGOUT_ERROR"
	KindProfile  access.Kind = "PROFILE_ERROR"
	KindOAuth    access.Kind = "OAUTH_ERROR"
)

// User is the account profile returned by the API.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Session is the outcome of a successful sign-in.
type Session struct {
	User   *User
	Record credentials.Record
}

// LoginInput is the payload for POST /auth/login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput is the payload for POST /auth/register.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// OAuthCallback carries the authorization code from a provider redirect.
type OAuthCallback struct {
	Provider     string `json:"provider" validate:"required,oneof=google github"`
	Code         string `json:"code" validate:"required"`
	RedirectURI  string `json:"redirect_uri" validate:"required,url"`
	CodeVerifier string `json:"code_verifier,omitempty"`
}

// tokenPayload is the credential part of an auth response. The API sends
// either expires_in (seconds from now) or expires_at (unix seconds).
type tokenPayload struct {
	User         *User  `json:"user,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// envelope is the {success, data, message} wrapper most endpoints use.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

// unwrapData decodes body into out, looking inside the data field when the
// body is an envelope.
func unwrapData(body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return json.Unmarshal(env.Data, out)
	}
	return json.Unmarshal(body, out)
}
