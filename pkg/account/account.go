// Package account wraps the /auth endpoints: sign-in, registration, token
// refresh, sign-out and the current profile.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/papercomputeco/folio/pkg/access"
	"github.com/papercomputeco/folio/pkg/credentials"
	"github.com/papercomputeco/folio/pkg/diagnostics"
)

const (
	pathLogin         = "/auth/login"
	pathRegister      = "/auth/register"
	pathRefresh       = "/auth/refresh"
	pathLogout        = "/auth/logout"
	pathMe            = "/auth/me"
	pathOAuthCallback = "/auth/oauth/callback"
)

var errMissingAccessToken = errors.New("response did not include an access token")

// Client is the part of the access layer the facade depends on.
type Client interface {
	access.Requester
	SaveCredentials(rec credentials.Record)
	ClearCredentials()
	Credentials() *credentials.Store
}

// Facade exposes the account operations.
type Facade struct {
	client   Client
	validate *validator.Validate
	sink     *diagnostics.Sink
}

// New creates a Facade over client. sink may be nil.
func New(client Client, sink *diagnostics.Sink) *Facade {
	if sink == nil {
		sink = diagnostics.Nop()
	}
	return &Facade{
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		sink:     sink,
	}
}

// Login signs in with email and password and stores the issued credential.
func (f *Facade) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if err := f.check(in); err != nil {
		return nil, err
	}
	in.Email = strings.TrimSpace(in.Email)

	session, err := f.authenticate(ctx, pathLogin, in)
	if err != nil {
		return nil, access.Wrap(err, KindLogin, "Login failed. Please try again.")
	}
	return session, nil
}

// Register creates an account and stores the issued credential.
func (f *Facade) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := f.check(in); err != nil {
		return nil, err
	}
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	session, err := f.authenticate(ctx, pathRegister, in)
	if err != nil {
		return nil, access.Wrap(err, KindRegister, "Registration failed. Please try again.")
	}
	return session, nil
}

// CompleteOAuth exchanges a provider authorization code for a credential.
func (f *Facade) CompleteOAuth(ctx context.Context, in OAuthCallback) (*Session, error) {
	if err := f.check(in); err != nil {
		return nil, err
	}

	session, err := f.authenticate(ctx, pathOAuthCallback, in)
	if err != nil {
		return nil, access.Wrap(err, KindOAuth, "Sign-in with "+in.Provider+" failed.")
	}
	return session, nil
}

// Refresh trades the stored refresh token for a new credential. The store is
// cleared when the API rejects the refresh token or answers without a usable
// token. Transport failures, server errors and rate limiting leave it intact
// so the refresh can be tried again.
func (f *Facade) Refresh(ctx context.Context) (credentials.Record, error) {
	refreshToken, ok := f.client.Credentials().RefreshToken()
	if !ok {
		f.client.ClearCredentials()
		return credentials.Record{}, &access.Error{
			Kind:    KindRefresh,
			Message: "No refresh token is stored. Please log in again.",
		}
	}

	body := map[string]string{"refresh_token": refreshToken}
	raw, err := f.client.Request(ctx, http.MethodPost, pathRefresh, &access.RequestOptions{Body: body})
	if err != nil {
		if rejected(err) {
			f.client.ClearCredentials()
		}
		return credentials.Record{}, access.Wrap(err, KindRefresh, "Session refresh failed.")
	}

	var payload tokenPayload
	if err := unwrapData(raw, &payload); err != nil {
		f.client.ClearCredentials()
		return credentials.Record{}, access.Wrap(fmt.Errorf("decode refresh response: %w", err), KindRefresh, "Session refresh failed.")
	}
	rec, err := f.record(payload)
	if err != nil {
		f.client.ClearCredentials()
		return credentials.Record{}, access.Wrap(err, KindRefresh, "Session refresh failed.")
	}

	f.client.SaveCredentials(rec)
	return rec, nil
}

// Logout tells the API to end the session and clears the local credential
// whether or not the call succeeds.
func (f *Facade) Logout(ctx context.Context) error {
	defer f.client.ClearCredentials()

	if _, ok := f.client.Credentials().AccessToken(); !ok {
		return nil
	}
	if _, err := f.client.Request(ctx, http.MethodPost, pathLogout, nil); err != nil {
		f.sink.Warn("remote logout failed", zap.Error(err))
		return access.Wrap(err, KindLogout, "Logout could not reach the server.")
	}
	return nil
}

// Me returns the profile of the signed-in user.
func (f *Facade) Me(ctx context.Context) (*User, error) {
	raw, err := f.client.Request(ctx, http.MethodGet, pathMe, nil)
	if err != nil {
		return nil, access.Wrap(err, KindProfile, "Could not load your profile.")
	}

	var wrapped struct {
		User *User `json:"user"`
	}
	if err := unwrapData(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}

	var user User
	if err := unwrapData(raw, &user); err != nil {
		return nil, access.Wrap(fmt.Errorf("decode profile: %w", err), KindProfile, "Could not load your profile.")
	}
	return &user, nil
}

// rejected reports whether err is a 4xx answer other than rate limiting.
func rejected(err error) bool {
	classified, ok := access.AsError(err)
	if !ok {
		return false
	}
	return classified.Status >= 400 && classified.Status < 500 && classified.Status != http.StatusTooManyRequests
}

func (f *Facade) authenticate(ctx context.Context, path string, body any) (*Session, error) {
	raw, err := f.client.Request(ctx, http.MethodPost, path, &access.RequestOptions{Body: body})
	if err != nil {
		return nil, err
	}

	var payload tokenPayload
	if err := unwrapData(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	rec, err := f.record(payload)
	if err != nil {
		return nil, err
	}

	f.client.SaveCredentials(rec)
	return &Session{User: payload.User, Record: rec}, nil
}

func (f *Facade) record(payload tokenPayload) (credentials.Record, error) {
	if payload.AccessToken == "" {
		return credentials.Record{}, errMissingAccessToken
	}

	now := f.client.Credentials().Now()
	switch {
	case payload.ExpiresIn > 0:
		return credentials.NewRecord(payload.AccessToken, payload.RefreshToken, time.Duration(payload.ExpiresIn)*time.Second, now), nil
	case payload.ExpiresAt > 0:
		at := time.Unix(payload.ExpiresAt, 0).UTC()
		return credentials.Record{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken, ExpiresAt: &at}, nil
	default:
		return credentials.NewRecord(payload.AccessToken, payload.RefreshToken, 0, now), nil
	}
}

// check validates in and reports failures as VALIDATION_ERROR.
func (f *Facade) check(in any) error {
	err := f.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &access.Error{Kind: access.KindValidation, Message: access.FallbackMessage(access.KindValidation), Err: err}
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, describe(fe))
	}
	return &access.Error{
		Kind:    access.KindValidation,
		Message: strings.Join(parts, "; "),
		Err:     err,
	}
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "url":
		return field + " must be a valid URL"
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
