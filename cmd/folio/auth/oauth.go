package authcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/papercomputeco/folio/internal/cliutil"
	"github.com/papercomputeco/folio/pkg/account"
)

const (
	defaultOAuthClientID     = "folio-cli"
	defaultOAuthCallbackPath = "/auth/callback"
	defaultOAuthTimeout      = 2 * time.Minute
)

var oauthProviders = map[string]struct {
	endpoint oauth2.Endpoint
	scopes   []string
}{
	"github": {endpoint: endpoints.GitHub, scopes: []string{"read:user", "user:email"}},
	"google": {endpoint: endpoints.Google, scopes: []string{"openid", "profile", "email"}},
}

type oauthConfig struct {
	Provider     string
	AuthorizeURL string
	ClientID     string
	Scopes       []string
	CallbackPath string
	Timeout      time.Duration
}

type oauthCallbackResult struct {
	Code  string
	State string
	Err   string
}

// oauthGrant is what the browser hands back, ready for the API to exchange.
type oauthGrant struct {
	Code         string
	RedirectURI  string
	CodeVerifier string
}

func supportedOAuthProviders() []string {
	return []string{"github", "google"}
}

// loadOAuthConfig resolves provider settings, honoring
// FOLIO_OAUTH_<PROVIDER>_CLIENT_ID, FOLIO_OAUTH_<PROVIDER>_AUTHORIZE_URL and
// FOLIO_OAUTH_TIMEOUT.
func loadOAuthConfig(provider string) (oauthConfig, error) {
	p, ok := oauthProviders[provider]
	if !ok {
		return oauthConfig{}, fmt.Errorf("unsupported provider: %q\n\nSupported providers: %s",
			provider, strings.Join(supportedOAuthProviders(), ", "))
	}

	cfg := oauthConfig{
		Provider:     provider,
		AuthorizeURL: p.endpoint.AuthURL,
		ClientID:     defaultOAuthClientID,
		Scopes:       p.scopes,
		CallbackPath: defaultOAuthCallbackPath,
		Timeout:      defaultOAuthTimeout,
	}

	prefix := "FOLIO_OAUTH_" + strings.ToUpper(provider) + "_"
	if v := strings.TrimSpace(os.Getenv(prefix + "CLIENT_ID")); v != "" {
		cfg.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv(prefix + "AUTHORIZE_URL")); v != "" {
		cfg.AuthorizeURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FOLIO_OAUTH_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	return cfg, nil
}

func newOAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "oauth <provider>",
		Short: "Sign in through an OAuth provider in the browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := strings.ToLower(strings.TrimSpace(args[0]))
			cfg, err := loadOAuthConfig(provider)
			if err != nil {
				return err
			}

			s, closeFn, err := cliutil.OpenSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cliutil.Context(cmd)
			grant, err := runOAuthFlow(ctx, cmd.OutOrStdout(), cfg)
			if err != nil {
				return fmt.Errorf("%s oauth: %w", provider, err)
			}

			sess, err := s.Account.CompleteOAuth(ctx, account.OAuthCallback{
				Provider:     provider,
				Code:         grant.Code,
				RedirectURI:  grant.RedirectURI,
				CodeVerifier: grant.CodeVerifier,
			})
			if err != nil {
				return cliutil.FriendlyError(err)
			}

			printSignedIn(cmd.OutOrStdout(), sess)
			return nil
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return supportedOAuthProviders(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}
}

// runOAuthFlow prints the provider's authorize URL and waits on a loopback
// listener for the redirect carrying the authorization code.
func runOAuthFlow(ctx context.Context, out io.Writer, cfg oauthConfig) (*oauthGrant, error) {
	if out == nil {
		out = os.Stdout
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = defaultOAuthCallbackPath
	}
	if !strings.HasPrefix(cfg.CallbackPath, "/") {
		cfg.CallbackPath = "/" + cfg.CallbackPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOAuthTimeout
	}

	state := oauth2.GenerateVerifier()
	codeVerifier := oauth2.GenerateVerifier()

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("starting oauth callback listener: %w", err)
	}
	defer func() { _ = listener.Close() }()

	redirectURI := fmt.Sprintf("http://%s%s", listener.Addr().String(), cfg.CallbackPath)
	callbackCh := make(chan oauthCallbackResult, 1)
	serveErrCh := make(chan error, 1)
	var callbackOnce sync.Once

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		result := oauthCallbackResult{
			Code:  strings.TrimSpace(q.Get("code")),
			State: strings.TrimSpace(q.Get("state")),
		}

		if errCode := strings.TrimSpace(q.Get("error")); errCode != "" {
			desc := strings.TrimSpace(q.Get("error_description"))
			if desc != "" {
				result.Err = fmt.Sprintf("oauth callback error: %s (%s)", errCode, desc)
			} else {
				result.Err = "oauth callback error: " + errCode
			}
		}

		callbackOnce.Do(func() {
			callbackCh <- result
		})

		status := http.StatusOK
		body := "Authentication received. You can close this tab and return to folio."
		if result.Err != "" {
			status = http.StatusBadRequest
			body = "Authentication failed. Return to folio for details."
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			serveErrCh <- serveErr
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	oc := &oauth2.Config{
		ClientID:    cfg.ClientID,
		Endpoint:    oauth2.Endpoint{AuthURL: cfg.AuthorizeURL},
		RedirectURL: redirectURI,
		Scopes:      cfg.Scopes,
	}
	authURL := oc.AuthCodeURL(state, oauth2.S256ChallengeOption(codeVerifier))

	fmt.Fprintf(out, "Open this URL in your browser to sign in with %s:\n", cfg.Provider)
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out)

	timeout := time.NewTimer(cfg.Timeout)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case serveErr := <-serveErrCh:
		return nil, fmt.Errorf("oauth callback server failed: %w", serveErr)
	case <-timeout.C:
		return nil, errors.New("timed out waiting for oauth callback")
	case cb := <-callbackCh:
		if cb.Err != "" {
			return nil, errors.New(cb.Err)
		}
		if cb.Code == "" {
			return nil, errors.New("oauth callback did not include an authorization code")
		}
		if cb.State != state {
			return nil, errors.New("oauth state mismatch")
		}

		return &oauthGrant{
			Code:         cb.Code,
			RedirectURI:  redirectURI,
			CodeVerifier: codeVerifier,
		}, nil
	}
}
