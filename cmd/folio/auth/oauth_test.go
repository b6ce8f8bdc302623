package authcmder

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/papercomputeco/folio/internal/fakeapi"
)

// syncBuffer lets the test read output while the flow is still writing it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testOAuthConfig(timeout time.Duration) oauthConfig {
	return oauthConfig{
		Provider:     "github",
		AuthorizeURL: "https://auth.example.test/login/oauth/authorize",
		ClientID:     "test-client-id",
		Scopes:       []string{"read:user"},
		CallbackPath: "/auth/callback",
		Timeout:      timeout,
	}
}

func waitForAuthURL(out *syncBuffer) *url.URL {
	var authURL string
	Eventually(func() string {
		authURL = firstURLInOutput(out.String())
		return authURL
	}, 2*time.Second, 20*time.Millisecond).ShouldNot(BeEmpty())

	parsed, err := url.Parse(authURL)
	Expect(err).NotTo(HaveOccurred())
	return parsed
}

var _ = Describe("runOAuthFlow", func() {
	It("returns the code with a verifier matching the S256 challenge", func() {
		out := &syncBuffer{}
		type result struct {
			grant *oauthGrant
			err   error
		}
		resCh := make(chan result, 1)

		go func() {
			grant, err := runOAuthFlow(context.Background(), out, testOAuthConfig(3*time.Second))
			resCh <- result{grant, err}
		}()

		authURL := waitForAuthURL(out)
		q := authURL.Query()
		Expect(q.Get("client_id")).To(Equal("test-client-id"))
		Expect(q.Get("response_type")).To(Equal("code"))
		Expect(q.Get("code_challenge_method")).To(Equal("S256"))
		Expect(q.Get("scope")).To(Equal("read:user"))

		resp, err := http.Get(q.Get("redirect_uri") + "?code=abc&state=" + url.QueryEscape(q.Get("state")))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Body.Close()).To(Succeed())

		var res result
		Eventually(resCh, 2*time.Second).Should(Receive(&res))
		Expect(res.err).NotTo(HaveOccurred())
		Expect(res.grant.Code).To(Equal("abc"))
		Expect(res.grant.RedirectURI).To(Equal(q.Get("redirect_uri")))
		Expect(oauth2.S256ChallengeFromVerifier(res.grant.CodeVerifier)).To(Equal(q.Get("code_challenge")))
	})

	It("rejects callback with mismatched state", func() {
		out := &syncBuffer{}
		errCh := make(chan error, 1)

		go func() {
			_, err := runOAuthFlow(context.Background(), out, testOAuthConfig(3*time.Second))
			errCh <- err
		}()

		redirectURI := waitForAuthURL(out).Query().Get("redirect_uri")
		resp, err := http.Get(redirectURI + "?code=test-code&state=wrong-state")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Body.Close()).To(Succeed())

		Eventually(errCh, 2*time.Second, 20*time.Millisecond).Should(Receive(MatchError(ContainSubstring("oauth state mismatch"))))
	})

	It("reports a provider error from the callback", func() {
		out := &syncBuffer{}
		errCh := make(chan error, 1)

		go func() {
			_, err := runOAuthFlow(context.Background(), out, testOAuthConfig(3*time.Second))
			errCh <- err
		}()

		redirectURI := waitForAuthURL(out).Query().Get("redirect_uri")
		resp, err := http.Get(redirectURI + "?error=access_denied&error_description=user+said+no")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(resp.Body.Close()).To(Succeed())

		Eventually(errCh, 2*time.Second).Should(Receive(MatchError("oauth callback error: access_denied (user said no)")))
	})

	It("times out while waiting for callback", func() {
		_, err := runOAuthFlow(context.Background(), &bytes.Buffer{}, testOAuthConfig(100*time.Millisecond))
		Expect(err).To(MatchError(ContainSubstring("timed out waiting for oauth callback")))
	})
})

var _ = Describe("loadOAuthConfig", func() {
	It("uses the provider endpoint by default", func() {
		cfg, err := loadOAuthConfig("github")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.AuthorizeURL).To(Equal("https://github.com/login/oauth/authorize"))
		Expect(cfg.ClientID).To(Equal(defaultOAuthClientID))
	})

	It("honors environment overrides", func() {
		GinkgoT().Setenv("FOLIO_OAUTH_GOOGLE_CLIENT_ID", "from-env")
		GinkgoT().Setenv("FOLIO_OAUTH_GOOGLE_AUTHORIZE_URL", "https://idp.example.test/authorize")
		GinkgoT().Setenv("FOLIO_OAUTH_TIMEOUT", "5s")

		cfg, err := loadOAuthConfig("google")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.ClientID).To(Equal("from-env"))
		Expect(cfg.AuthorizeURL).To(Equal("https://idp.example.test/authorize"))
		Expect(cfg.Timeout).To(Equal(5 * time.Second))
	})

	It("rejects unknown providers", func() {
		_, err := loadOAuthConfig("myspace")
		Expect(err).To(MatchError(ContainSubstring("unsupported provider")))
	})
})

var _ = Describe("auth oauth", func() {
	It("completes sign-in through the API", func() {
		api := fakeapi.New()
		defer api.Close()
		tmpDir := GinkgoT().TempDir()
		GinkgoT().Setenv("FOLIO_OAUTH_GITHUB_AUTHORIZE_URL", "https://auth.example.test/authorize")

		root := newTestRoot()
		out := &syncBuffer{}
		root.SetOut(out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"auth", "oauth", "github", "--config-dir", tmpDir, "--env", "test", "--base-url", api.URL()})

		errCh := make(chan error, 1)
		go func() { errCh <- root.Execute() }()

		q := waitForAuthURL(out).Query()
		resp, err := http.Get(q.Get("redirect_uri") + "?code=gh-code&state=" + url.QueryEscape(q.Get("state")))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Body.Close()).To(Succeed())

		Eventually(errCh, 5*time.Second).Should(Receive(BeNil()))
		Expect(out.String()).To(ContainSubstring("Signed in as github user <github-user@example.com>"))
		Expect(api.Hits(http.MethodPost, "/auth/oauth/callback")).To(Equal(1))
	})

	It("completes provider names", func() {
		cmd := newOAuthCmd()
		completions, directive := cmd.ValidArgsFunction(cmd, []string{}, "")
		Expect(completions).To(ConsistOf("github", "google"))
		Expect(directive).To(Equal(cobra.ShellCompDirectiveNoFileComp))
	})
})

func firstURLInOutput(output string) string {
	for line := range strings.SplitSeq(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "https://") || strings.HasPrefix(line, "http://") {
			return line
		}
	}
	return ""
}

