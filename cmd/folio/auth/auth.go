// Package authcmder provides the auth command for signing in to the blog API.
package authcmder

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/internal/cliutil"
	"github.com/papercomputeco/folio/pkg/account"
	"github.com/papercomputeco/folio/pkg/credentials"
)

const authLongDesc string = `Sign in to the blog API and manage the stored session.

The session credential is stored in the .folio/ directory (credentials.toml,
or credentials.db when the sqlite backend is configured) and attached to
every later folio command.

Examples:
  folio auth login --email ada@example.com      Prompt for the password
  echo $PASS | folio auth login --email ada@...  Pipe the password on stdin
  folio auth register --name Ada --email ada@example.com
  folio auth oauth github                       Sign in through GitHub
  folio auth status                             Show the stored session
  folio auth refresh                            Renew the access token
  folio auth logout                             Sign out and forget the session`

const authShortDesc string = "Sign in and manage the stored session"

func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
	}

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newOAuthCmd())

	return cmd
}

func newLoginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(email) == "" {
				return errors.New("flag --email is required")
			}

			password, err := cliutil.ReadSecret(cmd.InOrStdin(), cmd.OutOrStdout(), "Password: ")
			if err != nil {
				return err
			}

			s, closeFn, err := cliutil.OpenSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			sess, err := s.Account.Login(cliutil.Context(cmd), account.LoginInput{Email: email, Password: password})
			if err != nil {
				return cliutil.FriendlyError(err)
			}

			printSignedIn(cmd.OutOrStdout(), sess)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := cliutil.ReadSecret(cmd.InOrStdin(), cmd.OutOrStdout(), "Choose a password: ")
			if err != nil {
				return err
			}

			s, closeFn, err := cliutil.OpenSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			sess, err := s.Account.Register(cliutil.Context(cmd), account.RegisterInput{
				Name:     name,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return cliutil.FriendlyError(err)
			}

			printSignedIn(cmd.OutOrStdout(), sess)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeFn, err := cliutil.OpenSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := s.Account.Logout(cliutil.Context(cmd)); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", cliutil.FriendlyError(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeFn, err := cliutil.OpenSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			rec, ok := s.Store.Load()
			if !ok {
				fmt.Fprintln(out, "Not signed in.")
				fmt.Fprintln(out, "\nUse 'folio auth login' to sign in.")
				return nil
			}

			printRecord(out, rec, s.Store.Now(), s.Store.IsExpired())
			if offline || s.Store.IsExpired() {
				return nil
			}

			user, err := s.Account.Me(cliutil.Context(cmd))
			if err != nil {
				return cliutil.FriendlyError(err)
			}
			fmt.Fprintf(out, "  user:    %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Only show the stored credential")
	return cmd
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token with the stored refresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeFn, err := cliutil.OpenSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := s.Account.Refresh(cliutil.Context(cmd))
			if err != nil {
				return cliutil.FriendlyError(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Session refreshed.")
			printRecord(cmd.OutOrStdout(), rec, s.Store.Now(), false)
			return nil
		},
	}
}

func printSignedIn(out io.Writer, sess *account.Session) {
	if sess.User != nil {
		fmt.Fprintf(out, "Signed in as %s <%s>\n", sess.User.Name, sess.User.Email)
		return
	}
	fmt.Fprintln(out, "Signed in.")
}

func printRecord(out io.Writer, rec credentials.Record, now time.Time, expired bool) {
	fmt.Fprintln(out, "Session:")
	fmt.Fprintf(out, "  token:   %s\n", maskToken(rec.AccessToken))

	switch {
	case rec.ExpiresAt == nil:
		fmt.Fprintln(out, "  expires: never")
	case expired:
		fmt.Fprintf(out, "  expires: expired %s ago\n", now.Sub(*rec.ExpiresAt).Round(time.Second))
	default:
		fmt.Fprintf(out, "  expires: in %s\n", rec.ExpiresAt.Sub(now).Round(time.Second))
	}

	refresh := "no"
	if rec.RefreshToken != "" {
		refresh = "yes"
	}
	fmt.Fprintf(out, "  refresh: %s\n", refresh)
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", 8) + token[len(token)-4:]
}
