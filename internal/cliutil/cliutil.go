// Package cliutil holds the plumbing shared by folio's subcommands: opening
// a session from the persistent flags, printing session events and reading
// secrets from the terminal.
package cliutil

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/folio/pkg/access"
	"github.com/papercomputeco/folio/pkg/publisher"
	"github.com/papercomputeco/folio/pkg/session"
)

// Persistent flag names registered on the root command.
const (
	FlagConfigDir = "config-dir"
	FlagEnv       = "env"
	FlagBaseURL   = "base-url"
)

// OpenFn builds a session. Tests replace it to inject fakes.
var OpenFn = session.Open

// OpenSession opens a session configured from the command's persistent
// flags and starts printing session events to the command's stderr. The
// returned func closes the session and waits for pending events to print.
func OpenSession(cmd *cobra.Command) (*session.Session, func(), error) {
	configDir, _ := cmd.Flags().GetString(FlagConfigDir)
	env, _ := cmd.Flags().GetString(FlagEnv)
	baseURL, _ := cmd.Flags().GetString(FlagBaseURL)

	s, err := OpenFn(session.Options{
		ConfigDir:   configDir,
		Environment: env,
		BaseURL:     baseURL,
		Navigator:   access.NavigatorFunc(func(string) {}),
	})
	if err != nil {
		return nil, nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		PrintEvents(cmd.ErrOrStderr(), s.Events.Subscribe())
	}()

	closeFn := func() {
		_ = s.Close()
		<-done
	}
	return s, closeFn, nil
}

// PrintEvents writes a notice for every session event until events closes.
func PrintEvents(w io.Writer, events <-chan *publisher.Event) {
	for event := range events {
		if line := DescribeEvent(event); line != "" {
			fmt.Fprintln(w, line)
		}
	}
}

// DescribeEvent renders event as a one-line user notice.
func DescribeEvent(event *publisher.Event) string {
	if event == nil {
		return ""
	}
	switch event.Type {
	case publisher.TypeUnauthenticated:
		return "Your session has expired. Run 'folio auth login' to sign in again."
	case publisher.TypeForbidden:
		return "You do not have permission to do that."
	case publisher.TypeRateLimited:
		if event.RetryAfterSeconds != nil {
			return fmt.Sprintf("Rate limited by the server. Try again in %ds.", *event.RetryAfterSeconds)
		}
		return "Rate limited by the server. Try again shortly."
	default:
		return ""
	}
}

// FriendlyError reduces a classified failure to its display message.
func FriendlyError(err error) error {
	if classified, ok := access.AsError(err); ok {
		return errors.New(classified.Message)
	}
	return err
}

// ReadSecret reads one line from in. When in is an interactive terminal the
// prompt is shown on out and input is hidden.
func ReadSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, prompt)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return string(secret), nil
	}

	return ReadLine(in)
}

// ReadLine reads the first line of in.
func ReadLine(in io.Reader) (string, error) {
	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}

// Context returns the command context, or Background when unset.
func Context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
