// Command folio is a terminal client for the blog API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/folio/cmd/folio/auth"
	blogscmder "github.com/papercomputeco/folio/cmd/folio/blogs"
	"github.com/papercomputeco/folio/internal/cliutil"
)

const rootLongDesc string = `folio reads and manages posts on the blog API.

Settings are read from config.toml in the .folio/ directory (./.folio/ when
present, otherwise ~/.folio/). FOLIO_API_BASE_URL, FOLIO_API_TIMEOUT,
FOLIO_ENV and FOLIO_CREDENTIALS_BACKEND override the file.`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "folio",
		Short:         "Terminal client for the blog API",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String(cliutil.FlagConfigDir, "", "Override path to .folio/ config directory")
	cmd.PersistentFlags().String(cliutil.FlagEnv, "", "Environment: development, production or test")
	cmd.PersistentFlags().String(cliutil.FlagBaseURL, "", "Override the API base URL")

	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(blogscmder.NewBlogsCmd())

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
