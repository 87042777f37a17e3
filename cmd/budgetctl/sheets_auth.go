package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/subcommands"

	"budget/internal/cli"
	gsheet "budget/internal/sheets/google"
)

type sheetsAuthCmd struct {
	port    string
	out     string
	timeout time.Duration
}

func (*sheetsAuthCmd) Name() string { return "sheets-auth" }
func (*sheetsAuthCmd) Synopsis() string {
	return "authorize the Google Sheets mirror with a user account"
}
func (*sheetsAuthCmd) Usage() string {
	return `budgetctl sheets-auth [-port 8085] [-o token.json]

  Runs the OAuth consent flow for the client in GOOGLE_OAUTH_CLIENT_JSON or
  GOOGLE_OAUTH_CLIENT_FILE and saves the token. Point GOOGLE_OAUTH_TOKEN_FILE
  at it to have ledger-worker mirror as that user. The client must allow the
  redirect URI http://localhost:<port>/callback.
`
}

func (c *sheetsAuthCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.port, "port", envOr("OAUTH_REDIRECT_PORT", "8085"), "local port for the OAuth redirect")
	f.StringVar(&c.out, "o", "", "token output file (defaults to GOOGLE_OAUTH_TOKEN_FILE or token.json)")
	f.DurationVar(&c.timeout, "timeout", 5*time.Minute, "how long to wait for consent")
}

func (c *sheetsAuthCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cli.LoadEnvFile()

	cfg, err := gsheet.OAuthConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	out := c.out
	if out == "" {
		out = gsheet.TokenFile()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	tok, err := gsheet.Authorize(ctx, cfg, c.port, func(url string) {
		fmt.Printf("Open this URL to authorize:\n%s\n", url)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := gsheet.SaveToken(out, tok); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printSuccess("saved token to %s", out)
	return subcommands.ExitSuccess
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
