package cli

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"santa.share/internal/client"
	"santa.share/internal/links"
	"santa.share/internal/reveal"
)

func newRevealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reveal <link>",
		Short: "Open a reveal link",
		Long: `Opens a reveal link and prints who you are the Secret Santa for.

Stored links can be opened exactly once: the match is deleted from the
server as it is read. Quote the link so your shell keeps the #fragment.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReveal(cmd, args[0])
		},
	}
}

func runReveal(cmd *cobra.Command, link string) error {
	base, err := revealBase(link)
	if err != nil {
		return err
	}
	Logger.Debugf("Resolving against %s", base)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resolver := reveal.NewResolver(
		&links.Stored{BaseURL: base, Backend: client.New(base)},
		&links.Stateless{BaseURL: base},
	)

	s, cleanup := startSpinner(cmd, "Decrypting...")
	outcome := resolver.ResolveURL(ctx, link)
	if outcome.State != reveal.StateRevealed {
		s.FinalMSG = color.RedString("✗") + " Access denied: " + outcome.Message()
		cleanup()
		Logger.Debugf("Reveal denied (%s): %v", outcome.Reason, outcome.Err)
		return fmt.Errorf("reveal denied: %s", outcome.Reason)
	}
	cleanup()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "You are the Secret Santa for...")
	fmt.Fprintln(out, "  "+color.New(color.FgRed, color.Bold).Sprint(outcome.Text))
	fmt.Fprintln(out, "Shh! Keep it a secret until the party!")
	return nil
}

// revealBase returns the server URL a link was issued under: everything
// before its /reveal/ segment, so path prefixes are kept.
func revealBase(link string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: expected an absolute URL", links.ErrMalformedLink)
	}

	i := strings.LastIndex(u.Path, "/reveal/")
	if i < 0 {
		return "", fmt.Errorf("%w: not a reveal link", links.ErrMalformedLink)
	}

	return u.Scheme + "://" + u.Host + u.Path[:i], nil
}
