package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"santa.share/internal/client"
	"santa.share/internal/links"
	"santa.share/internal/models"
	"santa.share/internal/pairing"
)

type drawOptions struct {
	participants []string
	file         string
	mode         string
	server       string
	ttl          time.Duration
	send         bool
	showLinks    bool
	out          string
}

// shareEntry is one line of the --out file.
type shareEntry struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email,omitempty"`
	Link  string `yaml:"link"`
}

func newDrawCmd() *cobra.Command {
	opts := &drawOptions{}

	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Draw pairs and hand out reveal links",
		Long: `Draws a Secret Santa assignment in which nobody gets themself, seals
each match under a fresh key and produces one reveal link per giver.

Links are hidden by default so the organizer does not spoil the draw.
Use --send to mail them, --out to save them, or --show-links to print them.`,
		Example: `  santa draw -p "Alice <alice@example.com>" -p "Bob <bob@example.com>" -p Carol --send
  santa draw -f participants.yaml --mode stateless --out links.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraw(cmd, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.participants, "participant", "p", nil, `participant as "Name" or "Name <email>" (repeatable)`)
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "YAML file with a list of {name, email}")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "link mode: stored or stateless (default from config)")
	cmd.Flags().StringVarP(&opts.server, "server", "s", "", "server base URL (default from config)")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "how long links stay readable (default from config)")
	cmd.Flags().BoolVar(&opts.send, "send", false, "mail each participant their link through the server")
	cmd.Flags().BoolVar(&opts.showLinks, "show-links", false, "print links (spoiler warning!)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write links to this file")

	return cmd
}

func runDraw(cmd *cobra.Command, opts *drawOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	participants, err := collectParticipants(opts)
	if err != nil {
		return err
	}
	participants = pairing.Normalize(participants)
	if err := pairing.Validate(participants); err != nil {
		return err
	}
	Logger.Infof("Drawing pairs for %d participants", len(participants))

	mode := cfg.Links.Mode
	if opts.mode != "" {
		mode = opts.mode
	}
	server := cfg.Server.BaseURL
	if opts.server != "" {
		server = opts.server
	}
	ttl := cfg.ClampTTL(opts.ttl)

	records, err := pairing.NewEngine(ttl).Generate(participants)
	if err != nil {
		return err
	}

	api := client.New(server)
	var backend links.Backend
	if links.Mode(mode) == links.ModeStored {
		backend = api
	}
	proto, err := links.New(links.Mode(mode), server, backend)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, cleanup := startSpinner(cmd, "Publishing matches...")
	err = proto.Publish(ctx, records)
	if err != nil {
		s.FinalMSG = color.RedString("✗") + " Failed to publish matches: " + err.Error()
		cleanup()
		return err
	}
	cleanup()
	Logger.Infof("Published %d %s matches", len(records), mode)

	entries := make([]shareEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, shareEntry{Name: r.GiverName, Email: r.GiverEmail, Link: proto.Link(r)})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, color.GreenString("✓")+" Pairs generated! Links expire in "+color.YellowString(ttl.String())+".")

	if opts.out != "" {
		if err := writeShareFile(opts.out, entries); err != nil {
			return err
		}
		fmt.Fprintln(out, "  Links written to "+color.YellowString(opts.out))
	}

	if opts.send {
		if err := sendLinks(ctx, cmd, api, entries); err != nil {
			return err
		}
	}

	for _, e := range entries {
		if opts.showLinks {
			fmt.Fprintf(out, "  %s: %s\n", color.CyanString(e.Name), e.Link)
		} else {
			fmt.Fprintf(out, "  %s: %s\n", color.CyanString(e.Name), "link hidden (blind mode)")
		}
	}

	if !opts.showLinks && !opts.send && opts.out == "" {
		Logger.Warnf("Links are hidden and were neither sent nor saved; use --send, --out or --show-links")
	}

	return nil
}

func sendLinks(ctx context.Context, cmd *cobra.Command, api *client.Client, entries []shareEntry) error {
	notes := make([]models.Notification, 0, len(entries))
	for _, e := range entries {
		if e.Email != "" {
			notes = append(notes, models.Notification{Name: e.Name, Email: e.Email, Link: e.Link})
		}
	}
	if len(notes) == 0 {
		return fmt.Errorf("no participants have email addresses")
	}

	s, cleanup := startSpinner(cmd, "Sending emails...")
	report, err := api.Notify(ctx, notes)
	if err != nil {
		s.FinalMSG = color.RedString("✗") + " Failed to send emails: " + err.Error()
		cleanup()
		return err
	}
	cleanup()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Sent %d of %d emails\n", color.GreenString("✓"), len(report.Sent), len(notes))
	for _, f := range report.Failed {
		fmt.Fprintf(out, "  %s %s: %s\n", color.RedString("✗"), f.Email, f.Reason)
	}
	return nil
}

func collectParticipants(opts *drawOptions) ([]models.Participant, error) {
	var participants []models.Participant

	if opts.file != "" {
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return nil, fmt.Errorf("reading participants file: %w", err)
		}
		if err := yaml.Unmarshal(data, &participants); err != nil {
			return nil, fmt.Errorf("parsing participants file: %w", err)
		}
	}

	for _, p := range opts.participants {
		participants = append(participants, models.ParseParticipant(p))
	}

	return participants, nil
}

func writeShareFile(path string, entries []shareEntry) error {
	data, err := yaml.Marshal(entries)
	if err != nil {
		return err
	}
	// Links carry keys: owner-only.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing links file: %w", err)
	}
	return nil
}
