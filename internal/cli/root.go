package cli

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"santa.share/config"
	"santa.share/internal/logging"
)

var (
	verbose    bool
	debug      bool
	configPath string
	Logger     logging.Logger
)

// NewRootCmd builds the santa command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "santa",
		Short: "Secret Santa draws with self-destructing, end-to-end encrypted links",
		Long: `santa draws Secret Santa pairs on your machine, encrypts every match
under its own key and hands out links that can be opened once.

The key is only ever carried in the link fragment, so the server that
stores or mails the links never sees who got whom.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), figure.NewFigure("Santa", "doom", true).String())
			_ = cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logging.Logger{
				Verbose: verbose,
				Debug:   debug,
				Out:     cmd.ErrOrStderr(),
				Err:     cmd.ErrOrStderr(),
			}
			Logger.Debugf("Initializing %s with verbose=%t, debug=%t", cmd.Name(), verbose, debug)
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(newDrawCmd())
	root.AddCommand(newRevealCmd())

	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	Logger.Debugf("Config loaded: mode=%s ttl=%s server=%s", cfg.Links.Mode, cfg.Links.TTL, cfg.Server.BaseURL)
	return cfg, nil
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// resetGlobalState restores flag defaults between tests.
func resetGlobalState() {
	verbose = false
	debug = false
	configPath = ""
}
