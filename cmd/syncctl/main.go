// Command syncctl talks to a portfolio sync relay from the command line: it announces content
// changes as an admin, follows them as a preview, and reports relay status.
package main

import (
	"fmt"
	"os"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go-simpler.org/env"
)

// environment supplies flag defaults from the process environment or a .env file.
type environment struct {
	URL      string `env:"SYNC_URL" default:"ws://localhost:8080/ws"`
	Token    string `env:"SYNC_TOKEN"`
	Codec    string `env:"SYNC_CODEC" default:"json"`
	LogLevel string `env:"LOG_LEVEL" default:"warn"`
}

func loadEnvironment() (environment, error) {
	_ = godotenv.Load()

	var e environment
	if err := env.Load(&e, nil); err != nil {
		return environment{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	return e, nil
}

func main() {
	defaults, err := loadEnvironment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opts := &options{}
	root := &cobra.Command{
		Use:           "syncctl",
		Short:         "Announce and follow portfolio content changes through the sync relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitLogger(opts.logLevel, "text")
		},
	}
	opts.bind(root, defaults)

	root.AddCommand(
		newNotifyCommand(opts),
		newRefreshCommand(opts),
		newWatchCommand(opts),
		newFollowCommand(opts),
		newStatusCommand(opts),
		newVersionCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
