// Command volume-tools runs the volume tools MCP server or applies a single
// operation from the command line.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ironsheep/volume-tools-mcp/internal/config"
	"github.com/ironsheep/volume-tools-mcp/internal/logging"
	"github.com/ironsheep/volume-tools-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	server.Version = Version

	app := &app{}
	rootCmd := &cobra.Command{
		Use:   "volume-tools",
		Short: "MCP server and CLI for N-dimensional medical images",
		Long: `volume-tools inspects, resamples and converts N-dimensional images
(MetaImage .mha/.mhd, VTK .vti, PNG/JPEG/GIF).

Run "volume-tools serve" from an MCP client to expose the tools over stdio.
Settings come from --config, then VOLUME_TOOLS_* environment variables
(a .env file in the working directory is loaded first).`,
		SilenceUsage:      true,
		PersistentPreRunE: app.setup,
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return app.close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "override the log level (debug, info, warning, error)")

	rootCmd.AddCommand(
		newServeCmd(app),
		newInfoCmd(app),
		newIsotropicCmd(app),
		newResizeCmd(app),
		newThumbnailCmd(app),
		newEqualizeCmd(app),
		newOverlayCmd(app),
		newRegisterCmd(app),
		newConvertCmd(app),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("command execution failed: %w", err)
	}
	return nil
}

// app holds state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	cleanup func() error
}

func (a *app) setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if _, a.cleanup, err = logging.Setup(cfg.Logging); err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	a.cfg = cfg
	logging.Debugf("volume-tools %s (built %s, commit %s)", Version, BuildTime, GitCommit)
	return nil
}

func (a *app) close() error {
	if a.cleanup == nil {
		return nil
	}
	return a.cleanup()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// version needs no config or logging
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "volume-tools %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		},
	}
}

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stderr)
}
