package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ralt/sdkgen/internal/models"
)

// levelEnv selects the log level when neither --verbose nor --log-level is given
const levelEnv = "SDK_GEN_LEVEL"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sdkgen",
		Short: "Generate text-based stub SDKs from Mach-O binaries",
		Long: `Sdkgen reads Mach-O executables and libraries, collects the symbols
they import from each dynamic library, and writes a TAPI v4 stub (.tbd)
per library so the binaries can be relinked without the real SDK.

Supported output formats:
  - Directory tree (dir)
  - Tar archive (tar)
  - Gzip compressed tar archive (tgz)
  - Zip archive (zip)`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error); defaults to $"+levelEnv+" or info")
	rootCmd.PersistentFlags().String("config", "", "Config file with default flag values")

	// Add subcommands
	rootCmd.AddCommand(NewGenerateCmd())

	return rootCmd
}

func setupLogging(cmd *cobra.Command) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
		return nil
	}

	name, _ := cmd.Flags().GetString("log-level")
	if name == "" {
		name = os.Getenv(levelEnv)
	}
	if name == "" {
		logrus.SetLevel(logrus.InfoLevel)
		return nil
	}

	level, err := logrus.ParseLevel(name)
	if err != nil {
		return &models.SdkGenError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("invalid log level: %w", err),
		}
	}
	logrus.SetLevel(level)
	return nil
}
