package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ralt/sdkgen/internal/generator"
	"github.com/ralt/sdkgen/internal/models"
	"github.com/ralt/sdkgen/internal/signer"
	"github.com/ralt/sdkgen/internal/utils"
)

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	var (
		platform models.Platform
		format   models.ArchiveFormat
	)

	cmd := &cobra.Command{
		Use:   "generate [flags] <inputs...>",
		Short: "Generate a stub SDK",
		Long: `Parses every input binary (directories are scanned for Mach-O files)
and writes one stub per referenced dynamic library into the destination,
followed by the requested symlinks.

Flags may also be set in a config file (--config) or through SDKGEN_*
environment variables, e.g. SDKGEN_DEST or SDKGEN_SIGN_KEY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}

			// Validate configuration
			if err := validateConfig(config); err != nil {
				return err
			}

			logrus.Info("Starting SDK generation...")
			logrus.Debugf("Configuration: %+v", redacted(config))

			// Run generation
			return runGeneration(cmd.Context(), config)
		},
	}

	// Input/Output flags
	cmd.Flags().StringP("dest", "d", "", "Destination directory or archive file")
	cmd.Flags().VarP(&format, "format", "f", "Output format (dir, tar, tgz, zip)")
	cmd.Flags().IntP("jobs", "j", 0, "Inputs parsed in parallel (0 means one per CPU)")

	// Stub options
	cmd.Flags().VarP(&platform, "platform", "p", "Platform for binaries without a build version (e.g. macos, ios)")

	// Symlink flags
	cmd.Flags().StringArrayP("symlink", "l", nil, `Symlink to add, as "link->original" (also "=>" or ":")`)
	cmd.Flags().StringArray("symlinks-file", nil, "File with one symlink descriptor per line")

	// GPG signing flags (archive formats)
	cmd.Flags().String("sign-key", "", "Path to GPG private key for a detached signature")
	cmd.Flags().String("sign-passphrase", "", "GPG key passphrase")

	return cmd
}

// loadConfig merges flags, SDKGEN_ environment variables and the optional
// config file into a GenerateConfig. Flags set on the command line win.
func loadConfig(cmd *cobra.Command, args []string) (*models.GenerateConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("SDKGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, &models.SdkGenError{Type: models.ErrInvalidConfig, Err: err}
	}

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(utils.ExpandHome(path))
		if err := v.ReadInConfig(); err != nil {
			return nil, &models.SdkGenError{
				Type:  models.ErrInvalidConfig,
				Input: path,
				Err:   fmt.Errorf("failed to read config: %w", err),
			}
		}
		logrus.Debugf("Loaded config from %s", v.ConfigFileUsed())
	}

	config := &models.GenerateConfig{
		Inputs:         args,
		Destination:    utils.ExpandHome(v.GetString("dest")),
		Symlinks:       v.GetStringSlice("symlink"),
		SymlinkFiles:   v.GetStringSlice("symlinks-file"),
		Jobs:           v.GetInt("jobs"),
		SignKeyPath:    v.GetString("sign-key"),
		SignPassphrase: v.GetString("sign-passphrase"),
	}
	if len(config.Inputs) == 0 {
		config.Inputs = v.GetStringSlice("inputs")
	}

	if err := config.Format.Set(v.GetString("format")); err != nil {
		return nil, &models.SdkGenError{Type: models.ErrInvalidConfig, Err: err}
	}
	if err := config.DefaultPlatform.Set(v.GetString("platform")); err != nil {
		return nil, &models.SdkGenError{Type: models.ErrInvalidConfig, Err: err}
	}

	return config, nil
}

func validateConfig(config *models.GenerateConfig) error {
	if len(config.Inputs) == 0 {
		return &models.SdkGenError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("at least one input is required"),
		}
	}

	if config.Destination == "" {
		return &models.SdkGenError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("dest is required"),
		}
	}

	if config.Jobs < 0 {
		return &models.SdkGenError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("jobs must not be negative, got %d", config.Jobs),
		}
	}

	if config.SignKeyPath != "" && !config.Format.IsArchive() {
		logrus.Warnf("Ignoring sign-key: %s output is not signed", config.Format)
		config.SignKeyPath = ""
	}

	return nil
}

func redacted(config *models.GenerateConfig) models.GenerateConfig {
	c := *config
	if c.SignPassphrase != "" {
		c.SignPassphrase = "***"
	}
	return c
}

func runGeneration(ctx context.Context, config *models.GenerateConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var gpgSigner signer.Signer
	if config.SignKeyPath != "" {
		s, err := signer.NewGPGSigner(config.SignKeyPath, config.SignPassphrase)
		if err != nil {
			return &models.SdkGenError{
				Type:  models.ErrSigning,
				Input: config.SignKeyPath,
				Err:   fmt.Errorf("failed to initialize GPG signer: %w", err),
			}
		}
		gpgSigner = s
		logrus.Info("GPG signer initialized")
	}

	return generator.NewGenerator(config, gpgSigner).Generate(ctx)
}
