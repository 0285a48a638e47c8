package cmd

import (
	"fmt"
	"os"

	"github.com/Beastly713/parsefuzz/pkg/classify"
	"github.com/Beastly713/parsefuzz/pkg/decoder"
	"github.com/Beastly713/parsefuzz/pkg/harness"
	"github.com/Beastly713/parsefuzz/pkg/parsers"
	"github.com/Beastly713/parsefuzz/pkg/registry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose   bool
	rulesPath string
	textMode  string

	logger = zap.NewNop()

	// newRegistry builds the registry every command selects from.
	newRegistry = parsers.NewRegistry
)

var rootCmd = &cobra.Command{
	Use:   "parsefuzz",
	Short: "Differential fuzz harness for a registry of parsers",
	Long: `parsefuzz feeds fuzz buffers to a registry of format parsers and
separates benign rejections of malformed input from genuine defects.

The fuzz targets live in pkg/harness. This tool replays and triages the
crash artifacts they leave behind.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := decoder.ParseTextMode(textMode); err != nil {
			return err
		}

		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log benign faults and other debug output")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "YAML file extending the default allowlist")
	rootCmd.PersistentFlags().StringVar(&textMode, "text-mode", decoder.UTF8.String(), "How buffers become text: utf8 or mixed")
}

// loadRules returns the default allowlist for reg, extended by --rules.
func loadRules(reg *registry.Registry) (*classify.Ruleset, error) {
	rules := classify.Default(reg.ExcludedIDs()...)
	if rulesPath == "" {
		return rules, nil
	}
	return classify.LoadFile(rulesPath, rules)
}

// newHarness builds a harness from the persistent flags.
func newHarness(opts ...harness.Option) (*harness.Harness, error) {
	mode, err := decoder.ParseTextMode(textMode)
	if err != nil {
		return nil, err
	}
	reg, err := newRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}
	rules, err := loadRules(reg)
	if err != nil {
		return nil, err
	}

	base := []harness.Option{
		harness.WithRules(rules),
		harness.WithLogger(logger),
		harness.WithTextMode(mode),
	}
	return harness.New(reg, append(base, opts...)...)
}
