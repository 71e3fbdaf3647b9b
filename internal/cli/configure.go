package cli

import (
	"fmt"
	"os"

	"github.com/harun/ssegate/internal/config"
	"github.com/spf13/cobra"
)

var (
	configureShow  bool
	configureForce bool
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write or show the configuration file",
	Long: `Write the effective configuration (defaults, file values and SSEGATE_*
environment overrides) to the config file, or print it with --show.
Secrets are masked when printed.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().BoolVar(&configureShow, "show", false, "print the effective configuration instead of writing it")
	configureCmd.Flags().BoolVar(&configureForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	if configureShow {
		fmt.Fprintln(out, cfg.String())
		return nil
	}

	configPath := loader.GetConfigPath()
	if _, err := os.Stat(configPath); err == nil && !configureForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", configPath)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(out, "Configuration saved to: %s\n", configPath)
	fmt.Fprintln(out, "You can now start the gateway with: ssegate serve")
	return nil
}
