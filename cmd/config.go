package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/ftlsim/config"
)

func newConfigCmd(configPath func() string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create and inspect configuration files.",
	}

	configCmd.AddCommand(newConfigInitCmd(configPath))
	configCmd.AddCommand(newConfigShowCmd(configPath))
	configCmd.AddCommand(newConfigValidateCmd(configPath))

	return configCmd
}

func newConfigInitCmd(configPath func() string) *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration.",
		Long: "`config init` writes the default configuration to the --config " +
			"path, or to the user config directory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath()
			if path == "" {
				path = config.DefaultPath()
			}

			_, err := os.Stat(path)
			if err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}

			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			if err := config.Save(config.Default(), path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)

			return nil
		},
	}

	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	return initCmd
}

func newConfigShowCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration.",
		Long: "`config show` prints the configuration after the defaults and " +
			"the FTLSIM_ environment overrides are applied.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)

			if err := enc.Encode(cfg); err != nil {
				return err
			}

			return enc.Close()
		},
	}
}

func newConfigValidateCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}

			g := cfg.NANDGeometry()
			fmt.Fprintf(cmd.OutOrStdout(),
				"Configuration is valid: %d blocks, %d sectors, %s scheme\n",
				g.TotalBlocks(), g.TotalSectors(), cfg.FTL.Scheme)

			return nil
		},
	}
}
