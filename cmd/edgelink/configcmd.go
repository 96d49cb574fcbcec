package main

import (
	"fmt"

	"github.com/danmuck/edgelink/internal/config"
	"github.com/spf13/cobra"
)

func configCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate, validate and inspect configuration",
	}
	cmd.AddCommand(configTemplateCmd())
	cmd.AddCommand(configValidateCmd(flags))
	cmd.AddCommand(configPrintCmd(flags))
	return cmd
}

func configTemplateCmd() *cobra.Command {
	var output, format string
	var force bool
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write a config template",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				tmpl, err := config.Template(format)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), tmpl)
				return err
			}
			if err := config.WriteTemplate(output, format, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s template to %s\n", format, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (stdout when empty)")
	cmd.Flags().StringVar(&format, "format", "toml", "Template format: toml|yaml")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func configValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.configPath == "" {
				return fmt.Errorf("--config is required")
			}
			if _, err := config.Load(flags.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "validated config at %s\n", flags.configPath)
			return nil
		},
	}
}

func configPrintCmd(flags *rootFlags) *cobra.Command {
	var format string
	var reveal bool
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			out, err := config.Render(cfg, format, reveal)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "toml", "Output format: toml|yaml")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show the passphrase")
	return cmd
}
