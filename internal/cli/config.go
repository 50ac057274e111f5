package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nkondo/timebridge/internal/app"
)

// newConfigCommand creates the config command group.
func newConfigCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(newConfigShowCommand(c))
	return cmd
}

// newConfigShowCommand creates the config show command.
func newConfigShowCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration after merging defaults, the
global config file and the local one.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(c.Config)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, _ = cmd.OutOrStdout().Write(data)
			return nil
		},
	}
	return cmd
}
