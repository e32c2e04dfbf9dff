package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/schemadrift/schemadrift/internal/wizard"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a schemadrift.toml project file",
	Long: `Init walks through a short interactive form — environment name,
database URL, optional shadow database URL, and schema file path — and
writes schemadrift.toml plus a .env.<name> file holding the connection
string so it never ends up committed to the project file itself.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	p := tea.NewProgram(wizard.New())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return nil
}
