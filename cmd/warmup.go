package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/pcs/internal/workspace"
)

var warmupCmd = &cobra.Command{
	Use:          "warmup",
	Short:        "Check that framework support can be initialized",
	Long:         `Resolve the framework dependencies and download the framework summary in a throwaway workspace.`,
	RunE:         runWarmup,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
}

func runWarmup(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	state := a.compiler.Warmup(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "Framework: %s\n", state)

	if state != workspace.FrameworkReady {
		return fmt.Errorf("framework initialization failed, see log for details")
	}

	return nil
}
