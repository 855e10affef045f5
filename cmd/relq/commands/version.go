package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/relq/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	// Version needs no configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runVersion,
}

var (
	versionFull    bool
	versionRequire string
)

func init() {
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "Print build details")
	versionCmd.Flags().StringVar(&versionRequire, "require", "", "Fail unless the version satisfies a constraint such as \">= 0.1\"")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()
	if versionRequire != "" {
		ok, err := info.Satisfies(versionRequire)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("relq %s does not satisfy %q", info.Version, versionRequire)
		}
	}
	if versionFull {
		fmt.Fprintln(cmd.OutOrStdout(), info.FullString())
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), info.String())
	}
	return nil
}
