package main

import (
	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/construct/internal/settings"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "construct",
		Short:         "Construct builds the factors of a project with the mechanisms of a build context",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	settings.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newPlanCmd())
	cmd.AddCommand(newMechanismCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}
