package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/classver/internal/harness"
	"github.com/roach88/classver/internal/purge"
)

// PurgeOptions holds flags for the purge command.
type PurgeOptions struct {
	*RootOptions
	Properties string
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PurgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "purge <root-id>",
		Short: "Destroy the history of a classification",
		Long: `Permanently destroy every revision of a classification.

The dropHistory properties decide whether the purge is allowed. Without
a properties file every purge is denied.

Properties are evaluated in this order, later definitions win:
  dropHistory, dropHistory.preMatch, dropHistory.class.preMatch,
  dropHistory.class, dropHistory.<root>, dropHistory.class.<root>,
  dropHistory.postMatch, dropHistory.class.postMatch

Example:
  classver purge colors --properties purge.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts.RootOptions, false)
			if err != nil {
				return err
			}
			defer a.close()

			props, err := a.properties(opts.Properties)
			if err != nil {
				return err
			}
			a.out.VerboseLog("purge properties: %v", props.Keys())

			if err := a.manager.Purge(cmd.Context(), args[0], purge.NewPolicy(props, "")); err != nil {
				return historyError("purge failed", err)
			}
			return a.out.Success(ObjectView{Object: a.manager.Prefix() + args[0], Action: "purged"})
		},
	}

	cmd.Flags().StringVar(&opts.Properties, "properties", "", "YAML purge properties (default $CLASSVER_PROPERTIES)")
	return cmd
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <root-id>",
		Short: "Undo the deletion of a classification",
		Long: `Commit the content of the revision before the latest deletion again,
recorded as repaired.

Example:
  classver restore colors`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.close()

			rev, err := a.manager.Restore(cmd.Context(), args[0])
			if err != nil {
				return historyError("restore failed", err)
			}
			if _, err := harness.LoadLiveTree(cmd.Context(), a.manager, a.forest, args[0]); err != nil {
				return historyError("restored document unreadable", err)
			}
			return a.out.Success(newRevisionView(rev))
		},
	}
}
