package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/classver/internal/classtree"
	"github.com/roach88/classver/internal/harness"
	"github.com/roach88/classver/internal/model"
	"github.com/roach88/classver/internal/txn"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Properties string
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <path>",
		Short: "Record classifications from a CUE definition",
		Long: `Create every classification defined in a CUE file or package directory
in one transaction. Each node is recorded as created.

Example:
  classver load ./classifications/colors.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args[0], cmd)
		},
	}
}

func runLoad(opts *RootOptions, path string, cmd *cobra.Command) error {
	snaps, err := classtree.Load(path)
	if err != nil {
		var defErr *classtree.DefinitionError
		if errors.As(err, &defErr) {
			return WrapExitError(ExitCommandError, "invalid classification definition", err)
		}
		return WrapExitError(ExitCommandError, "failed to load definitions", err)
	}

	a, err := openApp(cmd, opts, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	for _, s := range snaps {
		exists, err := harness.LoadLiveTree(ctx, a.manager, a.forest, s.ID.RootID)
		if err != nil {
			return historyError("read existing history", err)
		}
		if exists {
			return NewExitError(ExitFailure, fmt.Sprintf("classification %s already exists", s.ID.RootID))
		}
	}

	revs, err := a.controller(a.cfg.Mode()).Run(ctx, func(tx *txn.Tx) error {
		for _, s := range snaps {
			root, err := a.forest.AddSnapshot(s)
			if err != nil {
				return err
			}
			if err := notifyCreated(ctx, tx, root); err != nil {
				return err
			}
			a.out.VerboseLog("loaded %s", s.ID.RootID)
		}
		return nil
	})
	if err != nil {
		return historyError("load failed", err)
	}
	a.out.VerboseLog("committed %d revisions for %v", len(revs), a.forest.RootIDs())
	return a.out.Success(newRevisionsView(revs))
}

// notifyCreated reports every node of root's tree as created, parents
// before children.
func notifyCreated(ctx context.Context, tx *txn.Tx, root *classtree.Node) error {
	var err error
	classtree.Walk(root, func(n *classtree.Node) {
		if err == nil {
			err = tx.Notify(ctx, model.Created{Target: n})
		}
	})
	return err
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <script.yaml>",
		Short: "Run a change script against the history",
		Long: `Apply the transactions of a change script to the live trees rebuilt from
their head documents, committing or rolling back each one.

Exit codes:
  0 - Every transaction met its expectation and every assertion held
  1 - The script failed
  2 - Command error (invalid script, database not found, etc.)

Example:
  classver apply ./changes/rename-red.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Properties, "properties", "", "YAML purge properties for purge actions (default $CLASSVER_PROPERTIES)")
	return cmd
}

func runApply(opts *ApplyOptions, path string, cmd *cobra.Command) error {
	script, err := harness.LoadScript(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load script", err)
	}

	a, err := openApp(cmd, opts.RootOptions, false)
	if err != nil {
		return err
	}
	defer a.close()

	mode := a.cfg.Mode()
	if script.CommitMode != "" {
		if mode, err = txn.ParseMode(script.CommitMode); err != nil {
			return WrapExitError(ExitCommandError, "invalid script", err)
		}
	}
	props, err := a.properties(opts.Properties)
	if err != nil {
		return err
	}

	result, err := harness.New(a.manager, a.forest, a.controller(mode), props).Execute(cmd.Context(), script)
	if err != nil {
		return historyError("apply failed", err)
	}

	if err := a.out.Success(ScriptView{
		Name:   script.Name,
		Pass:   result.Pass,
		Trace:  result.Trace,
		Errors: result.Errors,
	}); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("script %s failed", script.Name))
	}
	return nil
}
