package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/classver/internal/classtree"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Revision int64
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <root-id>",
		Short: "Create an empty history for a classification",
		Long: `Create the history object of a classification before any content exists.

The first revision is recorded as initialized; reading it fails until
content is committed.

Example:
  classver init colors --db ./classver.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.close()

			rev, err := a.manager.Initialize(cmd.Context(), args[0])
			if err != nil {
				return historyError("initialize failed", err)
			}
			return a.out.Success(newRevisionView(rev))
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <root-id> [category-id...]",
		Short: "Print a stored document",
		Long: `Print the document of a classification or category from its history.

Categories are addressed by their ancestor chain below the root, so
deleted categories stay readable in earlier revisions.

Examples:
  classver show colors
  classver show colors blue navy --rev 2`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := classtree.Chain(args[0], args[1:]...)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid category path", err)
			}

			a, err := openApp(cmd, opts.RootOptions, true)
			if err != nil {
				return err
			}
			defer a.close()

			doc, err := a.manager.Retrieve(cmd.Context(), node, opts.Revision)
			if err != nil {
				return historyError("retrieve failed", err)
			}
			return a.out.Success(DocumentView{
				Object:   doc.Revision.ObjectID,
				Path:     doc.Path,
				Revision: doc.Revision.Number,
				Reason:   newRevisionView(doc.Revision).Reason,
				Content:  string(doc.Data),
			})
		},
	}

	cmd.Flags().Int64Var(&opts.Revision, "rev", 0, "revision number (0 = head)")
	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <root-id>",
		Short: "List the revisions of a classification",
		Long: `List every revision of a classification, oldest first.

Example:
  classver history colors --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts, true)
			if err != nil {
				return err
			}
			defer a.close()

			revs, err := a.manager.History(cmd.Context(), args[0])
			if err != nil {
				return historyError("history failed", err)
			}
			return a.out.Success(newRevisionsView(revs))
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the versioned objects in the database",
		Long: `List every versioned object with recorded history, in lexical order.

Example:
  classver list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts, true)
			if err != nil {
				return err
			}
			defer a.close()

			objects, err := a.store.ListObjects(cmd.Context())
			if err != nil {
				return historyError("list failed", err)
			}
			return a.out.Success(ObjectsView(objects))
		},
	}
}
