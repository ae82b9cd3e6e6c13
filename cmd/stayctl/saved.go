package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iliyamo/student-stay/internal/filter"
)

// loadSaved fetches the saved set when someone is signed in.
func (a *app) loadSaved(ctx context.Context) error {
	id := a.hub.Current().AccountID()
	if id == "" {
		return nil
	}
	_, err := a.saved.LoadForAccount(ctx, id)
	return err
}

func newSavedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "saved", Short: "Your saved accommodations"}
	cmd.AddCommand(
		&cobra.Command{
			Use:  "list",
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if a.hub.Current().AccountID() == "" {
					return fmt.Errorf("sign in to see saved accommodations")
				}
				if err := a.loadSaved(cmd.Context()); err != nil {
					return err
				}
				sel := filter.NewStore(a.store, "").Selection()
				a.printResults(sel, a.catalog.Subset(a.saved.IDs()))
				return nil
			},
		},
		&cobra.Command{
			Use:   "toggle <id>",
			Short: "Save an accommodation, or remove it when already saved",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.Atoi(args[0])
				if err != nil || !a.catalog.Has(id) {
					return fmt.Errorf("unknown accommodation %q", args[0])
				}
				if err := a.loadSaved(cmd.Context()); err != nil {
					return err
				}
				on, err := a.saved.Toggle(cmd.Context(), id)
				if err != nil {
					return err
				}
				if on {
					a.printf("saved %d\n", id)
				} else {
					a.printf("removed %d\n", id)
				}
				return nil
			},
		},
	)
	return cmd
}
