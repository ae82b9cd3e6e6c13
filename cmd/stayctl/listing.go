package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iliyamo/student-stay/internal/model"
)

func newListingCmd(a *app) *cobra.Command {
	var photos []string
	submit := &cobra.Command{
		Use:   "submit <listing.json>",
		Short: "Submit a property for review",
		Long: "submit reads a listing from a JSON file. Photos given with --photo are\n" +
			"uploaded first and appended to the listing's images.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var in model.ListingInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			files := a.api.Files()
			for _, p := range photos {
				data, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				url, err := files.UploadFile(cmd.Context(), data, filepath.Base(p))
				if err != nil {
					return fmt.Errorf("upload %s: %s", p, describe(err))
				}
				in.Images = append(in.Images, url)
				a.printf("uploaded %s\n", p)
			}
			l, err := a.api.SubmitListing(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.printf("submitted %s (%s); it appears once an admin approves it\n", l.ID, l.Status)
			return nil
		},
	}
	submit.Flags().StringArrayVar(&photos, "photo", nil, "image file to upload (repeatable)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List approved properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := a.api.ApprovedListings(cmd.Context())
			if err != nil {
				return err
			}
			a.printListings(items)
			return nil
		},
	}

	cmd := &cobra.Command{Use: "listing", Short: "List your property"}
	cmd.AddCommand(submit, list)
	return cmd
}

func (a *app) printListings(items []model.Listing) {
	if len(items) == 0 {
		a.printf("nothing to show\n")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tGENDER\tRENT\tSTATUS\tSUBMITTED")
	for _, l := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			l.ID, l.Name, l.Type, l.Gender, l.Price, l.Status, l.SubmittedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "Review submitted properties"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "pending",
			Short: "List submissions awaiting a decision, oldest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				items, err := a.api.PendingListings(cmd.Context())
				if err != nil {
					return err
				}
				a.printListings(items)
				return nil
			},
		},
		&cobra.Command{
			Use:  "approve <id>",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				l, err := a.api.ApproveListing(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				a.printf("approved %s, published as %s\n", args[0], l.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:  "reject <id>",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := a.api.RejectListing(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.printf("rejected %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
