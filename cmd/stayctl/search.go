package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iliyamo/student-stay/internal/filter"
	"github.com/iliyamo/student-stay/internal/model"
)

func newSearchCmd(a *app) *cobra.Command {
	var college, typ, gender string
	cmd := &cobra.Command{
		Use:   "search",
		Short: "List accommodations matching the saved filter",
		Long: "search updates the saved filter with any flag given and prints the matching\n" +
			"accommodations. Pass an empty value (--type \"\") to clear a field.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := filter.NewStore(a.store, college)
			if cmd.Flags().Changed("type") {
				t, err := filter.ParseType(typ)
				if err != nil {
					return err
				}
				if err := fs.SetAccommodationType(t); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("gender") {
				g, err := filter.ParseGender(gender)
				if err != nil {
					return err
				}
				if err := fs.SetGender(g); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("college") && college == "" {
				fs.SetCollege("")
			}
			if err := a.loadSaved(cmd.Context()); err != nil {
				a.printf("saved marks unavailable: %s\n", describe(err))
			}
			a.printResults(fs.Selection(), fs.Apply(a.catalog.All()))
			return nil
		},
	}
	cmd.Flags().StringVar(&college, "college", "", "college to search near (see: stayctl filters colleges)")
	cmd.Flags().StringVar(&typ, "type", "", "hostel or pg")
	cmd.Flags().StringVar(&gender, "gender", "", "boys or girls")
	return cmd
}

func (a *app) printResults(sel filter.Selection, items []model.Accommodation) {
	a.printf("filter: %s\n", describeSelection(sel))
	if len(items) == 0 {
		a.printf("no accommodations match\n")
		return
	}
	near := sel.College
	if near == "" {
		near = model.OtherCollege
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tGENDER\tRENT\tKM\tAMENITIES\tSAVED")
	for _, it := range items {
		mark := ""
		if a.saved.IsSaved(it.ID) {
			mark = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.1f\t%s\t%s\n",
			it.ID, it.Name, it.Type, it.Gender, it.Price, it.DistanceTo(near),
			strings.Join(it.TopAmenities(3), ", "), mark)
	}
	tw.Flush()
}

func describeSelection(sel filter.Selection) string {
	if sel.IsEmpty() {
		return "none"
	}
	var parts []string
	if sel.College != "" {
		parts = append(parts, "near "+sel.College)
	}
	if sel.AccommodationType != "" {
		parts = append(parts, string(sel.AccommodationType))
	}
	if sel.Gender != "" {
		parts = append(parts, string(sel.Gender))
	}
	return strings.Join(parts, ", ")
}

func newFiltersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "filters", Short: "Show or reset the saved search filter"}
	cmd.AddCommand(
		&cobra.Command{
			Use:  "show",
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a.printf("%s\n", describeSelection(filter.NewStore(a.store, "").Selection()))
				return nil
			},
		},
		&cobra.Command{
			Use:  "reset",
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				filter.NewStore(a.store, "").Reset()
				a.printf("filter cleared\n")
				return nil
			},
		},
		&cobra.Command{
			Use:   "colleges",
			Short: "List the colleges distances are known for",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, c := range a.catalog.Colleges() {
					a.printf("%s\n", c)
				}
				return nil
			},
		},
	)
	return cmd
}
