package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iliyamo/student-stay/internal/model"
)

func newInquireCmd(a *app) *cobra.Command {
	var in model.InquiryInput
	cmd := &cobra.Command{
		Use:   "inquire <id>",
		Short: "Ask an accommodation about availability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || !a.catalog.Has(id) {
				return fmt.Errorf("unknown accommodation %q", args[0])
			}
			in.AccommodationID = id
			acct := a.hub.Current().Account
			if in.Name == "" {
				in.Name = acct.Name
			}
			if in.Phone == "" {
				in.Phone = acct.Phone
			}
			q, err := a.api.Inquire(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.printf("inquiry %s sent\n", q.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "your name (defaults to the account name)")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "contact number (defaults to the account phone)")
	cmd.Flags().StringVar(&in.MoveIn, "move-in", "", "move-in date, YYYY-MM-DD")
	cmd.Flags().StringVar(&in.Message, "message", "", "message for the owner")
	return cmd
}

func newBlogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "blog", Short: "Guides for students"}
	var tags []string
	publish := &cobra.Command{
		Use:   "publish <slug> <title> <file.md>",
		Short: "Publish a markdown post (admin)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			p, err := a.api.PublishPost(cmd.Context(), model.BlogPostInput{Slug: args[0], Title: args[1], BodyMD: string(body), Tags: tags})
			if err != nil {
				return err
			}
			a.printf("published /blog/%s\n", p.Slug)
			return nil
		},
	}
	publish.Flags().StringSliceVar(&tags, "tag", nil, "tags")
	cmd.AddCommand(
		&cobra.Command{
			Use:  "list",
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				posts, err := a.api.Posts(cmd.Context())
				if err != nil {
					return err
				}
				for _, p := range posts {
					a.printf("%s  %-32s %s\n", p.PublishedAt.Format("2006-01-02"), p.Slug, p.Title)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:  "read <slug>",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := a.api.Post(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				a.printf("# %s\n\n%s\n", p.Title, p.BodyMD)
				return nil
			},
		},
		publish,
	)
	return cmd
}
