// Command stayctl is the terminal client of the student-stay service. It
// keeps the search filter, the signed-in account and the post-login
// destination in a local state file.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/authflow"
	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/catalog"
	"github.com/iliyamo/student-stay/internal/client"
	"github.com/iliyamo/student-stay/internal/kv"
	"github.com/iliyamo/student-stay/internal/saved"
	"github.com/iliyamo/student-stay/internal/session"
)

type app struct {
	apiURL    string
	stateFile string

	store   kv.Store
	hub     *session.Hub
	api     *client.Client
	auth    *authflow.Machine
	saved   *saved.Manager
	catalog *catalog.Catalog

	in  *bufio.Reader
	out io.Writer
}

func (a *app) init() error {
	if a.stateFile == "" {
		p, err := kv.DefaultPath()
		if err != nil {
			return fmt.Errorf("state file: %w", err)
		}
		a.stateFile = p
	}
	cat, err := catalog.Default()
	if err != nil {
		return err
	}
	a.catalog = cat
	a.store = kv.NewFileStore(a.stateFile)
	a.hub = session.NewHub()
	a.api = client.New(a.apiURL)
	a.auth = authflow.New(authflow.Config{
		Accounts:    a.api.Accounts(),
		Hub:         a.hub,
		Store:       a.store,
		CountryCode: envOr("STAY_COUNTRY_CODE", authflow.DefaultCountryCode),
	})
	a.api.Session = func() backend.Account { return a.hub.Current().Account }
	a.api.OnRefresh = a.auth.Refreshed
	a.auth.Restore()
	a.saved = saved.New(a.api.Accounts(), a.hub, a.auth)
	return nil
}

func (a *app) printf(format string, args ...any) { fmt.Fprintf(a.out, format, args...) }

// prompt reads one trimmed line after printing label.
func (a *app) prompt(label string) (string, error) {
	a.printf("%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "stayctl",
		Short:         "Find student hostels and PGs near your college",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.apiURL, "api", envOr("STAY_API_URL", "http://localhost:8080"), "service base URL")
	root.PersistentFlags().StringVar(&a.stateFile, "state", os.Getenv("STAY_STATE_FILE"), "local state file")
	root.AddCommand(
		newSearchCmd(a),
		newFiltersCmd(a),
		newLoginCmd(a),
		newSignupCmd(a),
		newLogoutCmd(a),
		newSavedCmd(a),
		newListingCmd(a),
		newAdminCmd(a),
		newInquireCmd(a),
		newBlogCmd(a),
	)
	return root
}

// describe renders err for the terminal.
func describe(err error) string {
	var lr *apperr.LoginRequiredError
	if errors.As(err, &lr) {
		return "sign in first (stayctl login), then run the command again"
	}
	if errors.Is(err, apperr.ErrInFlight) {
		return err.Error()
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

func main() {
	a := &app{in: bufio.NewReader(os.Stdin), out: os.Stdout}
	root := newRootCmd(a)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "stayctl:", describe(err))
		os.Exit(1)
	}
}
