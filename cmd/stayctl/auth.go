package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/authflow"
	"github.com/iliyamo/student-stay/internal/backend"
)

func newLoginCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "login", Short: "Sign in with email, Google or phone"}

	var email, password string
	emailCmd := &cobra.Command{
		Use:  "email",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.auth.ChooseMode(authflow.ModeEmail); err != nil {
				return err
			}
			var err error
			if email == "" {
				if email, err = a.prompt("email"); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = a.prompt("password"); err != nil {
					return err
				}
			}
			dest, err := a.auth.LoginEmail(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return a.signedIn(cmd.Context(), dest)
		},
	}
	emailCmd.Flags().StringVar(&email, "email", "", "account email")
	emailCmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")

	var token string
	googleCmd := &cobra.Command{
		Use:   "google",
		Short: "Sign in with a Google OAuth access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if token == "" {
				if token, err = a.prompt("google access token"); err != nil {
					return err
				}
			}
			dest, err := a.auth.LoginGoogle(cmd.Context(), token)
			if err != nil {
				return err
			}
			return a.signedIn(cmd.Context(), dest)
		},
	}
	googleCmd.Flags().StringVar(&token, "token", "", "OAuth access token")

	var phone string
	phoneCmd := &cobra.Command{
		Use:   "phone",
		Short: "Sign in with a code sent to your phone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.auth.ChooseMode(authflow.ModePhone); err != nil {
				return err
			}
			var err error
			if phone == "" {
				if phone, err = a.prompt("phone"); err != nil {
					return err
				}
			}
			if err := a.auth.RequestCode(cmd.Context(), phone); err != nil {
				return err
			}
			return a.verifyCode(cmd.Context())
		},
	}
	phoneCmd.Flags().StringVar(&phone, "phone", "", "mobile number, national or +E.164")

	cmd.AddCommand(emailCmd, googleCmd, phoneCmd)
	return cmd
}

func newSignupCmd(a *app) *cobra.Command {
	var email, password, phone, name, college string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account; the phone number is verified with a code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.auth.ChooseMode(authflow.ModeEmail); err != nil {
				return err
			}
			fields := []struct {
				label string
				dst   *string
			}{{"email", &email}, {"password", &password}, {"name", &name}, {"phone", &phone}}
			for _, f := range fields {
				if *f.dst != "" {
					continue
				}
				v, err := a.prompt(f.label)
				if err != nil {
					return err
				}
				*f.dst = v
			}
			err := a.auth.SignupEmail(cmd.Context(), email, password, phone, backend.Profile{Name: name, College: college})
			if err != nil {
				return err
			}
			return a.verifyCode(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 6 characters")
	cmd.Flags().StringVar(&phone, "phone", "", "mobile number to verify")
	cmd.Flags().StringVar(&name, "name", "", "your name")
	cmd.Flags().StringVar(&college, "college", "", "your college")
	return cmd
}

// verifyCode asks for the code until it is accepted, the session ends or the
// input runs out. Typing "r" requests a new code once the cooldown is over.
func (a *app) verifyCode(ctx context.Context) error {
	for {
		code, err := a.prompt("code (r to resend)")
		if err != nil {
			return err
		}
		if strings.EqualFold(code, "r") {
			if err := a.auth.Resend(ctx); err != nil {
				a.printf("%s\n", describe(err))
			} else {
				a.printf("new code sent\n")
			}
			continue
		}
		dest, err := a.auth.SubmitCode(ctx, code)
		if err == nil {
			return a.signedIn(ctx, dest)
		}
		if a.auth.State().Step != authflow.StepAwaitingOtp {
			return err
		}
		a.printf("%s\n", describe(err))
	}
}

func (a *app) signedIn(ctx context.Context, dest string) error {
	acct := a.hub.Current().Account
	who := acct.Email
	if who == "" {
		who = acct.Phone
	}
	a.printf("signed in as %s\n", who)
	if strings.HasPrefix(dest, "/accommodations/") {
		id := strings.TrimPrefix(dest, "/accommodations/")
		a.printf("continue where you left off: stayctl saved toggle %s\n", id)
	}
	return nil
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:  "logout",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.hub.Current().AccountID() == "" {
				a.printf("not signed in\n")
				return nil
			}
			err := a.api.Accounts().Logout(cmd.Context())
			if err != nil && !errors.Is(err, backend.ErrInvalidCredentials) && !apperr.Is(err, apperr.KindAuthentication) {
				a.printf("server logout failed: %s\n", describe(err))
			}
			a.auth.Logout()
			a.printf("signed out\n")
			return nil
		},
	}
}
