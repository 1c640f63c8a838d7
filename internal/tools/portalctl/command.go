package portalctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/alumni-portal-client/internal/app"
	"github.com/sandeepkv93/alumni-portal-client/internal/di"
	"github.com/sandeepkv93/alumni-portal-client/internal/domain"
	"github.com/sandeepkv93/alumni-portal-client/internal/security"
	"github.com/sandeepkv93/alumni-portal-client/internal/service"
	"github.com/sandeepkv93/alumni-portal-client/internal/tools/common"
	"github.com/sandeepkv93/alumni-portal-client/internal/tools/ui"
)

const (
	exitFailure = 4
	ciTimeout   = 2 * time.Minute
)

var errNotSignedIn = errors.New("not signed in")

type options struct {
	envFile string
	ci      bool

	build func() (*app.App, error)
	exit  func(int)
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{build: di.InitializeApp, exit: os.Exit})
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Sign in to the alumni portal and manage the local session",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return common.LoadEnvFile(opts.envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newLoginCommand(opts, "login", "Sign in with email and password", (*service.AuthService).Login),
		newLoginCommand(opts, "admin-login", "Sign in to the admin console", (*service.AuthService).AdminLogin),
		newSignupCommand(opts),
		newLogoutCommand(opts, "logout", "Sign out of this device", (*service.AuthService).Logout),
		newLogoutCommand(opts, "logout-all", "Sign out of every device", (*service.AuthService).LogoutAll),
		newWhoamiCommand(opts),
		newChangePasswordCommand(opts),
		newRequestPasswordResetCommand(opts),
		newResetPasswordCommand(opts),
		newVerifyPasswordCommand(opts),
		newVerifyRegistrationCommand(opts),
		newUpdateProfileCommand(opts),
		newSanitizeCommand(opts),
	)
	return cmd
}

type loginFunc func(*service.AuthService, context.Context, string, string) (*service.LoginResult, error)

func newLoginCommand(opts *options, use, short string, login loginFunc) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, use, func(ctx context.Context, a *app.App) ([]string, error) {
				res, err := login(a.Auth, ctx, email, password)
				if err != nil {
					return nil, err
				}
				snap := a.Session.SetAuth(ctx, res.User, res.AccessToken)
				return sessionDetails(snap), nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSignupCommand(opts *options) *cobra.Command {
	var req service.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "signup", func(ctx context.Context, a *app.App) ([]string, error) {
				res, err := a.Auth.Signup(ctx, req)
				if err != nil {
					return nil, err
				}
				snap := a.Session.SetAuth(ctx, res.User, res.AccessToken)
				return sessionDetails(snap), nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Name, "name", "", "full name")
	f.StringVar(&req.Email, "email", "", "email address")
	f.StringVar(&req.Password, "password", "", "password")
	f.StringVar(&req.Department, "department", "", "department")
	f.StringVar(&req.Phone, "phone", "", "phone number")
	f.StringVar(&req.RegistrationNumber, "registration-number", "", "university registration number")
	f.IntVar(&req.PassoutYear, "passout-year", 0, "graduation year")
	f.StringVar(&req.DOB, "dob", "", "date of birth (YYYY-MM-DD)")
	for _, name := range []string{"name", "email", "password", "registration-number", "passout-year"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newLogoutCommand(opts *options, use, short string, logout func(*service.AuthService, context.Context)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, use, func(ctx context.Context, a *app.App) ([]string, error) {
				a.Start(ctx)
				logout(a.Auth, ctx)
				return sessionDetails(a.Session.Logout(ctx)), nil
			})
		},
	}
}

func newWhoamiCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Restore the stored session and show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "whoami", func(ctx context.Context, a *app.App) ([]string, error) {
				a.Start(ctx)
				snap := a.Session.Snapshot()
				if !snap.Authenticated() {
					return sessionDetails(snap), errNotSignedIn
				}
				return sessionDetails(snap), nil
			})
		},
	}
}

func newChangePasswordCommand(opts *options) *cobra.Command {
	var oldPassword, newPassword string
	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change the password of the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "change-password", func(ctx context.Context, a *app.App) ([]string, error) {
				if err := requireSession(ctx, a); err != nil {
					return nil, err
				}
				if err := a.Auth.ChangePassword(ctx, oldPassword, newPassword); err != nil {
					return nil, err
				}
				return []string{"password changed"}, nil
			})
		},
	}
	cmd.Flags().StringVar(&oldPassword, "old-password", "", "current password")
	cmd.Flags().StringVar(&newPassword, "new-password", "", "new password")
	_ = cmd.MarkFlagRequired("old-password")
	_ = cmd.MarkFlagRequired("new-password")
	return cmd
}

func newRequestPasswordResetCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "request-password-reset",
		Short: "Email a password reset link",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "request-password-reset", func(ctx context.Context, a *app.App) ([]string, error) {
				if err := a.Auth.RequestPasswordReset(ctx, email); err != nil {
					return nil, err
				}
				return []string{"reset requested for " + email}, nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newResetPasswordCommand(opts *options) *cobra.Command {
	var token, newPassword string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "reset-password", func(ctx context.Context, a *app.App) ([]string, error) {
				if err := a.Auth.ResetPassword(ctx, token, newPassword); err != nil {
					return nil, err
				}
				return []string{"password reset"}, nil
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "reset token from the email")
	cmd.Flags().StringVar(&newPassword, "new-password", "", "new password")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("new-password")
	return cmd
}

func newVerifyPasswordCommand(opts *options) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "verify-password",
		Short: "Re-enter the password before a sensitive action",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "verify-password", func(ctx context.Context, a *app.App) ([]string, error) {
				if err := requireSession(ctx, a); err != nil {
					return nil, err
				}
				if !a.Auth.Reauthenticate(ctx, password) {
					return []string{"verified=false"}, errors.New("password not accepted")
				}
				return []string{"verified=true"}, nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newVerifyRegistrationCommand(opts *options) *cobra.Command {
	var req service.VerifyRegistrationRequest
	cmd := &cobra.Command{
		Use:   "verify-registration",
		Short: "Check a registration number against the student records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "verify-registration", func(ctx context.Context, a *app.App) ([]string, error) {
				res, err := a.Auth.VerifyRegistration(ctx, req)
				if err != nil {
					return nil, err
				}
				details := []string{fmt.Sprintf("valid=%t", res.Valid)}
				if res.Reason != "" {
					details = append(details, "reason="+res.Reason)
				}
				if !res.Valid {
					return details, errors.New("registration not verified")
				}
				return details, nil
			})
		},
	}
	cmd.Flags().StringVar(&req.RegistrationNumber, "registration-number", "", "university registration number")
	cmd.Flags().StringVar(&req.Department, "department", "", "department")
	cmd.Flags().IntVar(&req.PassoutYear, "passout-year", 0, "graduation year")
	_ = cmd.MarkFlagRequired("registration-number")
	return cmd
}

func newUpdateProfileCommand(opts *options) *cobra.Command {
	var phone, workplace, designation, industry, dob string
	cmd := &cobra.Command{
		Use:   "update-profile",
		Short: "Edit the contact and career fields of the signed-in profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req service.ProfileUpdate
			set := func(name string, v *string, dst **string) {
				if cmd.Flags().Changed(name) {
					*dst = v
				}
			}
			set("phone", &phone, &req.Phone)
			set("workplace", &workplace, &req.Workplace)
			set("designation", &designation, &req.Designation)
			set("industry", &industry, &req.Industry)
			set("dob", &dob, &req.DOB)
			return execute(opts, "update-profile", func(ctx context.Context, a *app.App) ([]string, error) {
				if err := requireSession(ctx, a); err != nil {
					return nil, err
				}
				if _, err := a.Auth.UpdateProfile(ctx, req); err != nil {
					return nil, err
				}
				return sessionDetails(a.Session.RefreshUser(ctx)), nil
			})
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&workplace, "workplace", "", "current workplace")
	cmd.Flags().StringVar(&designation, "designation", "", "job title")
	cmd.Flags().StringVar(&industry, "industry", "", "industry")
	cmd.Flags().StringVar(&dob, "dob", "", "date of birth (YYYY-MM-DD)")
	return cmd
}

// sanitize runs locally and needs no backend configuration.
func newSanitizeCommand(opts *options) *cobra.Command {
	var text bool
	cmd := &cobra.Command{
		Use:   "sanitize [html]",
		Short: "Show how backend markup is cleaned before display",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := security.SanitizeHTML(args[0])
			if text {
				out = security.SanitizeText(args[0])
			}
			if opts.ci {
				common.PrintCIResult(true, "sanitize", []string{out}, nil)
				return nil
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "strip all markup instead of the display allow-list")
	return cmd
}

func requireSession(ctx context.Context, a *app.App) error {
	a.Start(ctx)
	if !a.Session.Snapshot().Authenticated() {
		return errNotSignedIn
	}
	return nil
}

func sessionDetails(s domain.Session) []string {
	details := []string{"state=" + string(s.State)}
	if s.User != nil {
		details = append(details, "user="+s.User.Email, "role="+string(s.User.Role))
	}
	return details
}

// execute builds the application, runs fn with either the progress view or
// plain CI output, and tears everything down.
func execute(opts *options, title string, fn func(context.Context, *app.App) ([]string, error)) error {
	a, err := opts.build()
	if err != nil {
		if opts.ci {
			common.PrintCIResult(false, title, nil, err)
			opts.exit(exitFailure)
			return nil
		}
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(ctx)
	}()

	action := func(ctx context.Context) ([]string, error) { return fn(ctx, a) }
	var details []string
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), ciTimeout)
		defer cancel()
		details, err = action(ctx)
		common.PrintCIResult(err == nil, title, details, err)
		if err != nil {
			opts.exit(exitFailure)
		}
		return nil
	}
	_, err = ui.Run(title, action)
	return err
}
