package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/ieraasyl/DispenserClient/internal/intake"
	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/spf13/cobra"
)

// cliError shows the user-facing description of a classified error.
type cliError struct {
	err error
}

func (e *cliError) Error() string { return describe(e.err) }

func (e *cliError) Unwrap() error { return e.err }

func fail(err error) error {
	if err == nil {
		return nil
	}
	return &cliError{err: err}
}

// cli carries the persistent flags and, once a command runs, the app.
type cli struct {
	flags overrides
	app   *app
}

// execute runs the command line args and releases the state backend.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	cmd := c.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if c.app != nil {
		if cerr := c.app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "dispenser",
		Short:        "Client for the smart supplement dispenser backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), c.flags)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&c.flags.baseURL, "base-url", "", "Backend address (overrides BASE_URL)")
	cmd.PersistentFlags().StringVar(&c.flags.stateBackend, "state-backend", "", "State backend: sqlite, postgres or redis (overrides STATE_BACKEND)")

	cmd.AddCommand(
		c.signUpCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.statusCmd(),
		c.profilesCmd(),
		c.registerCmd(),
		c.intakeCmd(),
	)
	return cmd
}

func (c *cli) signUpCmd() *cobra.Command {
	var email, password, confirm string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if confirm == "" {
				confirm = password
			}
			if _, err := c.app.auth.SignUp(cmd.Context(), email, password, confirm); err != nil {
				return fail(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s\n", strings.TrimSpace(email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "Password confirmation (defaults to --password)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.app.auth.Login(cmd.Context(), email, password); err != nil {
				return fail(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", strings.TrimSpace(email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.auth.Logout(cmd.Context()); err != nil {
				return fail(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session and active dispenser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := c.app
			out := cmd.OutOrStdout()

			token, err := a.creds.Get()
			if err != nil {
				return fail(err)
			}
			session := "logged out"
			if token != "" {
				session = "logged in"
			}

			dispenser, ok, err := a.dispensers.Active(cmd.Context())
			if err != nil {
				return fail(err)
			}
			if !ok {
				dispenser = "none"
			}

			fmt.Fprintf(out, "Backend:   %s\n", a.cfg.Client.BaseURL)
			fmt.Fprintf(out, "Session:   %s\n", session)
			fmt.Fprintf(out, "Dispenser: %s\n", dispenser)
			return nil
		},
	}
}

func (c *cli) profilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage family profiles",
	}
	cmd.AddCommand(c.profilesListCmd(), c.profilesCreateCmd(), c.profilesDeleteCmd())
	return cmd
}

func (c *cli) profilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := c.app
			if err := a.roster.Refresh(cmd.Context()); err != nil {
				return fail(err)
			}
			printProfiles(cmd.OutOrStdout(), a.roster.Items())
			return nil
		},
	}
}

func (c *cli) profilesCreateCmd() *cobra.Command {
	var (
		req    models.CreateProfileRequest
		gender string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Gender = models.Gender(strings.ToUpper(strings.TrimSpace(gender)))
			created, err := c.app.profiles.Create(cmd.Context(), req)
			if err != nil {
				return fail(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created profile %d (%s)\n", created.ID, created.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Display name")
	cmd.Flags().Float64Var(&req.Height, "height", 0, "Height in cm")
	cmd.Flags().Float64Var(&req.Weight, "weight", 0, "Weight in kg")
	cmd.Flags().StringVar(&gender, "gender", "", "MALE or FEMALE")
	cmd.Flags().StringSliceVar(&req.Tags, "tag", nil, "Lifestyle tag (repeat, at least 3)")
	cmd.Flags().StringSliceVar(&req.Conditions, "condition", nil, "Condition code such as PREGNANT (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) profilesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <profile-id>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid profile id %q", args[0])
			}

			a := c.app
			if err := a.roster.Refresh(cmd.Context()); err != nil {
				return fail(err)
			}
			if err := a.roster.Delete(cmd.Context(), id); err != nil {
				return fail(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %d\n", id)
			return nil
		},
	}
}

func (c *cli) registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <scan>",
		Short: "Register a dispenser from its QR code contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uuid, err := c.app.dispensers.Register(cmd.Context(), args[0])
			if err != nil {
				return fail(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active dispenser: %s\n", uuid)
			return nil
		},
	}
}

func (c *cli) intakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intake",
		Short: "Request doses and read intake history",
	}
	cmd.AddCommand(c.intakeRequestCmd(), c.intakeHistoryCmd())
	return cmd
}

// dispenserFor returns the --dispenser flag or the persisted active dispenser.
func (c *cli) dispenserFor(ctx context.Context, flag string) (string, error) {
	if flag = strings.TrimSpace(flag); flag != "" {
		return flag, nil
	}
	uuid, _, err := c.app.dispensers.Active(ctx)
	return uuid, err
}

func (c *cli) intakeRequestCmd() *cobra.Command {
	var dispenser string

	cmd := &cobra.Command{
		Use:   "request <profile-id>",
		Short: "Dispense for a profile and follow the request until it settles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid profile id %q", args[0])
			}
			uuid, err := c.dispenserFor(cmd.Context(), dispenser)
			if err != nil {
				return fail(err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a := c.app
			states, err := a.engine.Start(ctx, profileID, uuid)
			if err != nil {
				return fail(err)
			}

			out := cmd.OutOrStdout()
			var last intake.State
			for st := range states {
				printState(out, st)
				last = st
			}

			switch last.Phase {
			case intake.PhaseSucceeded:
				return nil
			case intake.PhaseErrored:
				return fail(last.Err)
			case intake.PhaseFailed:
				return fmt.Errorf("dispenser reported %s", last.Status)
			case intake.PhaseTimedOut:
				return fmt.Errorf("gave up after %d status checks; the dispenser may still finish", last.Attempt)
			default:
				fmt.Fprintln(out, "Cancelled")
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&dispenser, "dispenser", "", "Dispenser uuid (defaults to the active dispenser)")
	return cmd
}

func (c *cli) intakeHistoryCmd() *cobra.Command {
	var dispenser string

	cmd := &cobra.Command{
		Use:   "history <profile-id>",
		Short: "List past intakes of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid profile id %q", args[0])
			}
			uuid, err := c.dispenserFor(cmd.Context(), dispenser)
			if err != nil {
				return fail(err)
			}

			history, err := c.app.intakes.History(cmd.Context(), profileID, uuid)
			if err != nil {
				return fail(err)
			}
			printHistory(cmd.OutOrStdout(), history)
			return nil
		},
	}
	cmd.Flags().StringVar(&dispenser, "dispenser", "", "Dispenser uuid (defaults to the active dispenser)")
	return cmd
}

func printProfiles(w io.Writer, profiles []models.Profile) {
	if len(profiles) == 0 {
		fmt.Fprintln(w, "No profiles")
		return
	}
	for _, p := range profiles {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.0fcm\t%.1fkg\t%s\n",
			p.ID, p.Name, p.Gender, p.Height, p.Weight, strings.Join(p.Tags, ","))
	}
}

func printState(w io.Writer, st intake.State) {
	switch st.Phase {
	case intake.PhaseRequesting:
		fmt.Fprintln(w, "Requesting intake...")
	case intake.PhaseErrored:
		fmt.Fprintf(w, "Intake %d: error\n", st.IntakeID)
	default:
		fmt.Fprintf(w, "Intake %d: %s (check %d)\n", st.IntakeID, st.Status, st.Attempt)
	}
}

func printHistory(w io.Writer, history *models.IntakeHistory) {
	if history.Count == 0 {
		fmt.Fprintln(w, "No intakes")
		return
	}
	for _, item := range history.Items {
		requested := "-"
		if item.RequestedAt != nil {
			requested = *item.RequestedAt
		}
		fmt.Fprintf(w, "%d\t%s\t%s", item.IntakeID, item.Status, requested)
		if item.Vitamin != nil {
			fmt.Fprintf(w, "\tvitamin=%.2f", *item.Vitamin)
		}
		if item.Melatonin != nil {
			fmt.Fprintf(w, "\tmelatonin=%.2f", *item.Melatonin)
		}
		if item.Magnesium != nil {
			fmt.Fprintf(w, "\tmagnesium=%.2f", *item.Magnesium)
		}
		if item.Electrolyte != nil {
			fmt.Fprintf(w, "\telectrolyte=%.2f", *item.Electrolyte)
		}
		fmt.Fprintln(w)
	}
}
