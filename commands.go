package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	jobUserID int
	jobDate   string
)

// createUserCmd prompts for credentials and creates a user with a bcrypt
// password hash and a fresh auth token.
var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a user with a bcrypt-hashed password",
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(cmd.InOrStdin())
		prompt := func(label string) string {
			fmt.Fprint(cmd.OutOrStdout(), label)
			v, _ := reader.ReadString('\n')
			return strings.TrimSpace(v)
		}
		username := prompt("Username: ")
		email := prompt("Email: ")
		password := prompt("Password: ")
		timezone := prompt("Timezone (IANA, blank for UTC): ")
		if username == "" || password == "" {
			return fmt.Errorf("username and password are required")
		}
		if timezone == "" {
			timezone = "UTC"
		}
		if _, err := time.LoadLocation(timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		return withEnv(cmd.Context(), func(cfg *config, log *zap.SugaredLogger, s store) error {
			u, err := s.CreateUser(cmd.Context(), user{
				Username:  username,
				Email:     email,
				Password:  string(hash),
				AuthToken: uuid.New().String(),
				Timezone:  timezone,
			})
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nUser created successfully!\n")
			fmt.Fprintf(out, "  ID:         %d\n", u.ID)
			fmt.Fprintf(out, "  Username:   %s\n", u.Username)
			fmt.Fprintf(out, "  Auth Token: %s\n", u.AuthToken)
			return nil
		})
	},
}

// closeDayCmd runs the day-end buffer job for one user, meant for a nightly cron.
var closeDayCmd = &cobra.Command{
	Use:   "close-day",
	Short: "Compute the next day's buffer from a finished day's intake",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jobUserID <= 0 {
			return fmt.Errorf("--user is required")
		}
		return withEnv(cmd.Context(), func(cfg *config, log *zap.SugaredLogger, s store) error {
			u, err := s.GetUser(cmd.Context(), jobUserID)
			if err != nil {
				return fmt.Errorf("load user %d: %w", jobUserID, err)
			}
			date := jobDate
			if date == "" {
				date = dayKey(time.Now().In(u.location()).AddDate(0, 0, -1), u.location())
			}
			d, err := closeDay(cmd.Context(), s, &u, date)
			if err != nil {
				return err
			}
			switch {
			case d.Set:
				fmt.Fprintf(cmd.OutOrStdout(), "buffer of %d kcal set for %s\n", d.Amount, d.ForDate)
			case d.Cleared:
				fmt.Fprintf(cmd.OutOrStdout(), "no buffer (%s); existing buffer cleared\n", d.Reason)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "no buffer (%s)\n", d.Reason)
			}
			return nil
		})
	},
}

// recalcFastingCmd recomputes the trailing fasting summaries for one user.
var recalcFastingCmd = &cobra.Command{
	Use:   "recalc-fasting",
	Short: "Recompute daily fasting-stage summaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jobUserID <= 0 {
			return fmt.Errorf("--user is required")
		}
		return withEnv(cmd.Context(), func(cfg *config, log *zap.SugaredLogger, s store) error {
			u, err := s.GetUser(cmd.Context(), jobUserID)
			if err != nil {
				return fmt.Errorf("load user %d: %w", jobUserID, err)
			}
			rows, err := recalculateFastingSummaries(cmd.Context(), s, log, &u, time.Now(), cfg.SummaryDays)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "DATE\tFED\tPOST_ABS\tFAT_BURN\tKETOSIS\tAUTOPHAGY")
			for _, r := range rows {
				fmt.Fprintf(out, "%s\t%d\t%d\t%d\t%d\t%d\n", r.Date, r.FedSeconds, r.PostAbsorptiveSeconds,
					r.FatBurningSeconds, r.DeepKetosisSeconds, r.AutophagySeconds)
			}
			return nil
		})
	},
}

func init() {
	closeDayCmd.Flags().IntVar(&jobUserID, "user", 0, "User id")
	closeDayCmd.Flags().StringVar(&jobDate, "date", "", "Day to close, YYYY-MM-DD (default yesterday in the user's timezone)")
	recalcFastingCmd.Flags().IntVar(&jobUserID, "user", 0, "User id")
}
