package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stridefit/stride/internal/daemon"
	"github.com/stridefit/stride/internal/domain"
)

func init() {
	streakLogCmd.Flags().StringVar(&streakAt, "at", "", "Activity time (RFC 3339), default now")
	streakCalendarCmd.Flags().StringVar(&calendarFrom, "from", "", "First day YYYY-MM-DD (default 29 days ago)")
	streakCalendarCmd.Flags().StringVar(&calendarTo, "to", "", "Last day YYYY-MM-DD (default today)")

	streakCmd.AddCommand(streakShowCmd, streakLogCmd, streakFreezeCmd, streakGrantCmd,
		streakWeekendSkipCmd, streakTimeZoneCmd, streakCalendarCmd)
	rootCmd.AddCommand(streakCmd)
}

var (
	streakAt     string
	calendarFrom string
	calendarTo   string
)

var streakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Inspect and update workout streaks",
}

var streakShowCmd = &cobra.Command{
	Use:   "show USER",
	Short: "Show a user's streak evaluated now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			st, err := d.Streaks.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, st, func(w io.Writer) error { return writeStatus(w, st) })
		})
	},
}

var streakLogCmd = &cobra.Command{
	Use:   "log USER",
	Short: "Record workout activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			var (
				st  domain.StreakState
				res domain.StreakResult
				err error
			)
			if streakAt != "" {
				at, perr := time.Parse(time.RFC3339, streakAt)
				if perr != nil {
					return fmt.Errorf("--at: %w", perr)
				}
				st, res, err = d.Streaks.RecordAt(ctx, args[0], at)
			} else {
				st, res, err = d.Streaks.Record(ctx, args[0])
			}
			if err != nil {
				return err
			}
			return renderMutation(cmd, st, res)
		})
	},
}

var streakFreezeCmd = &cobra.Command{
	Use:   "freeze USER",
	Short: "Spend a freeze token on today",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			st, res, err := d.Streaks.Freeze(ctx, args[0])
			if err != nil {
				return err
			}
			return renderMutation(cmd, st, res)
		})
	},
}

var streakGrantCmd = &cobra.Command{
	Use:   "grant USER COUNT",
	Short: "Grant freeze tokens (capped)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			st, granted, err := d.Streaks.GrantTokens(ctx, args[0], n)
			if err != nil {
				return err
			}
			out := map[string]any{"state": st, "granted": granted}
			return render(cmd, out, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Granted %d freeze token(s); %d available (cap %d)\n",
					granted, st.FreezeTokensAvailable, d.Streaks.Engine().FreezeCap())
				return err
			})
		})
	},
}

var streakWeekendSkipCmd = &cobra.Command{
	Use:   "weekend-skip USER",
	Short: "Toggle weekend skip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			st, err := d.Streaks.ToggleWeekendSkip(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, st, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Weekend skip: %s\n", onOff(st.WeekendSkipEnabled))
				return err
			})
		})
	},
}

var streakTimeZoneCmd = &cobra.Command{
	Use:   "timezone USER ZONE",
	Short: "Set the IANA time zone used for calendar days",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			st, err := d.Streaks.SetTimeZone(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return render(cmd, st, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Time zone: %s\n", st.TimeZone)
				return err
			})
		})
	},
}

var streakCalendarCmd = &cobra.Command{
	Use:   "calendar USER",
	Short: "Show per-day statuses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to := time.Now().UTC()
		from := to.AddDate(0, 0, -29)
		var err error
		if calendarFrom != "" {
			if from, err = parseDay(calendarFrom); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
		}
		if calendarTo != "" {
			if to, err = parseDay(calendarTo); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			days, err := d.Streaks.Calendar(ctx, args[0], from, to)
			if err != nil {
				return err
			}
			return render(cmd, days, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "DATE\tDAY\tSTATUS")
				for _, day := range days {
					t, _ := time.Parse(domain.DateLayout, day.Date)
					fmt.Fprintf(tw, "%s\t%s\t%s\n", day.Date, t.Weekday().String()[:3], day.Status)
				}
				return tw.Flush()
			})
		})
	},
}

// parseDay reads YYYY-MM-DD at noon UTC so the date holds in any zone.
func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(12 * time.Hour), nil
}

// ─── Text Rendering ─────────────────────────────────────────────────────────

func renderMutation(cmd *cobra.Command, st domain.StreakState, res domain.StreakResult) error {
	out := map[string]any{"state": st, "result": res}
	return render(cmd, out, func(w io.Writer) error {
		fmt.Fprintf(w, "Streak: %d day(s) (%s)\n", st.CurrentStreak, res.Outcome)
		if res.Broken {
			fmt.Fprintf(w, "  Previous streak of %d day(s) was broken\n", res.PreviousStreak)
		}
		for _, m := range res.Milestones {
			fmt.Fprintf(w, "  Milestone reached: %s (%s)\n", m.Title, m.Reward)
		}
		if res.TokensGranted > 0 {
			fmt.Fprintf(w, "  Earned %d freeze token(s)\n", res.TokensGranted)
		}
		return nil
	})
}

func writeStatus(w io.Writer, st domain.StreakStatus) error {
	s := st.State
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Current streak:\t%d day(s)\n", s.CurrentStreak)
	fmt.Fprintf(tw, "Longest streak:\t%d day(s)\n", s.LongestStreak)
	fmt.Fprintf(tw, "Freeze tokens:\t%d\n", s.FreezeTokensAvailable)
	fmt.Fprintf(tw, "Weekend skip:\t%s\n", onOff(s.WeekendSkipEnabled))
	fmt.Fprintf(tw, "Logged today:\t%t\n", st.LoggedToday)
	switch {
	case st.Expired:
		fmt.Fprintf(tw, "State:\texpired, next activity starts over\n")
	case st.AtRisk:
		fmt.Fprintf(tw, "State:\tat risk until %s\n", s.GraceWindow.EndsAt.Format(time.RFC3339))
	case st.BreaksAt != nil:
		fmt.Fprintf(tw, "Breaks at:\t%s\n", st.BreaksAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if m := st.NextMilestone; m != nil {
		writeProgress(w, m.Title, m.Days-st.DaysToMilestone, m.Days, "days")
	}
	return nil
}
