package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stridefit/stride/internal/daemon"
	"github.com/stridefit/stride/internal/domain"
)

func init() {
	activationTrackCmd.Flags().StringVar(&trackSource, "source", "", "Event source (default app)")
	activationTrackCmd.Flags().StringVar(&trackData, "data", "", "Event data as a JSON object")
	activationTrackCmd.Flags().BoolVar(&trackAnonymous, "anonymous", false, "Create the profile as an anonymous session")

	activationCmd.AddCommand(activationEventsCmd, activationTrackCmd, activationShowCmd,
		activationRecommendCmd, activationJourneyCmd, activationIdentifyCmd)
	rootCmd.AddCommand(activationCmd)
}

var (
	trackSource    string
	trackData      string
	trackAnonymous bool
)

var activationCmd = &cobra.Command{
	Use:   "activation",
	Short: "Track and inspect new-user activation",
}

var activationEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the activation event registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			events := d.Activation.Registry()
			return render(cmd, events, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "EVENT\tPOINTS\tCATEGORY\tDESCRIPTION")
				for _, e := range events {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", e.Name, e.Points, e.Category, e.Description)
				}
				return tw.Flush()
			})
		})
	},
}

var activationTrackCmd = &cobra.Command{
	Use:   "track ID EVENT",
	Short: "Record an activation event",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := domain.TrackInput{Name: args[1], Source: trackSource, Anonymous: trackAnonymous}
		if trackData != "" {
			if !json.Valid([]byte(trackData)) {
				return fmt.Errorf("--data is not valid JSON")
			}
			in.Data = json.RawMessage(trackData)
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			p, ev, res, err := d.Activation.Track(ctx, args[0], in)
			if err != nil {
				return err
			}
			out := map[string]any{"profile": p, "event": ev, "result": res}
			return render(cmd, out, func(w io.Writer) error {
				fmt.Fprintf(w, "Tracked %s (+%d); score %d\n", ev.Name, ev.Points, p.ActivationScore)
				if res.Activated {
					fmt.Fprintf(w, "  Activated after %s\n", p.TimeToActivation.Round(time.Minute))
				}
				for _, m := range res.Milestones {
					fmt.Fprintf(w, "  Milestone reached: %s (%s)\n", m.Name, m.Reward)
				}
				return nil
			})
		})
	},
}

var activationShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show an activation profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			p, err := d.Activation.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, p, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "Profile:\t%s (%s)\n", p.ID, p.UserType())
				fmt.Fprintf(tw, "Score:\t%d\n", p.ActivationScore)
				fmt.Fprintf(tw, "Events:\t%d\n", len(p.Events))
				fmt.Fprintf(tw, "Engagement:\t%s\n", p.EngagementLevel)
				if p.IsActivated && p.ActivationDate != nil {
					fmt.Fprintf(tw, "Activated:\t%s (after %s)\n",
						p.ActivationDate.Format(time.RFC3339), p.TimeToActivation.Round(time.Minute))
				} else {
					fmt.Fprintf(tw, "Activated:\tno\n")
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				for _, m := range d.Activation.Milestones() {
					if !p.HasMilestone(m.ID) {
						writeProgress(w, m.Name, p.ActivationScore, m.Threshold, "pts")
						break
					}
				}
				return nil
			})
		})
	},
}

var activationRecommendCmd = &cobra.Command{
	Use:   "recommend ID",
	Short: "Suggest the next most valuable events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			recs, err := d.Activation.Recommend(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, recs, func(w io.Writer) error {
				if len(recs) == 0 {
					_, err := fmt.Fprintln(w, "Every activation event has been performed.")
					return err
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "EVENT\tPOINTS\tDESCRIPTION")
				for _, r := range recs {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", r.EventName, r.Points, r.Description)
				}
				return tw.Flush()
			})
		})
	},
}

var activationJourneyCmd = &cobra.Command{
	Use:   "journey ID",
	Short: "Show milestones and a per-day timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			j, err := d.Activation.Journey(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, j, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "MILESTONE\tTHRESHOLD\tREACHED")
				for _, m := range j.Milestones {
					reached := "-"
					if m.ReachedAt != nil {
						reached = m.ReachedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%s\t%d\t%s\n", m.Name, m.Threshold, reached)
				}
				fmt.Fprintln(tw)
				fmt.Fprintln(tw, "DATE\tSCORE\tEVENTS")
				for _, day := range j.Timeline {
					fmt.Fprintf(tw, "%s\t%d\t%d\n", day.Date, day.Score, day.EventCount)
				}
				return tw.Flush()
			})
		})
	},
}

var activationIdentifyCmd = &cobra.Command{
	Use:   "identify SESSION USER",
	Short: "Merge an anonymous session into a registered user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			p, err := d.Activation.Identify(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return render(cmd, p, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Session %s merged into %s; score %d\n", args[0], p.ID, p.ActivationScore)
				return err
			})
		})
	},
}
