package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/resolver"
)

var resolveAt string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Fetch the schedule set once and show which schedule wins",
	Long:  "resolve fetches the display's schedules from the configured source and prints every active candidate in rank order, winner first, plus any misconfigured schedules.",
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveAt, "at", "", "evaluate at this RFC3339 time instead of now")
}

func runResolve(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	now := time.Now()
	if resolveAt != "" {
		t, err := time.Parse(time.RFC3339, resolveAt)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		now = t
	}

	deps, err := buildProviders(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	schedules, err := deps.schedules.FetchSchedules(cmd.Context(), cfg.DisplayID)
	if err != nil {
		return fmt.Errorf("fetch schedules: %w", err)
	}
	valid, invalid := resolver.Valid(schedules)
	active := resolver.Active(valid, now)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "display %s at %s: %d schedules, %d active\n\n", cfg.DisplayID, now.Format(time.RFC3339), len(schedules), len(active))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tID\tPRIORITY\tBINDING\tITEMS\tWINDOW")
	for i, s := range active {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n", i+1, s.ID, s.Priority, s.Binding.Kind(), describeItems(s.Binding), describeWindow(s))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, bad := range invalid {
		fmt.Fprintf(out, "\nskipped %s: %v", bad.Schedule.ID, bad.Err)
	}
	if len(invalid) > 0 {
		fmt.Fprintln(out)
	}

	if winner := resolver.Resolve(valid, now); winner == nil {
		fmt.Fprintln(out, "\nnothing active: display would be idle")
	}
	return nil
}

func describeItems(b model.Binding) string {
	switch b := b.(type) {
	case model.SingleContent:
		return b.ContentID
	case model.ContentList:
		return strings.Join(b.ContentIDs, ",") + " (loop)"
	case model.PlaylistBinding:
		ids := make([]string, len(b.Playlist.Items))
		for i, it := range b.Playlist.Items {
			ids[i] = it.ContentID
			if it.DurationOverride != nil {
				ids[i] += fmt.Sprintf("@%ds", *it.DurationOverride)
			}
		}
		suffix := ""
		if b.Playlist.Loop {
			suffix = " (loop)"
		}
		return fmt.Sprintf("%s: %s%s", b.Playlist.Name, strings.Join(ids, ","), suffix)
	default:
		return "-"
	}
}

func describeWindow(s model.Schedule) string {
	end := "open"
	if s.EndTime != nil {
		end = s.EndTime.Format(time.RFC3339)
	}
	return s.StartTime.Format(time.RFC3339) + " .. " + end
}
