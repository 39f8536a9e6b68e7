package cmd

import (
	"fmt"
	"time"

	"github.com/marcus/soilnet/internal/client"
	"github.com/marcus/soilnet/internal/dateparse"
	"github.com/spf13/cobra"
)

const sinceUsage = "only entries from this day on (2026-03-01, 7d, 2w, yesterday, monday)"

// sinceFlag returns the parsed --since value, or the zero time when unset.
func sinceFlag(cmd *cobra.Command) (time.Time, error) {
	v, _ := cmd.Flags().GetString("since")
	if v == "" {
		return time.Time{}, nil
	}
	t, err := dateparse.Since(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--since: %w", err)
	}
	return t, nil
}

func resultsSince(list []client.SoilResult, since time.Time) []client.SoilResult {
	if since.IsZero() {
		return list
	}
	var out []client.SoilResult
	for _, r := range list {
		if !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out
}

// notificationsSince keeps entries created on or after since. Entries with an
// unreadable timestamp are kept.
func notificationsSince(list []client.Notification, since time.Time) []client.Notification {
	if since.IsZero() {
		return list
	}
	var out []client.Notification
	for _, n := range list {
		t, err := time.Parse(time.RFC3339, n.CreatedAt)
		if err != nil || !t.Before(since) {
			out = append(out, n)
		}
	}
	return out
}
