package results

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/marcus/soilnet/internal/client"
)

// Source loads soil results. *client.Client satisfies it.
type Source interface {
	ListSoilResults(ctx context.Context, farmerID string) ([]client.SoilResult, error)
}

// RefreshDataMsg carries refreshed results
type RefreshDataMsg struct {
	Results   []client.SoilResult
	Err       error
	Timestamp time.Time
}

// FetchData loads results for farmerID (empty for every visible farmer),
// newest first.
func FetchData(ctx context.Context, src Source, farmerID string) RefreshDataMsg {
	msg := RefreshDataMsg{Timestamp: time.Now()}
	res, err := src.ListSoilResults(ctx, farmerID)
	if err != nil {
		msg.Err = err
		return msg
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	msg.Results = res
	return msg
}

// filterResults keeps results whose label or farmer name contains q,
// ignoring case.
func filterResults(all []client.SoilResult, names map[string]string, q string) []client.SoilResult {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return all
	}
	var out []client.SoilResult
	for _, r := range all {
		if strings.Contains(strings.ToLower(r.Label), q) ||
			strings.Contains(strings.ToLower(names[r.FarmerID]), q) {
			out = append(out, r)
		}
	}
	return out
}
