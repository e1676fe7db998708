// oreon/sentinel · watchthelight <wtl>

// Package report renders the scan history and stats snapshot for
// export and computes dashboard aggregates.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oreonproject/sentinel/pkg/threat"
)

// Export bundles a stats snapshot with the full history.
type Export struct {
	ExportedAt string                `json:"exported_at"`
	Stats      threat.Stats          `json:"stats"`
	Scans      []threat.HistoryEntry `json:"scans"`
}

// JSON renders the export document.
func JSON(stats threat.Stats, history []threat.HistoryEntry) (string, error) {
	doc := Export{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Stats:      stats,
		Scans:      history,
	}
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}
	return string(data), nil
}

// CSV renders the history as comma-separated rows. Indicators are
// joined with "; "; text fields are quoted.
func CSV(history []threat.HistoryEntry) string {
	var b strings.Builder
	b.WriteString("Timestamp,URL,Threat Level,Score,Action,Indicators\n")
	for _, entry := range history {
		ts := time.UnixMilli(int64(entry.Timestamp * 1000)).UTC().
			Format("2006-01-02T15:04:05.000Z")
		indicators := strings.Join(entry.Indicators, "; ")
		fmt.Fprintf(&b, "%q,%q,%q,%d,%q,%q\n",
			ts, entry.URL, string(entry.ThreatLevel), entry.Score,
			string(entry.Action), indicators)
	}
	return b.String()
}

// SafetyScore derives the dashboard's headline number: the share of
// scans that were not blocked, as a rounded percentage. No scans means
// a perfect score.
func SafetyScore(stats threat.Stats) int {
	if stats.TotalScans == 0 {
		return 100
	}
	ratio := 1 - float64(stats.ThreatsBlocked)/float64(stats.TotalScans)
	return int(math.Round(ratio * 100))
}

// CSVFilename and JSONFilename name export downloads the way the
// dashboard offers them.
func CSVFilename() string {
	return fmt.Sprintf("sentinel_report_%d.csv", time.Now().UnixMilli())
}

func JSONFilename() string {
	return fmt.Sprintf("sentinel_data_%d.json", time.Now().UnixMilli())
}
