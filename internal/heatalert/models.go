// Package heatalert ranks monitored cities by current temperature and holds
// the latest leaderboard for request handlers.
package heatalert

import "time"

// Severity classifies a temperature reading.
type Severity string

const (
	SeverityNormal  Severity = "normal"
	SeverityWarning Severity = "warning"
	SeverityExtreme Severity = "extreme"
)

const (
	// ExtremeThreshold and WarningThreshold are exclusive lower bounds in °C.
	ExtremeThreshold = 45.0
	WarningThreshold = 40.0

	// TopN is the size of the leaderboard.
	TopN = 3

	// TimestampLayout renders the batch computation time.
	TimestampLayout = "2006-01-02 15:04 UTC"
)

// HeatAlert is one entry of the leaderboard.
type HeatAlert struct {
	City        string   `json:"city"`
	Temperature float64  `json:"temperature"`
	Severity    Severity `json:"severity"`
	TimeAgo     string   `json:"time_ago"`
}

// Classify maps a temperature to its severity. Thresholds are checked from
// the top and are exclusive, so exactly 45.0 is a warning.
func Classify(temp float64) Severity {
	switch {
	case temp > ExtremeThreshold:
		return SeverityExtreme
	case temp > WarningThreshold:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// FormatTimestamp renders t the way every alert in a batch is stamped.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
