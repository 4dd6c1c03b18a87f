package adherence

import (
	"fmt"

	"github.com/Veraticus/lifelog/internal/model"
)

// Alert thresholds.
const (
	LowAdherenceThreshold = 80
	LongGapThreshold      = 3
)

// Alerts derives the alerts for a report. Alerts are never stored.
func Alerts(report *model.AdherenceReport) []model.Alert {
	if report == nil {
		return nil
	}

	alerts := []model.Alert{}
	if report.AdherencePercentage < LowAdherenceThreshold {
		alerts = append(alerts, model.Alert{
			Level:   model.AlertCritical,
			Message: fmt.Sprintf("Low adherence: %d%% (expected %d%%+)", report.AdherencePercentage, LowAdherenceThreshold),
		})
	}

	if longest := LongestGap(report.Gaps); longest.Days >= LongGapThreshold {
		alerts = append(alerts, model.Alert{
			Level:   model.AlertWarning,
			Message: fmt.Sprintf("%d consecutive days missed (%s to %s)", longest.Days, longest.StartDate, longest.EndDate),
		})
	}

	if report.AdherencePercentage == 100 {
		alerts = append(alerts, model.Alert{
			Level:   model.AlertSuccess,
			Message: fmt.Sprintf("Perfect adherence: %d day streak!", report.CurrentStreak),
		})
	}

	return alerts
}

// LongestGap returns the longest gap, preferring the oldest on ties.
func LongestGap(gaps []model.Gap) model.Gap {
	var longest model.Gap
	for _, g := range gaps {
		if g.Days > longest.Days {
			longest = g
		}
	}
	return longest
}
