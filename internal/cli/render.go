package cli

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Veraticus/lifelog/internal/adherence"
	"github.com/Veraticus/lifelog/internal/model"
	"github.com/Veraticus/lifelog/internal/pipeline"
	"github.com/Veraticus/lifelog/internal/storage"
)

const timeLayout = "2006-01-02 15:04"

// RenderExtraction shows the intent and signals found in a statement.
func RenderExtraction(result model.ExtractionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Intent:"), result.Intent())
	fmt.Fprintf(&b, "%s %s (confidence %.1f)\n", BoldStyle.Render("Method:"), result.Method, result.Confidence)

	signals := result.Signals()
	if len(signals) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(signals))
	for k := range signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString(BoldStyle.Render("Signals:") + "\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %v\n", k, signals[k])
	}
	return b.String()
}

// RenderSubmission summarizes what happened to a submitted statement.
func RenderSubmission(result *pipeline.Result) string {
	if result.Accepted() {
		event := result.Event
		msg := fmt.Sprintf("Recorded %s", strings.ToLower(string(event.Intent)))
		if event.SubjectKey != "" {
			msg += fmt.Sprintf(" %q", event.SubjectKey)
		}
		if event.AmountCents != nil {
			msg += fmt.Sprintf(" ($%d.%02d)", *event.AmountCents/100, *event.AmountCents%100)
		}
		msg += " at " + event.OccurredAt.Format(timeLayout)
		return FormatSuccess(msg)
	}

	var b strings.Builder
	if result.Outcome != nil {
		for _, reason := range result.Outcome.Errors {
			b.WriteString(FormatError(reason) + "\n")
		}
		if dup := result.Outcome.DuplicateOf; dup != nil {
			b.WriteString(SubtleStyle.Render(fmt.Sprintf("  previous entry %s at %s: %q",
				dup.ID, dup.OccurredAt.Format(timeLayout), dup.RawText)) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderReport renders an adherence report and its alerts.
func RenderReport(report *model.AdherenceReport, alerts []model.Alert) string {
	var b strings.Builder

	b.WriteString(FormatTitle(fmt.Sprintf("%s: last %d days", report.Subject, report.PeriodDays)) + "\n")
	fmt.Fprintf(&b, "%s %s (%d of %d days, %d missed)\n",
		BoldStyle.Render("Adherence:"),
		FormatAdherence(report.AdherencePercentage),
		report.ActualDays, report.ExpectedDays, report.MissedDays)
	fmt.Fprintf(&b, "%s %d %s\n", BoldStyle.Render("Current streak:"), report.CurrentStreak, pluralDays(report.CurrentStreak))
	fmt.Fprintf(&b, "%s %d\n", BoldStyle.Render("Events:"), report.TotalEvents)
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Pattern:"), RenderPattern(report.Pattern))

	if len(report.Gaps) > 0 {
		b.WriteString(BoldStyle.Render("Gaps:") + "\n")
		for _, gap := range report.Gaps {
			if gap.StartDate == gap.EndDate {
				fmt.Fprintf(&b, "  %s (1 day)\n", gap.StartDate)
				continue
			}
			fmt.Fprintf(&b, "  %s to %s (%d days)\n", gap.StartDate, gap.EndDate, gap.Days)
		}
	}

	if len(alerts) > 0 {
		b.WriteString("\n" + RenderAlerts(alerts) + "\n")
	}

	b.WriteString(SubtleStyle.Render("checksum "+report.Checksum) + "\n")
	return b.String()
}

// RenderPattern draws one cell per day, oldest first.
func RenderPattern(pattern []int) string {
	var b strings.Builder
	for _, hit := range pattern {
		if hit > 0 {
			b.WriteString(LoggedDayStyle.Render(LoggedDay))
		} else {
			b.WriteString(MissedDayStyle.Render(MissedDay))
		}
	}
	return b.String()
}

// RenderAlerts renders alerts one per line.
func RenderAlerts(alerts []model.Alert) string {
	lines := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		lines = append(lines, FormatAlert(alert))
	}
	return strings.Join(lines, "\n")
}

// RenderDetailed renders weekly and monthly adherence with all-time totals.
func RenderDetailed(detailed *model.DetailedAdherence) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(ChartIcon+" "+detailed.Weekly.Subject) + "\n")

	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WINDOW\tADHERENCE\tDAYS\tSTREAK")
	for _, r := range []*model.AdherenceReport{detailed.Weekly, detailed.Monthly} {
		fmt.Fprintf(w, "%d days\t%d%%\t%d/%d\t%d\n",
			r.PeriodDays, r.AdherencePercentage, r.ActualDays, r.ExpectedDays, r.CurrentStreak)
	}
	_ = w.Flush()

	all := detailed.AllTime
	fmt.Fprintf(&b, "\n%s %d\n", BoldStyle.Render("All-time events:"), all.Total)
	if all.FirstLog != nil && all.LastLog != nil {
		fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("First logged:"), all.FirstLog.Format(timeLayout))
		fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Last logged:"), all.LastLog.Format(timeLayout))
	}
	return b.String()
}

// RenderDeterminism reports a determinism self-check.
func RenderDeterminism(check model.DeterminismCheck) string {
	if check.Deterministic {
		return FormatSuccess(fmt.Sprintf("Report is deterministic across %d runs", check.Iterations))
	}

	distinct := make(map[string]bool)
	for _, sum := range check.Checksums {
		distinct[sum] = true
	}
	return FormatError(fmt.Sprintf("Report produced %d different checksums across %d runs", len(distinct), check.Iterations))
}

// RenderEngagement renders an engagement score with its components.
func RenderEngagement(subject string, e model.Engagement) string {
	var b strings.Builder

	title := "Engagement"
	if subject != "" {
		title += ": " + subject
	}
	b.WriteString(FormatTitle(title) + "\n")
	fmt.Fprintf(&b, "%s %s (%s)\n", BoldStyle.Render("Score:"), FormatAdherence(e.Score), e.Trend)

	risk := fmt.Sprintf("%s risk", e.RiskLevel)
	if e.AtRisk {
		risk = WarningStyle.Render(risk)
	}
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Churn:"), risk)

	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  recency\t%d\t%s\n", e.Components.Recency, daysSince(e.Stats.DaysSinceLast))
	fmt.Fprintf(w, "  frequency\t%d\t%d events in 7 days\n", e.Components.Frequency, e.Stats.Events7d)
	fmt.Fprintf(w, "  streak\t%d\t%d %s\n", e.Components.Streak, e.Stats.CurrentStreak, pluralDays(e.Stats.CurrentStreak))
	fmt.Fprintf(w, "  growth\t%d\t%d events in 30 days\n", e.Components.Growth, e.Stats.Events30d)
	_ = w.Flush()

	return b.String()
}

// RenderHabit renders one habit's streak.
func RenderHabit(h *model.Habit) string {
	return fmt.Sprintf("%s (%s): %s", BoldStyle.Render(h.Name), h.FrequencyUnit,
		FormatStreak(h.Streak.CurrentStreak, h.Streak.LongestStreak))
}

// RenderHabits renders habits as a table.
func RenderHabits(habits []model.Habit) string {
	if len(habits) == 0 {
		return FormatInfo("No habits yet. Add one with: lifelog habit add <name>")
	}

	var buf bytes.Buffer
	buf.WriteString(TableHeaderStyle.Render("HABITS") + "\n")
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFREQUENCY\tCURRENT\tLONGEST\tUPDATED")
	for _, h := range habits {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			h.Name, h.FrequencyUnit, h.Streak.CurrentStreak, h.Streak.LongestStreak, h.UpdatedAt.Format(timeLayout))
	}
	_ = w.Flush()
	return buf.String()
}

// RenderSnapshots renders snapshot metadata as a table.
func RenderSnapshots(snapshots []storage.SnapshotInfo) string {
	if len(snapshots) == 0 {
		return FormatInfo("No snapshots found")
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tCREATED\tEVENTS\tHABITS\tCHECKSUM\tDESCRIPTION")
	for _, s := range snapshots {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			s.ID, s.CreatedAt.Format(timeLayout), s.Events, s.Habits, shortChecksum(s.Checksum), s.Description)
	}
	_ = w.Flush()
	return buf.String()
}

func pluralDays(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

func daysSince(days int) string {
	switch days {
	case 0:
		return "logged today"
	case 1:
		return "1 day since last event"
	default:
		if days >= adherence.NoActivity {
			return "never logged"
		}
		return fmt.Sprintf("%d days since last event", days)
	}
}

func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}

// RenderEvents renders recorded events as a table.
func RenderEvents(events []model.HistoricalEvent) string {
	if len(events) == 0 {
		return FormatInfo("No events recorded")
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tCATEGORY\tSUBJECT\tAMOUNT\tTEXT")
	for _, e := range events {
		amount := ""
		if e.AmountCents != nil {
			amount = fmt.Sprintf("$%.2f", float64(*e.AmountCents)/100)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.OccurredAt.Format(timeLayout), e.Category, e.SubjectKey, amount, e.RawText)
	}
	_ = w.Flush()
	return buf.String()
}
