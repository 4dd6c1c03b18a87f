// Package export reads a user's recorded events back out, by domain, for
// auditing outside the application.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/model"
	"github.com/Veraticus/lifelog/internal/service"
)

// Domain selects which records an export covers.
type Domain string

// Export domains.
const (
	DomainMedication Domain = "medication"
	DomainFinance    Domain = "finance"
	DomainAll        Domain = "all"
)

// ParseDomain accepts medication, finance or all, plus the plural aliases
// medications and expenses. Empty means all.
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return DomainAll, nil
	case "medication", "medications":
		return DomainMedication, nil
	case "finance", "expenses":
		return DomainFinance, nil
	default:
		return "", fmt.Errorf("%w: unknown export domain %q (want medication, finance or all)", common.ErrInvalidInput, s)
	}
}

// Category returns the event category filter, empty for all.
func (d Domain) Category() model.Category {
	switch d {
	case DomainMedication:
		return model.CategoryMedication
	case DomainFinance:
		return model.CategoryFinance
	default:
		return ""
	}
}

// Exporter reads events for export.
type Exporter struct {
	events service.EventReader
}

// New creates an exporter over an event reader.
func New(events service.EventReader) *Exporter {
	return &Exporter{events: events}
}

// Events returns the user's events in domain, newest first.
func (e *Exporter) Events(ctx context.Context, userID string, domain Domain) ([]model.HistoricalEvent, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", common.ErrInvalidInput)
	}

	events, err := e.events.FindEvents(ctx, model.EventQuery{
		UserID:      userID,
		Category:    domain.Category(),
		NewestFirst: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s events: %w", domain, err)
	}
	if events == nil {
		events = []model.HistoricalEvent{}
	}
	return events, nil
}

// csvHeader names the columns written by WriteCSV.
var csvHeader = []string{
	"occurred_at", "submitted_at", "category", "intent", "subject",
	"amount", "text", "checksum", "signals",
}

// WriteCSV writes events as CSV with a header row. Amounts are dollars with
// two decimals; signals are a JSON object.
func WriteCSV(w io.Writer, events []model.HistoricalEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, e := range events {
		signals, err := json.Marshal(e.Signals)
		if err != nil {
			return fmt.Errorf("failed to encode signals of event %s: %w", e.ID, err)
		}
		if e.Signals == nil {
			signals = []byte("{}")
		}

		record := []string{
			e.OccurredAt.Format(time.RFC3339),
			e.SubmittedAt.Format(time.RFC3339),
			string(e.Category),
			string(e.Intent),
			e.SubjectKey,
			formatCents(e.AmountCents),
			e.RawText,
			e.Checksum,
			string(signals),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatCents(cents *int64) string {
	if cents == nil {
		return ""
	}
	c := *cents
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return sign + strconv.FormatInt(c/100, 10) + "." + fmt.Sprintf("%02d", c%100)
}
