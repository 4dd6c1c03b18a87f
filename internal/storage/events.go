package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/model"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// timeLayout is fixed width so stored UTC timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const eventColumns = `id, user_id, category, subject_key, raw_text, intent, method, signals,
	amount_cents, occurred_at, submitted_at, checksum`

// FindEvents returns events matching query, oldest first unless NewestFirst is set.
func (s *SQLiteStorage) FindEvents(ctx context.Context, query model.EventQuery) ([]model.HistoricalEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return findEvents(ctx, s.db, query)
}

func findEvents(ctx context.Context, q queryable, query model.EventQuery) ([]model.HistoricalEvent, error) {
	var (
		where []string
		args  []any
	)
	if query.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, query.UserID)
	}
	if query.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(query.Category))
	}
	if query.SubjectContains != "" {
		pattern := "%" + escapeLike(query.SubjectContains) + "%"
		where = append(where, `(subject_key LIKE ? ESCAPE '\' OR raw_text LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if query.AmountCents != nil {
		where = append(where, "amount_cents = ?")
		args = append(args, *query.AmountCents)
	}
	if !query.From.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, formatTime(query.From))
	}
	if !query.To.IsZero() {
		where = append(where, "occurred_at <= ?")
		args = append(args, formatTime(query.To))
	}

	stmt := "SELECT " + eventColumns + " FROM events"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	if query.NewestFirst {
		stmt += " ORDER BY occurred_at DESC, id DESC"
	} else {
		stmt += " ORDER BY occurred_at, id"
	}
	if query.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, common.StoreUnavailable("query events", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.HistoricalEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreUnavailable("iterate events", err)
	}

	return events, nil
}

// SaveEvent inserts an event. A repeated checksum yields common.ErrDuplicateEntry.
func (s *SQLiteStorage) SaveEvent(ctx context.Context, event *model.HistoricalEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEvent(event); err != nil {
		return err
	}
	return saveEvent(ctx, s.db, event)
}

func saveEvent(ctx context.Context, q queryable, event *model.HistoricalEvent) error {
	signals := event.Signals
	if signals == nil {
		signals = map[string]any{}
	}
	encoded, err := json.Marshal(signals)
	if err != nil {
		return fmt.Errorf("failed to encode signals: %w", err)
	}

	submittedAt := event.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = event.OccurredAt
	}

	var amount sql.NullInt64
	if event.AmountCents != nil {
		amount = sql.NullInt64{Int64: *event.AmountCents, Valid: true}
	}
	var sum sql.NullString
	if event.Checksum != "" {
		sum = sql.NullString{String: event.Checksum, Valid: true}
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.UserID,
		string(event.Category),
		event.SubjectKey,
		event.RawText,
		string(event.Intent),
		string(event.Method),
		string(encoded),
		amount,
		formatTime(event.OccurredAt),
		formatTime(submittedAt),
		sum,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: event %s", common.ErrDuplicateEntry, event.ID)
		}
		return common.StoreUnavailable("insert event", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.HistoricalEvent, error) {
	var (
		event                    model.HistoricalEvent
		category, intent, method string
		signals                  string
		occurredAt, submittedAt  string
		amount                   sql.NullInt64
		sum                      sql.NullString
	)
	err := row.Scan(
		&event.ID,
		&event.UserID,
		&category,
		&event.SubjectKey,
		&event.RawText,
		&intent,
		&method,
		&signals,
		&amount,
		&occurredAt,
		&submittedAt,
		&sum,
	)
	if err != nil {
		return model.HistoricalEvent{}, fmt.Errorf("failed to scan event: %w", err)
	}

	event.Category = model.Category(category)
	event.Intent = model.Intent(intent)
	event.Method = model.Method(method)
	event.Checksum = sum.String
	if amount.Valid {
		cents := amount.Int64
		event.AmountCents = &cents
	}
	if err := json.Unmarshal([]byte(signals), &event.Signals); err != nil {
		return model.HistoricalEvent{}, fmt.Errorf("failed to decode signals for event %s: %w", event.ID, err)
	}
	if event.OccurredAt, err = parseTime(occurredAt); err != nil {
		return model.HistoricalEvent{}, err
	}
	if event.SubmittedAt, err = parseTime(submittedAt); err != nil {
		return model.HistoricalEvent{}, err
	}
	return event, nil
}

// CountEvents returns the number of stored events.
func (s *SQLiteStorage) CountEvents(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		return 0, common.StoreUnavailable("count events", err)
	}
	return count, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
