package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/config"
	"github.com/Veraticus/lifelog/internal/pipeline"
	"github.com/Veraticus/lifelog/internal/storage"
)

// clock is swapped in tests.
var clock = time.Now

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.DatabasePath(viper.GetViper())
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("could not open the database at %s", dbPath), err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, common.NewUserError("could not update the database schema; run 'lifelog migrate --status'", err)
	}

	return store, nil
}

// initPipeline builds a pipeline over store using the configured policy.
func initPipeline(store *storage.SQLiteStorage) (*pipeline.Pipeline, error) {
	cfg, err := config.LoadPipelineConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return pipeline.NewWithConfig(store, nil, cfg), nil
}

func currentUser() string {
	return viper.GetString(config.KeyUser)
}

// parseWhen accepts RFC 3339, "2006-01-02 15:04", "15:04" (today) or a
// duration meaning "that long ago" such as 90m or 2h.
func parseWhen(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("15:04", s, now.Location()); err == nil {
		y, m, d := now.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, now.Location()), nil
	}
	if d, err := time.ParseDuration(strings.TrimSuffix(strings.TrimSuffix(s, " ago"), "ago")); err == nil {
		if d < 0 {
			d = -d
		}
		return now.Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("%w: cannot parse time %q", common.ErrInvalidInput, s)
}

// parseDate accepts a calendar date, "today" or "yesterday".
func parseDate(s string, now time.Time) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return now, nil
	case "yesterday":
		return now.AddDate(0, 0, -1), nil
	}

	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cannot parse date %q (want YYYY-MM-DD)", common.ErrInvalidInput, s)
	}
	return t, nil
}
