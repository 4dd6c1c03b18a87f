package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/streak"
	"github.com/Veraticus/lifelog/internal/validation"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	}
	return v
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("LIFELOG_TEST_DIR", "/srv/lifelog")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "tilde", in: "~", want: home},
		{name: "tilde prefix", in: "~/data/lifelog.db", want: filepath.Join(home, "data/lifelog.db")},
		{name: "env var", in: "$LIFELOG_TEST_DIR/lifelog.db", want: "/srv/lifelog/lifelog.db"},
		{name: "plain", in: "/tmp/lifelog.db", want: "/tmp/lifelog.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestDatabasePath(t *testing.T) {
	v := newViper(t, "database:\n  path: /var/lib/lifelog/events.db\n")
	assert.Equal(t, "/var/lib/lifelog/events.db", DatabasePath(v))
	assert.Equal(t, "/var/lib/lifelog/snapshots", SnapshotDir(DatabasePath(v)))

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local/share/lifelog/lifelog.db"), DatabasePath(viper.New()))
}

func TestLoadPolicy(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		policy, err := LoadPolicy(newViper(t, ""))
		require.NoError(t, err)
		assert.Equal(t, validation.DefaultPolicy(), policy)
	})

	t.Run("overrides", func(t *testing.T) {
		policy, err := LoadPolicy(newViper(t, `
policy:
  medication:
    duplicate_window: 6h
    max_backdate: 30m
  finance:
    duplicate_window: 10m
    max_backdate: 72h
    min_amount: 1
    max_amount: 5000
`))
		require.NoError(t, err)
		assert.Equal(t, 6*time.Hour, policy.MedicationDuplicateWindow)
		assert.Equal(t, 30*time.Minute, policy.MedicationMaxBackdate)
		assert.Equal(t, 10*time.Minute, policy.FinanceDuplicateWindow)
		assert.Equal(t, 72*time.Hour, policy.FinanceMaxBackdate)
		assert.InDelta(t, 1.0, policy.MinAmount, 1e-9)
		assert.InDelta(t, 5000.0, policy.MaxAmount, 1e-9)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := LoadPolicy(newViper(t, "policy:\n  finance:\n    min_amount: 10\n    max_amount: 5\n"))
		require.ErrorIs(t, err, common.ErrInvalidConfig)
	})
}

func TestLoadStreakOptions(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    streak.Options
		wantErr bool
	}{
		{name: "defaults", want: streak.DefaultOptions()},
		{
			name: "calendar weeks",
			yaml: "streak:\n  week_mode: calendar\n  window_days: 120\n",
			want: streak.Options{WeekMode: streak.WeekModeCalendar, WindowDays: 120},
		},
		{name: "unknown mode", yaml: "streak:\n  week_mode: lunar\n", wantErr: true},
		{name: "window too large", yaml: "streak:\n  window_days: 400\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := LoadStreakOptions(newViper(t, tt.yaml))
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts)
		})
	}
}

func TestLoadRetryOptions(t *testing.T) {
	opts, err := LoadRetryOptions(newViper(t, "retry:\n  max_attempts: 5\n  initial_delay: 250ms\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, opts.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, opts.InitialDelay)

	_, err = LoadRetryOptions(newViper(t, "retry:\n  max_attempts: 0\n"))
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLoadPipelineConfig(t *testing.T) {
	cfg, err := LoadPipelineConfig(newViper(t, "streak:\n  week_mode: calendar\n"))
	require.NoError(t, err)
	assert.Equal(t, streak.WeekModeCalendar, cfg.Streak.WeekMode)
	assert.Equal(t, validation.DefaultPolicy(), cfg.Policy)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.True(t, cfg.Transactional)

	cfg, err = LoadPipelineConfig(newViper(t, "pipeline:\n  transactional: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Transactional)

	_, err = LoadPipelineConfig(newViper(t, "policy:\n  medication:\n    duplicate_window: 0s\n"))
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLoadSchedule(t *testing.T) {
	t.Run("reports", func(t *testing.T) {
		sched, err := LoadSchedule(newViper(t, `
schedule:
  cron: "*/30 * * * *"
  reports:
    - user: alice
      subject: aspirin
      days: 30
    - user: bob
      subject: vitamin d
`))
		require.NoError(t, err)
		assert.Equal(t, "*/30 * * * *", sched.Cron)
		assert.Equal(t, []ScheduledReport{
			{User: "alice", Subject: "aspirin", Days: 30},
			{User: "bob", Subject: "vitamin d", Days: 7},
		}, sched.Reports)
	})

	t.Run("defaults", func(t *testing.T) {
		sched, err := LoadSchedule(newViper(t, ""))
		require.NoError(t, err)
		assert.Equal(t, DefaultScheduleCron, sched.Cron)
		assert.Empty(t, sched.Reports)
	})

	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad cron", yaml: "schedule:\n  cron: every morning\n"},
		{name: "missing subject", yaml: "schedule:\n  reports:\n    - user: alice\n"},
		{name: "negative days", yaml: "schedule:\n  reports:\n    - user: alice\n      subject: aspirin\n      days: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSchedule(newViper(t, tt.yaml))
			require.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestDefaultUser(t *testing.T) {
	t.Setenv("USER", "alice")
	assert.Equal(t, "alice", DefaultUser())
	assert.Equal(t, "alice", newViper(t, "").GetString(KeyUser))

	t.Setenv("USER", "")
	assert.Equal(t, "default", DefaultUser())
}
