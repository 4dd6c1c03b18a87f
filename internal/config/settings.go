package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/Veraticus/lifelog/internal/adherence"
	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/pipeline"
	"github.com/Veraticus/lifelog/internal/service"
	"github.com/Veraticus/lifelog/internal/streak"
	"github.com/Veraticus/lifelog/internal/validation"
)

// Configuration keys.
const (
	KeyUser         = "user"
	KeyDatabasePath = "database.path"
	KeyLogLevel     = "logging.level"
	KeyLogFormat    = "logging.format"

	KeyMedicationDuplicateWindow = "policy.medication.duplicate_window"
	KeyMedicationMaxBackdate     = "policy.medication.max_backdate"
	KeyFinanceDuplicateWindow    = "policy.finance.duplicate_window"
	KeyFinanceMaxBackdate        = "policy.finance.max_backdate"
	KeyFinanceMinAmount          = "policy.finance.min_amount"
	KeyFinanceMaxAmount          = "policy.finance.max_amount"

	KeyStreakWindowDays = "streak.window_days"
	KeyStreakWeekMode   = "streak.week_mode"

	KeyPipelineTransactional = "pipeline.transactional"

	KeyRetryMaxAttempts  = "retry.max_attempts"
	KeyRetryInitialDelay = "retry.initial_delay"

	KeyScheduleCron    = "schedule.cron"
	KeyScheduleReports = "schedule.reports"
)

// DefaultScheduleCron runs scheduled reports every morning at 08:00.
const DefaultScheduleCron = "0 8 * * *"

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	policy := validation.DefaultPolicy()
	streakOpts := streak.DefaultOptions()
	retry := pipeline.DefaultConfig().Retry

	v.SetDefault(KeyUser, DefaultUser())
	v.SetDefault(KeyDatabasePath, DefaultDatabasePath)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")

	v.SetDefault(KeyMedicationDuplicateWindow, policy.MedicationDuplicateWindow)
	v.SetDefault(KeyMedicationMaxBackdate, policy.MedicationMaxBackdate)
	v.SetDefault(KeyFinanceDuplicateWindow, policy.FinanceDuplicateWindow)
	v.SetDefault(KeyFinanceMaxBackdate, policy.FinanceMaxBackdate)
	v.SetDefault(KeyFinanceMinAmount, policy.MinAmount)
	v.SetDefault(KeyFinanceMaxAmount, policy.MaxAmount)

	v.SetDefault(KeyStreakWindowDays, streakOpts.WindowDays)
	v.SetDefault(KeyStreakWeekMode, string(streakOpts.WeekMode))

	v.SetDefault(KeyPipelineTransactional, pipeline.DefaultConfig().Transactional)
	v.SetDefault(KeyRetryMaxAttempts, retry.MaxAttempts)
	v.SetDefault(KeyRetryInitialDelay, retry.InitialDelay)

	v.SetDefault(KeyScheduleCron, DefaultScheduleCron)
}

// DefaultUser is the login name of the current user, or "default".
func DefaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}

// DatabasePath returns the expanded database location.
func DatabasePath(v *viper.Viper) string {
	path := v.GetString(KeyDatabasePath)
	if path == "" {
		path = DefaultDatabasePath
	}
	return ExpandPath(path)
}

// LoadPolicy builds a validation policy from the policy.* keys.
func LoadPolicy(v *viper.Viper) (validation.Policy, error) {
	policy := validation.DefaultPolicy()

	if v.IsSet(KeyMedicationDuplicateWindow) {
		policy.MedicationDuplicateWindow = v.GetDuration(KeyMedicationDuplicateWindow)
	}
	if v.IsSet(KeyMedicationMaxBackdate) {
		policy.MedicationMaxBackdate = v.GetDuration(KeyMedicationMaxBackdate)
	}
	if v.IsSet(KeyFinanceDuplicateWindow) {
		policy.FinanceDuplicateWindow = v.GetDuration(KeyFinanceDuplicateWindow)
	}
	if v.IsSet(KeyFinanceMaxBackdate) {
		policy.FinanceMaxBackdate = v.GetDuration(KeyFinanceMaxBackdate)
	}
	if v.IsSet(KeyFinanceMinAmount) {
		policy.MinAmount = v.GetFloat64(KeyFinanceMinAmount)
	}
	if v.IsSet(KeyFinanceMaxAmount) {
		policy.MaxAmount = v.GetFloat64(KeyFinanceMaxAmount)
	}

	if err := policy.Validate(); err != nil {
		return validation.Policy{}, err
	}
	return policy, nil
}

// LoadStreakOptions builds streak updater options from the streak.* keys.
func LoadStreakOptions(v *viper.Viper) (streak.Options, error) {
	opts := streak.DefaultOptions()

	mode, err := streak.ParseWeekMode(v.GetString(KeyStreakWeekMode))
	if err != nil {
		return streak.Options{}, err
	}
	opts.WeekMode = mode

	if v.IsSet(KeyStreakWindowDays) {
		opts.WindowDays = v.GetInt(KeyStreakWindowDays)
	}

	if err := opts.Validate(); err != nil {
		return streak.Options{}, err
	}
	return opts, nil
}

// LoadRetryOptions builds retry options from the retry.* keys.
func LoadRetryOptions(v *viper.Viper) (service.RetryOptions, error) {
	opts := pipeline.DefaultConfig().Retry

	if v.IsSet(KeyRetryMaxAttempts) {
		opts.MaxAttempts = v.GetInt(KeyRetryMaxAttempts)
	}
	if v.IsSet(KeyRetryInitialDelay) {
		opts.InitialDelay = v.GetDuration(KeyRetryInitialDelay)
	}

	if opts.MaxAttempts < 1 {
		return service.RetryOptions{}, fmt.Errorf("%w: %s must be at least 1", common.ErrInvalidConfig, KeyRetryMaxAttempts)
	}
	if opts.InitialDelay <= 0 {
		return service.RetryOptions{}, fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, KeyRetryInitialDelay)
	}
	if opts.MaxDelay < opts.InitialDelay {
		opts.MaxDelay = opts.InitialDelay
	}
	return opts, nil
}

// LoadPipelineConfig combines policy, streak and retry settings.
func LoadPipelineConfig(v *viper.Viper) (pipeline.Config, error) {
	policy, err := LoadPolicy(v)
	if err != nil {
		return pipeline.Config{}, err
	}
	streakOpts, err := LoadStreakOptions(v)
	if err != nil {
		return pipeline.Config{}, err
	}
	retry, err := LoadRetryOptions(v)
	if err != nil {
		return pipeline.Config{}, err
	}

	return pipeline.Config{
		Policy:        policy,
		Streak:        streakOpts,
		Retry:         retry,
		Transactional: v.GetBool(KeyPipelineTransactional),
	}, nil
}

// ScheduledReport is one adherence report computed on every scheduled run.
type ScheduledReport struct {
	User    string `mapstructure:"user" yaml:"user"`
	Subject string `mapstructure:"subject" yaml:"subject"`
	Days    int    `mapstructure:"days" yaml:"days"`
}

// Schedule describes when and what the scheduler reports on.
type Schedule struct {
	Cron    string            `yaml:"cron"`
	Reports []ScheduledReport `yaml:"reports"`
}

// LoadSchedule reads and validates the schedule.* keys.
func LoadSchedule(v *viper.Viper) (Schedule, error) {
	sched := Schedule{Cron: strings.TrimSpace(v.GetString(KeyScheduleCron))}
	if sched.Cron == "" {
		sched.Cron = DefaultScheduleCron
	}
	if _, err := cron.ParseStandard(sched.Cron); err != nil {
		return Schedule{}, fmt.Errorf("%w: %s %q: %w", common.ErrInvalidConfig, KeyScheduleCron, sched.Cron, err)
	}

	if err := v.UnmarshalKey(KeyScheduleReports, &sched.Reports); err != nil {
		return Schedule{}, fmt.Errorf("%w: %s: %w", common.ErrInvalidConfig, KeyScheduleReports, err)
	}
	for i, r := range sched.Reports {
		if strings.TrimSpace(r.User) == "" || strings.TrimSpace(r.Subject) == "" {
			return Schedule{}, fmt.Errorf("%w: %s[%d] needs a user and a subject", common.ErrInvalidConfig, KeyScheduleReports, i)
		}
		if r.Days == 0 {
			sched.Reports[i].Days = adherence.WeeklyWindow
		}
		if sched.Reports[i].Days < 1 {
			return Schedule{}, fmt.Errorf("%w: %s[%d] days must be positive", common.ErrInvalidConfig, KeyScheduleReports, i)
		}
	}
	return sched, nil
}
