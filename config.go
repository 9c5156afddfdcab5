package tollywood

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// SchedulerConfig is the environment-driven tunable set mirroring
// NewScheduler's constructor parameters. Grounded on
// ehsanshojaeiiii-sms-gateway's use of envconfig for service
// configuration.
type SchedulerConfig struct {
	MaxReductions          int   `envconfig:"MAX_REDUCTIONS" default:"2000"`
	NumWorkers             int   `envconfig:"NUM_WORKERS" default:"0"` // 0 => runtime.NumCPU()
	ProcessTimeThresholdMS int64 `envconfig:"PROCESS_TIME_THRESHOLD_MS" default:"10"`
	TimePenaltyFactor      int   `envconfig:"TIME_PENALTY_FACTOR" default:"2"`
}

// LoadSchedulerConfig reads a SchedulerConfig from the environment,
// using prefix as the envconfig variable prefix (e.g. "TOLLYWOOD" reads
// TOLLYWOOD_MAX_REDUCTIONS).
func LoadSchedulerConfig(prefix string) (SchedulerConfig, error) {
	var cfg SchedulerConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return SchedulerConfig{}, fmt.Errorf("load scheduler config: %w", err)
	}
	return cfg, nil
}

// NewScheduler builds a Scheduler from the config, layering any
// additional options on top.
func (c SchedulerConfig) NewScheduler(opts ...SchedulerOption) *Scheduler {
	allOpts := []SchedulerOption{
		WithProcessTimeThreshold(c.ProcessTimeThresholdMS),
		WithTimePenaltyFactor(c.TimePenaltyFactor),
	}
	if c.NumWorkers > 0 {
		allOpts = append(allOpts, WithNumWorkers(c.NumWorkers))
	}
	allOpts = append(allOpts, opts...)
	return NewScheduler(c.MaxReductions, allOpts...)
}
