package config

import (
	"time"

	"github.com/spf13/viper"
)

// JobsConfig holds the cron specs (with seconds field) for periodic jobs.
type JobsConfig struct {
	Stream           string
	SessionCleanup   string
	AnalyticsArchive string
}

type WorkerConfig struct {
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

func setJobDefaults(v *viper.Viper) {
	v.SetDefault("jobs.stream", "portal:jobs")
	v.SetDefault("jobs.sessioncleanup", "0 0 * * * *")
	v.SetDefault("jobs.analyticsarchive", "0 30 3 * * *")

	v.SetDefault("worker.group", "portal-workers")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "30s")
}
