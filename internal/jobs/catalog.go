package jobs

import (
	"context"
	"fmt"

	"github.com/sentra/secintel/internal/model"
)

// defaultCatalog holds the platform's standing job definitions keyed by
// type. Cadences follow the upstream feeds: advisory databases hourly or
// slower, media feeds more often, analysis jobs on demand only (no entry).
var defaultCatalog = map[string]model.Schedule{
	model.JobTypeSyncOSV:             model.CronSchedule("hourly"),
	model.JobTypeSyncGHSA:            model.CronSchedule("hourly"),
	model.JobTypeSyncNVD:             model.CronSchedule("every_6_hours"),
	model.JobTypeSyncEPSS:            model.CronSchedule("daily"),
	model.JobTypeSyncMediaRSS:        model.CronSchedule("every_30_minutes"),
	model.JobTypeSyncMediaHackerNews: model.CronSchedule("every_15_minutes"),
	model.JobTypeSyncMediaReddit:     model.CronSchedule("every_30_minutes"),
	model.JobTypeSyncMediaBluesky:    model.CronSchedule("every_30_minutes"),
}

// JobRegistrar registers job definitions. Satisfied by
// *service.ClaimService.
type JobRegistrar interface {
	Register(ctx context.Context, job *model.Job) error
}

// SeedCatalog registers the default job definition for every catalog type
// this worker has a handler for. Registration is idempotent, so every
// worker seeds on startup and the first one wins; types without a handler
// are skipped rather than registered into a cluster that cannot run them.
func SeedCatalog(ctx context.Context, registrar JobRegistrar, registry *Registry) error {
	for _, jobType := range registry.Types() {
		schedule, ok := defaultCatalog[jobType]
		if !ok {
			continue
		}
		job := &model.Job{
			ID:                jobType,
			Type:              jobType,
			Schedule:          schedule,
			MaxRetries:        model.DefaultMaxRetries,
			RetryDelayMinutes: model.DefaultRetryDelayMinutes,
			TimeoutMinutes:    model.DefaultTimeoutMinutes,
		}
		job.ApplyDefaults()
		if err := registrar.Register(ctx, job); err != nil {
			return fmt.Errorf("seeding job %s: %w", jobType, err)
		}
	}
	return nil
}
