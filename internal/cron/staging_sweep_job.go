package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/minhvodev/storefront-backend/internal/payments/staging"
	"github.com/minhvodev/storefront-backend/pkg/logger"
)

// StagingSweepJobParams configure the staged-payment sweeper.
type StagingSweepJobParams struct {
	Logger *logger.Logger
	Stage  staging.Store
}

// NewStagingSweepJob builds the job that evicts expired staged payments.
// Expiry is already enforced lazily on read; the sweep only reclaims memory
// held by checkouts that were abandoned and never looked up again.
func NewStagingSweepJob(params StagingSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Stage == nil {
		return nil, fmt.Errorf("staging store required")
	}
	return &stagingSweepJob{logg: params.Logger, stage: params.Stage}, nil
}

type stagingSweepJob struct {
	logg  *logger.Logger
	stage staging.Store
}

func (j *stagingSweepJob) Name() string { return "staging_sweep" }

func (j *stagingSweepJob) Run(ctx context.Context) error {
	removed, err := j.stage.Sweep(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("sweep staged payments: %w", err)
	}
	if removed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "count", removed), "expired staged payments removed")
	}
	return nil
}
