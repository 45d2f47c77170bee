package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/bcnfacilities/sentiflow/internal/models"
	"github.com/bcnfacilities/sentiflow/internal/pipeline"
)

// Scheduler triggers pipeline runs on a cron cadence so the dashboard's
// artifacts stay fresh.
type Scheduler struct {
	ctx         context.Context
	pipe        *pipeline.Pipeline
	descriptors []models.SensorDescriptor
	spec        string
	logger      *logrus.Logger
	cron        *cron.Cron
}

// NewScheduler returns a Scheduler running the pipeline on the given
// cron spec (e.g. "*/5 * * * *").
func NewScheduler(ctx context.Context, pipe *pipeline.Pipeline, descriptors []models.SensorDescriptor, spec string, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		ctx:         ctx,
		pipe:        pipe,
		descriptors: descriptors,
		spec:        spec,
		logger:      logger,
		cron:        cron.New(),
	}
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.runOnce)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// runOnce executes one pipeline run with a bounded deadline.
func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Minute)
	defer cancel()

	if _, err := s.pipe.Run(ctx, s.descriptors); err != nil {
		s.logger.WithError(err).Error("Scheduled run failed")
	}
}

// Stop the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
