// Package pipeline orchestrates one download run: fetch and normalize
// every sensor in the definition sheet, derive the calculated sensors,
// assemble the catalogue and persist the artifacts.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bcnfacilities/sentiflow/internal/models"
	"github.com/bcnfacilities/sentiflow/internal/series"
	"github.com/bcnfacilities/sentiflow/internal/storage"
)

// ObservationFetcher is the transport collaborator: it returns the raw
// observations for one sensor or fails. A failure is isolated to that
// sensor; the pipeline keeps going.
type ObservationFetcher interface {
	Fetch(ctx context.Context, desc models.SensorDescriptor, kind models.Kind) ([]models.RawObservation, error)
}

// Archiver is the optional long-term sample store.
type Archiver interface {
	ArchiveSeries(ctx context.Context, s models.Series) error
}

// Pipeline wires the core components for repeated runs.
type Pipeline struct {
	fetcher    ObservationFetcher
	classifier *series.Classifier
	builder    *series.Builder
	engine     *series.Engine
	store      *storage.Store
	archive    Archiver // nil when archiving is disabled
	derived    []models.DerivedSpec
	workers    int
	metrics    *Metrics
	logger     *logrus.Logger
}

// Options collects the pipeline's collaborators.
type Options struct {
	Fetcher    ObservationFetcher
	Classifier *series.Classifier
	Policy     series.AlignmentPolicy
	Store      *storage.Store
	Archive    Archiver
	Derived    []models.DerivedSpec
	Workers    int
	Metrics    *Metrics
	Logger     *logrus.Logger
}

// New builds a Pipeline. Workers defaults to 4.
func New(opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Pipeline{
		fetcher:    opts.Fetcher,
		classifier: opts.Classifier,
		builder:    series.NewBuilder(opts.Classifier),
		engine:     series.NewEngine(opts.Policy),
		store:      opts.Store,
		archive:    opts.Archive,
		derived:    opts.Derived,
		workers:    opts.Workers,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
}

// Result summarizes one run for the caller and the logs.
type Result struct {
	RunID     string
	Fetched   int
	Failed    int
	Derived   int
	Published int
}

// Run executes one full pass. Base sensors are fetched and built on a
// bounded worker pool; the resulting cache is only read once the pool
// has drained, so derivation always sees complete series. Only catalogue
// persistence can fail the run: every per-sensor error is absorbed.
func (p *Pipeline) Run(ctx context.Context, descriptors []models.SensorDescriptor) (Result, error) {
	runID := uuid.NewString()
	log := p.logger.WithField("run_id", runID)
	result := Result{RunID: runID}

	log.WithField("sensors", len(descriptors)).Info("Starting run")

	cache := make(map[string]models.Series)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.workers)

	for _, desc := range descriptors {
		if desc.Calculated {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(desc models.SensorDescriptor) {
			defer wg.Done()
			defer func() { <-sem }()

			s, err := p.fetchAndBuild(ctx, desc)
			if err != nil {
				p.metrics.SensorsFailed.Inc()
				log.WithError(err).WithField("sensor", desc.ID).Warn("Sensor skipped")
				return
			}

			p.metrics.SensorsFetched.Inc()
			p.metrics.SamplesBuilt.Add(float64(len(s.Samples)))

			mu.Lock()
			cache[desc.ID] = s
			mu.Unlock()
		}(desc)
	}
	wg.Wait()

	result.Fetched = len(cache)
	result.Failed = countBase(descriptors) - len(cache)

	// The pool has drained: from here the cache is read-only.
	for _, spec := range p.derived {
		derived, err := p.engine.Derive(spec, cache)
		if err != nil {
			log.WithError(err).WithField("sensor", spec.SensorID).Warn("Derivation skipped")
			continue
		}
		cache[spec.SensorID] = derived
		result.Derived++
		log.WithFields(logrus.Fields{
			"sensor":  spec.SensorID,
			"samples": len(derived.Samples),
		}).Info("Derived series")
	}

	all := make([]models.Series, 0, len(cache))
	for _, s := range cache {
		all = append(all, s)
	}

	for _, s := range all {
		if s.Empty() {
			continue
		}
		if _, err := p.store.WriteSeries(s); err != nil {
			log.WithError(err).WithField("sensor", s.SensorID).Error("Failed to persist series")
			continue
		}
		if p.archive != nil {
			if err := p.archive.ArchiveSeries(ctx, s); err != nil {
				log.WithError(err).WithField("sensor", s.SensorID).Warn("Failed to archive series")
			}
		}
	}

	catalogue := series.Assemble(all, time.Now())
	if err := p.store.WriteCatalogue(catalogue); err != nil {
		return result, err
	}

	result.Published = len(catalogue.Sensors)
	p.metrics.SeriesPublished.Set(float64(result.Published))

	log.WithFields(logrus.Fields{
		"fetched":   result.Fetched,
		"failed":    result.Failed,
		"derived":   result.Derived,
		"published": result.Published,
	}).Info("Run completed")

	return result, nil
}

func (p *Pipeline) fetchAndBuild(ctx context.Context, desc models.SensorDescriptor) (models.Series, error) {
	kind := p.classifier.Classify(desc.ID, desc.Description)

	started := time.Now()
	observations, err := p.fetcher.Fetch(ctx, desc, kind)
	p.metrics.FetchLatency.Observe(time.Since(started).Seconds())
	if err != nil {
		return models.Series{}, err
	}

	return p.builder.Build(desc, observations), nil
}

func countBase(descriptors []models.SensorDescriptor) int {
	n := 0
	for _, d := range descriptors {
		if !d.Calculated {
			n++
		}
	}
	return n
}
