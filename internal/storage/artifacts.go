// Package storage persists the run's output: one JSON artifact per
// series plus the catalogue the dashboard loads first. Files are
// regenerated wholesale each run and written atomically so the dashboard
// never reads a half-written document.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bcnfacilities/sentiflow/internal/models"
	"github.com/bcnfacilities/sentiflow/internal/series"
)

// Store writes artifacts under a single data directory.
type Store struct {
	dataDir   string
	indexFile string
}

// NewStore creates the data directory if needed and returns a Store.
func NewStore(dataDir, indexFile string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &Store{dataDir: dataDir, indexFile: indexFile}, nil
}

// DataDir returns the directory artifacts are written to.
func (s *Store) DataDir() string { return s.dataDir }

// IndexFile returns the path of the catalogue artifact.
func (s *Store) IndexFile() string { return s.indexFile }

// WriteSeries persists one series as {sensor_id}.json and returns the
// file name recorded in the catalogue.
func (s *Store) WriteSeries(sr models.Series) (string, error) {
	artifact := models.SeriesArtifact{
		SensorID:    sr.SensorID,
		Description: sr.Description,
		Unit:        sr.Unit,
		TipoDato:    sr.Kind,
		Labels:      make([]string, 0, len(sr.Samples)),
		Values:      make([]float64, 0, len(sr.Samples)),
	}
	for _, sample := range sr.Samples {
		artifact.Labels = append(artifact.Labels, sample.Timestamp)
		artifact.Values = append(artifact.Values, sample.Value)
	}

	name := series.ArtifactName(sr.SensorID)
	if err := writeJSON(filepath.Join(s.dataDir, name), artifact); err != nil {
		return "", fmt.Errorf("failed to write series %s: %w", sr.SensorID, err)
	}
	return name, nil
}

// WriteCatalogue persists the index artifact.
func (s *Store) WriteCatalogue(cat models.Catalogue) error {
	if err := writeJSON(s.indexFile, cat); err != nil {
		return fmt.Errorf("failed to write catalogue: %w", err)
	}
	return nil
}

// ReadSeries loads a previously written series artifact.
func (s *Store) ReadSeries(sensorID string) (models.SeriesArtifact, error) {
	var artifact models.SeriesArtifact
	data, err := os.ReadFile(filepath.Join(s.dataDir, series.ArtifactName(sensorID)))
	if err != nil {
		return artifact, fmt.Errorf("failed to read series %s: %w", sensorID, err)
	}
	if err := json.Unmarshal(data, &artifact); err != nil {
		return artifact, fmt.Errorf("failed to decode series %s: %w", sensorID, err)
	}
	return artifact, nil
}

// writeJSON writes v to path through a temp file and rename.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
