package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnfacilities/sentiflow/internal/models"
	"github.com/bcnfacilities/sentiflow/internal/series"
	"github.com/bcnfacilities/sentiflow/internal/storage"
)

// fakeFetcher serves canned observations per sensor id and fails the
// ids listed in fail.
type fakeFetcher struct {
	observations map[string][]models.RawObservation
	fail         map[string]bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, desc models.SensorDescriptor, kind models.Kind) ([]models.RawObservation, error) {
	if f.fail[desc.ID] {
		return nil, errors.New("connection refused")
	}
	return f.observations[desc.ID], nil
}

func counterObs(ts, first, last string) models.RawObservation {
	return models.RawObservation{
		Timestamp: ts,
		Value:     `{"summary":{"firstvalue":` + first + `,"lastvalue":` + last + `}}`,
	}
}

func newTestPipeline(t *testing.T, fetcher ObservationFetcher, derived []models.DerivedSpec) (*Pipeline, *storage.Store) {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewStore(filepath.Join(dir, "datos"), filepath.Join(dir, "indice.json"))
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	p := New(Options{
		Fetcher:    fetcher,
		Classifier: series.NewClassifier(series.DefaultClassifierConfig()),
		Policy:     series.DefaultAlignmentPolicy(),
		Store:      store,
		Derived:    derived,
		Workers:    3,
		Metrics:    NewMetrics(prometheus.NewRegistry()),
		Logger:     logger,
	})
	return p, store
}

func testDescriptors() []models.SensorDescriptor {
	return []models.SensorDescriptor{
		{ID: "0190_MV_C1_ASB_ACTIVEE", Description: "Energia importada", Unit: "kWh", Provider: "P", TokenEnv: "T"},
		{ID: "0524_MV_FVENERGIA", Description: "Energia fotovoltaica", Unit: "kWh", Provider: "P", TokenEnv: "T"},
		{ID: "0190_HV_S1_STPRO_TEMP", Description: "Temperatura", Unit: "ºC", Provider: "P", TokenEnv: "T"},
		{ID: "0190_MV_ENERGIA_CONS", Description: "Energia Total Consumida", Unit: "kWh", Calculated: true},
	}
}

func consumoSpec() []models.DerivedSpec {
	return []models.DerivedSpec{{
		SensorID:    "0190_MV_ENERGIA_CONS",
		Description: "Energia Total Consumida",
		Unit:        "kWh",
		Operands: []models.Operand{
			{SensorID: "0190_MV_C1_ASB_ACTIVEE", Sign: 1},
			{SensorID: "0524_MV_FVENERGIA", Sign: 1, Optional: true},
		},
	}}
}

func TestRunEndToEnd(t *testing.T) {
	fetcher := &fakeFetcher{
		observations: map[string][]models.RawObservation{
			"0190_MV_C1_ASB_ACTIVEE": {
				counterObs("13/08/2025T08:00:00", "20", "30"),
				counterObs("13/08/2025T07:45:00", "10", "20"),
			},
			"0524_MV_FVENERGIA": {
				counterObs("13/08/2025T07:45:30", "0", "5"),
			},
			"0190_HV_S1_STPRO_TEMP": {
				{Timestamp: "13/08/2025T08:00:00", Value: `{"summary":{"avg":22.5}}`},
			},
		},
	}

	p, store := newTestPipeline(t, fetcher, consumoSpec())

	result, err := p.Run(context.Background(), testDescriptors())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.Derived)
	assert.Equal(t, 4, result.Published)

	// Derived series: 07:45 gets import+fv, 08:00 only import (fv
	// optional, zero-filled).
	calc, err := store.ReadSeries("0190_MV_ENERGIA_CONS")
	require.NoError(t, err)
	require.Len(t, calc.Values, 2)
	assert.Equal(t, "2025-08-13T07:45:00", calc.Labels[0])
	assert.InDelta(t, 15.0, calc.Values[0], 1e-9)
	assert.InDelta(t, 10.0, calc.Values[1], 1e-9)
	assert.Equal(t, models.KindInterval, calc.TipoDato)

	temp, err := store.ReadSeries("0190_HV_S1_STPRO_TEMP")
	require.NoError(t, err)
	assert.Equal(t, models.KindInstant, temp.TipoDato)
	assert.InDelta(t, 22.5, temp.Values[0], 1e-9)
}

func TestRunIsolatesSensorFailures(t *testing.T) {
	fetcher := &fakeFetcher{
		observations: map[string][]models.RawObservation{
			"0190_HV_S1_STPRO_TEMP": {
				{Timestamp: "13/08/2025T08:00:00", Value: `{"summary":{"avg":22.5}}`},
			},
		},
		fail: map[string]bool{
			"0190_MV_C1_ASB_ACTIVEE": true,
			"0524_MV_FVENERGIA":      true,
		},
	}

	p, store := newTestPipeline(t, fetcher, consumoSpec())

	result, err := p.Run(context.Background(), testDescriptors())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 2, result.Failed)
	// Derivation needs the mandatory import series, so it is skipped.
	assert.Equal(t, 0, result.Derived)
	assert.Equal(t, 1, result.Published)

	_, err = store.ReadSeries("0190_HV_S1_STPRO_TEMP")
	assert.NoError(t, err)
	_, err = store.ReadSeries("0190_MV_ENERGIA_CONS")
	assert.Error(t, err)
}

func TestRunOmitsEmptySeriesFromCatalogue(t *testing.T) {
	fetcher := &fakeFetcher{
		observations: map[string][]models.RawObservation{
			// Delivered but nothing usable in the payloads.
			"0190_HV_S1_STPRO_TEMP": {
				{Timestamp: "13/08/2025T08:00:00", Value: `{"summary":{}}`},
			},
		},
	}

	descriptors := []models.SensorDescriptor{
		{ID: "0190_HV_S1_STPRO_TEMP", Description: "Temperatura", Provider: "P", TokenEnv: "T"},
	}

	p, store := newTestPipeline(t, fetcher, nil)

	result, err := p.Run(context.Background(), descriptors)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 0, result.Published)

	data, err := os.ReadFile(store.IndexFile())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "0190_HV_S1_STPRO_TEMP")
}

func TestRunIsIdempotentOnIdenticalInput(t *testing.T) {
	fetcher := &fakeFetcher{
		observations: map[string][]models.RawObservation{
			"0190_MV_C1_ASB_ACTIVEE": {
				counterObs("13/08/2025T08:00:00", "20", "30"),
				counterObs("13/08/2025T07:45:00", "10", "20"),
			},
		},
	}

	descriptors := []models.SensorDescriptor{
		{ID: "0190_MV_C1_ASB_ACTIVEE", Description: "Energia", Provider: "P", TokenEnv: "T"},
	}

	p, store := newTestPipeline(t, fetcher, nil)

	_, err := p.Run(context.Background(), descriptors)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(store.DataDir(), "0190_MV_C1_ASB_ACTIVEE.json"))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), descriptors)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(store.DataDir(), "0190_MV_C1_ASB_ACTIVEE.json"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
