package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnfacilities/sentiflow/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "datos"), filepath.Join(dir, "indice.json"))
	require.NoError(t, err)
	return store
}

func TestWriteAndReadSeries(t *testing.T) {
	store := newTestStore(t)

	sr := models.Series{
		SensorID:    "0190_MV_C1_ASB_ACTIVEE",
		Description: "Energia activa importada",
		Unit:        "kWh",
		Kind:        models.KindInterval,
		Samples: []models.Sample{
			{Timestamp: "2025-08-13T07:45:00", Value: 10.123456789},
			{Timestamp: "2025-08-13T08:00:00", Value: 12.5},
		},
	}

	name, err := store.WriteSeries(sr)
	require.NoError(t, err)
	assert.Equal(t, "0190_MV_C1_ASB_ACTIVEE.json", name)

	got, err := store.ReadSeries(sr.SensorID)
	require.NoError(t, err)

	assert.Equal(t, sr.SensorID, got.SensorID)
	assert.Equal(t, models.KindInterval, got.TipoDato)
	require.Len(t, got.Labels, 2)
	require.Len(t, got.Values, 2)
	assert.Equal(t, "2025-08-13T07:45:00", got.Labels[0])
	assert.InDelta(t, 10.123456789, got.Values[0], 1e-9)
	assert.InDelta(t, 12.5, got.Values[1], 1e-9)
}

func TestWriteSeriesEmptyHasParallelArrays(t *testing.T) {
	store := newTestStore(t)

	_, err := store.WriteSeries(models.Series{SensorID: "S1", Kind: models.KindInstant})
	require.NoError(t, err)

	got, err := store.ReadSeries("S1")
	require.NoError(t, err)
	assert.Empty(t, got.Labels)
	assert.Empty(t, got.Values)
}

func TestWriteSeriesOverwrites(t *testing.T) {
	store := newTestStore(t)

	sr := models.Series{SensorID: "S1", Kind: models.KindInstant,
		Samples: []models.Sample{{Timestamp: "2025-08-13T08:00:00", Value: 1}}}
	_, err := store.WriteSeries(sr)
	require.NoError(t, err)

	sr.Samples[0].Value = 2
	_, err = store.WriteSeries(sr)
	require.NoError(t, err)

	got, err := store.ReadSeries("S1")
	require.NoError(t, err)
	require.Len(t, got.Values, 1)
	assert.Equal(t, 2.0, got.Values[0])
}

func TestWriteCatalogue(t *testing.T) {
	store := newTestStore(t)

	cat := models.Catalogue{
		Generated: "2025-08-13T09:30:00",
		Sensors: map[string]models.CatalogueEntry{
			"S1": {Description: "Temp", Unit: "ºC", TipoDato: models.KindInstant, File: "S1.json"},
		},
	}

	require.NoError(t, store.WriteCatalogue(cat))

	data, err := os.ReadFile(store.IndexFile())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"generado": "2025-08-13T09:30:00"`)
	assert.Contains(t, string(data), `"archivo": "S1.json"`)
}

func TestReadSeriesMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.ReadSeries("missing")
	assert.Error(t, err)
}
