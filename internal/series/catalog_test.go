package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnfacilities/sentiflow/internal/models"
)

func TestAssemble(t *testing.T) {
	now := time.Date(2025, 8, 13, 9, 30, 0, 0, time.UTC)

	all := []models.Series{
		{
			SensorID:    "0190_MV_C1_ASB_ACTIVEE",
			Description: "Energia activa importada",
			Unit:        "kWh",
			Kind:        models.KindInterval,
			Samples:     []models.Sample{{Timestamp: "2025-08-13T07:45:00", Value: 10}},
		},
		{
			SensorID:    "0190_HV_S1_STPRO_TEMP",
			Description: "Temperatura planta 1",
			Unit:        "ºC",
			Kind:        models.KindInstant,
			Samples:     []models.Sample{{Timestamp: "2025-08-13T09:00:00", Value: 22.5}},
		},
		// Empty series must not be published.
		{SensorID: "0524_HV_IRRAD", Description: "Irradiancia", Kind: models.KindInstant},
	}

	cat := Assemble(all, now)

	assert.Equal(t, "2025-08-13T09:30:00", cat.Generated)
	require.Len(t, cat.Sensors, 2)
	assert.NotContains(t, cat.Sensors, "0524_HV_IRRAD")

	entry := cat.Sensors["0190_MV_C1_ASB_ACTIVEE"]
	assert.Equal(t, "Energia activa importada", entry.Description)
	assert.Equal(t, "kWh", entry.Unit)
	assert.Equal(t, models.KindInterval, entry.TipoDato)
	assert.Equal(t, "0190_MV_C1_ASB_ACTIVEE.json", entry.File)
}

func TestAssembleEmptyInput(t *testing.T) {
	cat := Assemble(nil, time.Now())
	assert.NotNil(t, cat.Sensors)
	assert.Empty(t, cat.Sensors)
}
