package series

import (
	"time"

	"github.com/bcnfacilities/sentiflow/internal/models"
)

// Assemble builds the published index from the run's series. Empty
// series are skipped; everything else gets one entry keyed by sensor id,
// pointing at the artifact file that run writes for it. The whole
// catalogue shares a single generation timestamp.
func Assemble(all []models.Series, now time.Time) models.Catalogue {
	cat := models.Catalogue{
		Generated: now.Format(isoTimeLayout),
		Sensors:   make(map[string]models.CatalogueEntry),
	}

	for _, s := range all {
		if s.Empty() {
			continue
		}
		cat.Sensors[s.SensorID] = models.CatalogueEntry{
			Description: s.Description,
			Unit:        s.Unit,
			TipoDato:    s.Kind,
			File:        ArtifactName(s.SensorID),
		}
	}

	return cat
}

// ArtifactName maps a sensor id to its artifact file name. The mapping
// is injective so repeated runs overwrite in place instead of leaving
// stale files behind.
func ArtifactName(sensorID string) string {
	return sensorID + ".json"
}
