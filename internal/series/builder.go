package series

import (
	"sort"
	"time"

	"github.com/bcnfacilities/sentiflow/internal/models"
)

// sentiloTimeLayout is the timestamp format the Sentilo API delivers,
// e.g. "13/08/2025T07:45:01".
const sentiloTimeLayout = "02/01/2006T15:04:05"

const isoTimeLayout = "2006-01-02T15:04:05"

// Builder turns raw observations into normalized series.
type Builder struct {
	classifier *Classifier
}

// NewBuilder returns a Builder using the given classifier.
func NewBuilder(c *Classifier) *Builder {
	return &Builder{classifier: c}
}

// Build normalizes the raw observations of one sensor into a Series.
// Observations with an empty timestamp or payload, or whose payload
// yields no value, are dropped. The result is sorted ascending by
// timestamp regardless of delivery order; exact-duplicate timestamps
// collapse to the last value seen. An empty result is a valid Series.
func (b *Builder) Build(desc models.SensorDescriptor, observations []models.RawObservation) models.Series {
	kind := b.classifier.Classify(desc.ID, desc.Description)

	out := models.Series{
		SensorID:    desc.ID,
		Description: desc.Description,
		Unit:        desc.Unit,
		Kind:        kind,
	}

	for _, obs := range observations {
		if obs.Timestamp == "" || obs.Value == "" {
			continue
		}
		value, ok := Extract(kind, obs.Value)
		if !ok {
			continue
		}
		out.Samples = append(out.Samples, models.Sample{
			Timestamp: NormalizeTimestamp(obs.Timestamp),
			Value:     value,
		})
	}

	sort.SliceStable(out.Samples, func(i, j int) bool {
		return out.Samples[i].Timestamp < out.Samples[j].Timestamp
	})
	out.Samples = dedupe(out.Samples)

	return out
}

// dedupe collapses runs of equal timestamps, keeping the last sample of
// each run. Input must already be sorted.
func dedupe(samples []models.Sample) []models.Sample {
	if len(samples) < 2 {
		return samples
	}
	kept := samples[:0]
	for i, s := range samples {
		if i+1 < len(samples) && samples[i+1].Timestamp == s.Timestamp {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// NormalizeTimestamp converts a Sentilo timestamp to ISO-8601. Strings
// in any other shape pass through unchanged: timestamps are opaque sort
// keys downstream, not values the pipeline interprets.
func NormalizeTimestamp(ts string) string {
	t, err := time.Parse(sentiloTimeLayout, ts)
	if err != nil {
		return ts
	}
	return t.Format(isoTimeLayout)
}
