package series

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bcnfacilities/sentiflow/internal/models"
)

// sentiloPayload is the structured value Sentilo nests inside each
// observation. Only the summary block matters here.
type sentiloPayload struct {
	Summary map[string]json.RawMessage `json:"summary"`
}

// Extract pulls one numeric sample out of a raw observation payload.
// Counter sensors need both firstvalue and lastvalue (result is the
// delta); instantaneous sensors need avg. The second return is false
// when the payload is unusable: malformed JSON, missing summary, missing
// or non-numeric fields, or a non-finite result. It never falls back
// from one rule to the other.
func Extract(kind models.Kind, rawPayload string) (float64, bool) {
	var payload sentiloPayload
	if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
		return 0, false
	}
	if payload.Summary == nil {
		return 0, false
	}

	var v float64
	switch kind {
	case models.KindInterval:
		first, okFirst := summaryFloat(payload.Summary, "firstvalue")
		last, okLast := summaryFloat(payload.Summary, "lastvalue")
		if !okFirst || !okLast {
			return 0, false
		}
		v = last - first
	default:
		avg, ok := summaryFloat(payload.Summary, "avg")
		if !ok {
			return 0, false
		}
		v = avg
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// summaryFloat coerces a summary field to float64. Sentilo emits numbers
// both bare and quoted depending on the provider.
func summaryFloat(summary map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := summary[key]
	if !ok {
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
