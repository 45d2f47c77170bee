package series

import (
	"errors"
	"fmt"
	"time"

	"github.com/bcnfacilities/sentiflow/internal/models"
)

// ErrMissingOperand is returned when a mandatory base series is absent
// from the cache handed to Derive.
var ErrMissingOperand = errors.New("missing mandatory base series")

// AlignmentPolicy controls how samples from independently polled series
// are matched up. Base series rarely share sub-minute timestamps, so
// keys are truncated before comparison.
type AlignmentPolicy struct {
	// Granularity is the truncation step for alignment keys.
	Granularity time.Duration
	// ZeroFillOptional substitutes 0 when an optional operand has no
	// sample at a key; when false the whole point is dropped instead.
	ZeroFillOptional bool
}

// DefaultAlignmentPolicy returns minute truncation with zero-fill.
func DefaultAlignmentPolicy() AlignmentPolicy {
	return AlignmentPolicy{Granularity: time.Minute, ZeroFillOptional: true}
}

// Engine computes calculated series from already-built base series.
type Engine struct {
	policy AlignmentPolicy
}

// NewEngine returns an Engine with the given policy; a zero granularity
// falls back to one minute.
func NewEngine(policy AlignmentPolicy) *Engine {
	if policy.Granularity <= 0 {
		policy.Granularity = time.Minute
	}
	return &Engine{policy: policy}
}

// Derive evaluates one DerivedSpec against a read-only cache of base
// series. Points are emitted for every key present in all mandatory
// operands; the output keeps the first mandatory operand's original
// timestamps. An empty intersection yields an empty Series, which is a
// normal outcome, not an error. Only a mandatory operand missing from
// the cache entirely is an error.
func (e *Engine) Derive(spec models.DerivedSpec, base map[string]models.Series) (models.Series, error) {
	out := models.Series{
		SensorID:    spec.SensorID,
		Description: spec.Description,
		Unit:        spec.Unit,
		Kind:        models.KindInterval,
	}

	var anchor *models.Series
	type lookup struct {
		op    models.Operand
		byKey map[string]float64
	}
	lookups := make([]lookup, 0, len(spec.Operands))

	for _, op := range spec.Operands {
		s, ok := base[op.SensorID]
		if !ok && !op.Optional {
			return out, fmt.Errorf("%w: %s needs %s", ErrMissingOperand, spec.SensorID, op.SensorID)
		}

		l := lookup{op: op}
		if ok {
			l.byKey = make(map[string]float64, len(s.Samples))
			for _, sample := range s.Samples {
				l.byKey[e.alignKey(sample.Timestamp)] = sample.Value
			}
		}
		lookups = append(lookups, l)

		// The first mandatory operand anchors the output time axis.
		if anchor == nil && !op.Optional {
			anchorSeries := s
			anchor = &anchorSeries
		}
	}

	if anchor == nil {
		// All operands optional: nothing anchors the time axis.
		return out, nil
	}

	for _, sample := range anchor.Samples {
		key := e.alignKey(sample.Timestamp)

		total := 0.0
		usable := true
		for _, l := range lookups {
			v, ok := 0.0, false
			if l.byKey != nil {
				v, ok = l.byKey[key]
			}
			if !ok {
				if !l.op.Optional {
					usable = false
					break
				}
				if !e.policy.ZeroFillOptional {
					usable = false
					break
				}
				v = 0
			}
			sign := l.op.Sign
			if sign == 0 {
				sign = 1
			}
			total += sign * v
		}
		if !usable {
			continue
		}

		out.Samples = append(out.Samples, models.Sample{
			Timestamp: sample.Timestamp,
			Value:     total,
		})
	}

	return out, nil
}

// alignKey truncates an ISO timestamp to the policy granularity.
// Unparseable timestamps stay as-is, so two opaque keys still align when
// the source emitted identical strings.
func (e *Engine) alignKey(ts string) string {
	t, err := time.Parse(isoTimeLayout, ts)
	if err != nil {
		return ts
	}
	return t.Truncate(e.policy.Granularity).Format(isoTimeLayout)
}
