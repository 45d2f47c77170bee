package models

// Kind tells how a sensor's raw readings are condensed into one value
// per observation window.
type Kind string

const (
	// KindInterval marks counter-type sensors: the value for a window is
	// the delta between the first and last raw reading in that window.
	KindInterval Kind = "consumo_intervalo"

	// KindInstant marks averaged sensors: the value for a window is the
	// mean of the raw readings in that window.
	KindInstant Kind = "instantaneo"
)

// SensorDescriptor identifies one sensor as declared in the definition
// sheet. Provider and TokenEnv are resolved once at load time so routing
// never depends on string comparisons later in the pipeline.
type SensorDescriptor struct {
	ID          string
	Description string
	Unit        string
	Provider    string
	TokenEnv    string
	// Calculated sensors have no provider and no token: they are not
	// fetched, they are derived from other series after the fetch pass.
	Calculated bool
}

// RawObservation is one sample as delivered by the Sentilo API. Both
// fields are opaque at this level; either may be empty or malformed.
type RawObservation struct {
	Timestamp string `json:"timestamp"`
	Value     string `json:"value"`
}

// Sample is one validated point: an ISO-8601(ish) sortable timestamp and
// a finite value. Samples are only ever created from parseable input.
type Sample struct {
	Timestamp string
	Value     float64
}

// Series is the normalized output for one sensor, ascending by timestamp.
// An empty Series is a valid value; it is simply never published.
type Series struct {
	SensorID    string
	Description string
	Unit        string
	Kind        Kind
	Samples     []Sample
}

// Empty reports whether the series holds no samples.
func (s Series) Empty() bool { return len(s.Samples) == 0 }

// Operand names one base series consumed by a derivation. Sign is +1 or
// -1. Optional operands contribute zero where they have no sample.
type Operand struct {
	SensorID string  `mapstructure:"sensor_id"`
	Sign     float64 `mapstructure:"sign"`
	Optional bool    `mapstructure:"optional"`
}

// DerivedSpec declares one calculated sensor: the signed sum of its
// operands, aligned on truncated timestamps.
type DerivedSpec struct {
	SensorID    string    `mapstructure:"sensor_id"`
	Description string    `mapstructure:"description"`
	Unit        string    `mapstructure:"unit"`
	Operands    []Operand `mapstructure:"operands"`
}

// SeriesArtifact is the on-disk JSON document for one series. Labels and
// values are parallel, index-aligned, ascending by time. The key names
// are the wire contract with the dashboard and must not change.
type SeriesArtifact struct {
	SensorID    string    `json:"sensor_id"`
	Description string    `json:"descripcion"`
	Unit        string    `json:"unidad"`
	TipoDato    Kind      `json:"tipo_dato"`
	Labels      []string  `json:"labels"`
	Values      []float64 `json:"values"`
}

// CatalogueEntry describes one published series in the index.
type CatalogueEntry struct {
	Description string `json:"descripcion"`
	Unit        string `json:"unidad"`
	TipoDato    Kind   `json:"tipo_dato"`
	File        string `json:"archivo"`
}

// Catalogue is the index the dashboard loads first: one entry per series
// that has at least one sample, stamped once at assembly time.
type Catalogue struct {
	Generated string                    `json:"generado"`
	Sensors   map[string]CatalogueEntry `json:"sensores"`
}
