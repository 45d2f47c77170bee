package series

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/bcnfacilities/sentiflow/internal/models"
)

// Classifier decides whether a sensor is a counter (energy) or an
// instantaneous measurement. The decision is sensor-level: identifier
// rules first, description keywords last.
type Classifier struct {
	counterPrefixes []string
	producerIDs     map[string]bool
}

// ClassifierConfig carries the identifier rules. Zero values fall back
// to the Avinyó building defaults.
type ClassifierConfig struct {
	CounterPrefixes []string `mapstructure:"counter_prefixes"`
	ProducerIDs     []string `mapstructure:"producer_ids"`
}

// DefaultClassifierConfig returns the rules used by the building's
// deployed sensor set.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		CounterPrefixes: []string{"0190_MV_", "0524_MV_"},
		ProducerIDs:     []string{"0524_MV_FVENERGIA"},
	}
}

// NewClassifier builds a Classifier from config, applying defaults for
// any rule set left empty.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	def := DefaultClassifierConfig()
	if len(cfg.CounterPrefixes) == 0 {
		cfg.CounterPrefixes = def.CounterPrefixes
	}
	if len(cfg.ProducerIDs) == 0 {
		cfg.ProducerIDs = def.ProducerIDs
	}

	producers := make(map[string]bool, len(cfg.ProducerIDs))
	for _, id := range cfg.ProducerIDs {
		producers[strings.ToUpper(strings.TrimSpace(id))] = true
	}

	prefixes := make([]string, 0, len(cfg.CounterPrefixes))
	for _, p := range cfg.CounterPrefixes {
		prefixes = append(prefixes, strings.ToUpper(strings.TrimSpace(p)))
	}

	return &Classifier{counterPrefixes: prefixes, producerIDs: producers}
}

// Classify returns the kind for a sensor. Identifier prefixes and the
// producer whitelist win over description content; an empty description
// simply never matches the keyword rule.
func (c *Classifier) Classify(sensorID, description string) models.Kind {
	sid := strings.ToUpper(strings.TrimSpace(sensorID))

	for _, prefix := range c.counterPrefixes {
		if strings.HasPrefix(sid, prefix) {
			return models.KindInterval
		}
	}
	if c.producerIDs[sid] {
		return models.KindInterval
	}

	desc := Fold(description)
	if strings.Contains(desc, "energia") || strings.Contains(desc, "energy") {
		return models.KindInterval
	}

	return models.KindInstant
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lower-cases a string and strips diacritics ("Energía" → "energia")
// so keyword matching is accent-insensitive.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return folded
}
