// Package sheet loads the sensor definition sheet: one row per sensor
// with its id, display metadata and routing (provider + token env var).
// The sheet is maintained by facilities staff as a CSV export.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bcnfacilities/sentiflow/internal/models"
)

// ErrMissingIDColumn is the one fatal sheet error: without the sensor_id
// column no row can be processed at all.
var ErrMissingIDColumn = errors.New("sheet is missing the sensor_id column")

// Defaults fill in routing for rows that leave provider or token blank.
type Defaults struct {
	Provider string
	TokenEnv string
}

// Load reads sensor descriptors from the CSV file at path.
func Load(path string, defaults Defaults) ([]models.SensorDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sensor sheet: %w", err)
	}
	defer f.Close()

	return Parse(f, defaults)
}

// Parse reads sensor descriptors from CSV data. Header names are matched
// case-insensitively after trimming. Optional columns (descripcion,
// unidad, provider_id, token_env) may be absent entirely; rows with an
// empty sensor_id are skipped. A row with neither provider nor token is
// a calculated sensor: it is never fetched, only derived.
func Parse(r io.Reader, defaults Defaults) ([]models.SensorDescriptor, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrMissingIDColumn
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	idCol, ok := cols["sensor_id"]
	if !ok {
		return nil, fmt.Errorf("%w: columns %v", ErrMissingIDColumn, header)
	}

	descCol, hasDesc := cols["descripcion"]
	unitCol, hasUnit := cols["unidad"]
	if !hasUnit {
		unitCol, hasUnit = cols["unitat de mesura"]
	}
	providerCol, hasProvider := cols["provider_id"]
	tokenCol, hasToken := cols["token_env"]

	var out []models.SensorDescriptor
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet row: %w", err)
		}

		id := field(record, idCol, true)
		if id == "" {
			continue
		}

		desc := models.SensorDescriptor{
			ID:          id,
			Description: id,
			Provider:    defaults.Provider,
			TokenEnv:    defaults.TokenEnv,
		}

		if hasDesc {
			if v := field(record, descCol, false); v != "" {
				desc.Description = v
			}
		}
		if hasUnit {
			desc.Unit = field(record, unitCol, false)
		}

		provider, token := "", ""
		if hasProvider {
			provider = field(record, providerCol, true)
		}
		if hasToken {
			token = field(record, tokenCol, true)
		}

		// Calculated rows are only recognizable when the sheet carries
		// both routing columns and leaves both blank.
		if hasProvider && hasToken && provider == "" && token == "" {
			desc.Calculated = true
			desc.Provider = ""
			desc.TokenEnv = ""
		} else {
			if provider != "" {
				desc.Provider = provider
			}
			if token != "" {
				desc.TokenEnv = token
			}
		}

		out = append(out, desc)
	}

	return out, nil
}

// field extracts a trimmed cell; spreadsheet exports spell missing cells
// as empty strings or the literal "nan". Routing fields treat "nan" as
// empty, matching the exports seen in production.
func field(record []string, idx int, dropNaN bool) string {
	if idx >= len(record) {
		return ""
	}
	v := strings.TrimSpace(record[idx])
	if dropNaN && strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}
