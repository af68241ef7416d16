// Package config holds the global controls every processing run reads
// (chunk size, delimiter override, strictness, default output path) and
// the JSON Schema validation of processing-context and mapping documents
// supplied by operators or the CLI.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tabmod/tabmod/pkg/log"
)

// Config is the global controls bag, loaded once at startup and read by
// the engine as processing.strict, processing.strict_per_slot,
// processing.output_path, processing.chunk_size, processing.csv_delimiter.
type Config struct {
	Language      string `json:"language"`
	Strict        bool   `json:"strict"`
	StrictPerSlot bool   `json:"strict_per_slot"`
	OutputPath    string `json:"output_path"`
	ChunkSize     int    `json:"chunk_size"`
	CSVDelimiter  string `json:"csv_delimiter"`
}

// Keys is the process-wide configuration singleton, mirroring the
// teacher's package-level config.Keys. It starts populated with
// production-sane defaults and is optionally overridden by Init.
var Keys = Config{
	Language:      "en",
	Strict:        false,
	StrictPerSlot: false,
	ChunkSize:     1000,
	CSVDelimiter:  "",
}

// Init loads and validates a JSON config file, merging it over the
// defaults in Keys. A missing file is not an error — the defaults stand.
func Init(flagConfigFile string) error {
	if flagConfigFile == "" {
		return nil
	}
	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", flagConfigFile, err)
	}

	if err := Validate(GlobalConfig, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("config: %s: %w", flagConfigFile, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		return fmt.Errorf("config: decode %s: %w", flagConfigFile, err)
	}

	log.Infof("config: loaded %s", flagConfigFile)
	return nil
}
