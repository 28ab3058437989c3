// Package harvest drives the two-phase OAI-PMH harvest: gather enumerates
// identifiers and sets into durable work units, import fetches and
// normalizes each unit into the catalog. Units that fail transiently are
// parked in the retry ledger and picked up by a later job.
package harvest

import (
	"fmt"
	"time"

	"github.com/segmentio/encoding/json"
)

// Config is the per-source configuration blob. Unknown keys reject the
// whole configuration.
type Config struct {
	// DefaultExtras are merged into every record's metadata; they never
	// override a key the record already carries.
	DefaultExtras map[string]string `json:"default_extras"`
	// DefaultTags are appended to every record's subject list.
	DefaultTags []string `json:"default_tags"`
	// ForceAll disables the incremental time window and resyncs the
	// whole endpoint.
	ForceAll bool `json:"force_all"`
}

// ConfigError reports an invalid source configuration. Fatal at setup.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config: %s", e.Reason)
}

// ParseConfig parses and validates a source configuration blob. An empty
// blob is a valid empty configuration.
func ParseConfig(blob []byte) (Config, error) {
	var cfg Config
	if len(blob) == 0 {
		return cfg, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		return cfg, &ConfigError{Reason: err.Error()}
	}
	for key, value := range raw {
		switch key {
		case "default_extras":
			if err := json.Unmarshal(value, &cfg.DefaultExtras); err != nil {
				return Config{}, &ConfigError{Key: key, Reason: "must be a mapping of string to string"}
			}
		case "default_tags":
			if err := json.Unmarshal(value, &cfg.DefaultTags); err != nil {
				return Config{}, &ConfigError{Key: key, Reason: "must be a list of strings"}
			}
		case "force_all":
			if err := json.Unmarshal(value, &cfg.ForceAll); err != nil {
				return Config{}, &ConfigError{Key: key, Reason: "must be a boolean"}
			}
		default:
			return Config{}, &ConfigError{Key: key, Reason: "unknown parameter"}
		}
	}
	return cfg, nil
}

// Source is one remote endpoint plus its configuration. Immutable per run.
type Source struct {
	ID     string
	URL    string
	Config Config
}

// Job is one harvest execution against a source. The start time of the
// previous finished job becomes the lower window bound of the next one.
type Job struct {
	ID             string
	Source         Source
	Started        time.Time
	GatherFinished *time.Time
}
