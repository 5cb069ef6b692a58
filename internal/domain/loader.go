package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// gameFile is the on-disk game configuration. YAML and JSON share the
// same shape; unknown keys are rejected rather than silently ignored.
type gameFile struct {
	Name            string             `yaml:"name" json:"name"`
	Description     string             `yaml:"description" json:"description"`
	Items           []itemFile         `yaml:"items" json:"items"`
	AgentValues     map[string]float64 `yaml:"agent_values" json:"agent_values"`
	HumanValues     map[string]float64 `yaml:"human_values" json:"human_values"`
	DeadlineSeconds int                `yaml:"deadline_seconds" json:"deadline_seconds"`
	AllowPartial    *bool              `yaml:"allow_partial" json:"allow_partial"`
	TickIntervalMS  int                `yaml:"tick_interval_ms" json:"tick_interval_ms"`
}

type itemFile struct {
	Name         string `yaml:"name" json:"name"`
	DisplayName  string `yaml:"display_name" json:"display_name"`
	SingularName string `yaml:"singular_name" json:"singular_name"`
	Quantity     int    `yaml:"quantity" json:"quantity"`
	Divisible    bool   `yaml:"divisible" json:"divisible"`
}

// LoadGame reads a game configuration from a YAML (.yaml/.yml) or JSON
// (.json) file and builds a validated GameSpec.
func LoadGame(path string) (*GameSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}

	var gf gameFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&gf); err != nil {
			return nil, fmt.Errorf("load game %s: %w", path, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&gf); err != nil {
			return nil, fmt.Errorf("load game %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("load game %s: unsupported extension (want .yaml, .yml or .json)", path)
	}

	return gf.toSpec()
}

func (gf gameFile) toSpec() (*GameSpec, error) {
	if gf.Name == "" {
		return nil, fmt.Errorf("game config: missing name")
	}
	issues := make([]Issue, len(gf.Items))
	for i, item := range gf.Items {
		issues[i] = Issue{
			Name:        item.Name,
			DisplayName: item.DisplayName,
			Quantity:    item.Quantity,
			Divisible:   item.Divisible,
		}
	}

	rules := DefaultRules()
	rules.DeadlineSeconds = gf.DeadlineSeconds
	if gf.AllowPartial != nil {
		rules.AllowPartial = *gf.AllowPartial
	}
	if gf.TickIntervalMS > 0 {
		rules.TimeTickIntervalMS = gf.TickIntervalMS
	}

	g, err := NewGameSpec(gf.Name, gf.Description, issues, gf.AgentValues, gf.HumanValues, rules)
	if err != nil {
		return nil, err
	}
	for _, item := range gf.Items {
		if item.SingularName != "" {
			g.SingularNames[item.Name] = item.SingularName
		}
	}
	return g, nil
}
