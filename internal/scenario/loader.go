package scenario

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/saaga0h/guardian-platform/internal/geo"
	"gopkg.in/yaml.v3"
)

// LoadScenario loads a scenario from a YAML file. A relative routes_file is
// resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	return load(data, filepath.Dir(path))
}

// LoadScenarioFromBytes loads a scenario from byte data. routes_file is
// resolved against the working directory.
func LoadScenarioFromBytes(data []byte) (*Scenario, error) {
	return load(data, ".")
}

func load(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}

	if err := ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}

	routes, err := loadRoutes(scenario.Setup, baseDir)
	if err != nil {
		return nil, err
	}
	scenario.Setup.routes = routes

	return &scenario, nil
}

func loadRoutes(setup SetupConfig, baseDir string) ([]geo.Route, error) {
	raw := []byte(setup.RoutesGeoJSON)
	if setup.RoutesFile != "" {
		path := setup.RoutesFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read routes file: %w", err)
		}
		raw = data
	}
	if len(raw) == 0 {
		return nil, nil
	}

	routes, err := geo.DecodeGeoJSONRoutes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode normal routes: %w", err)
	}
	return routes, nil
}
