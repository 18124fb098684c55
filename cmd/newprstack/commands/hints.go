package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/engine"
)

// hintGroupsFile is the on-disk shape of a --hints YAML fixture: a plain
// list of caller-supplied starting groups, keyed the same way engine.HintGroup is.
type hintGroupsFile struct {
	Groups []struct {
		ID          string   `yaml:"id"`
		DisplayName string   `yaml:"display_name"`
		Type        string   `yaml:"type"`
		Description string   `yaml:"description"`
		Files       []string `yaml:"files"`
		Deps        []string `yaml:"deps"`
	} `yaml:"groups"`
}

// loadHintGroups reads a YAML fixture of caller-supplied starting groups.
// An empty path yields no hints, letting the Partitioner seed groups purely
// from affinity.
func loadHintGroups(path string) ([]engine.HintGroup, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hints file %s: %w", path, err)
	}

	var doc hintGroupsFile

	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse hints file %s: %w", path, err)
	}

	hints := make([]engine.HintGroup, 0, len(doc.Groups))

	for _, g := range doc.Groups {
		hints = append(hints, engine.HintGroup{
			ID:          g.ID,
			DisplayName: g.DisplayName,
			Type:        engine.GroupType(g.Type),
			Description: g.Description,
			Files:       g.Files,
			Deps:        g.Deps,
		})
	}

	return hints, nil
}

// declaredDepsFile is the on-disk shape of a --deps YAML fixture: explicit
// group-level ordering constraints supplied by the caller, independent of
// anything observed in the commit history.
type declaredDepsFile struct {
	Deps []struct {
		From string `yaml:"from"`
		To   string `yaml:"to"`
	} `yaml:"deps"`
}

// loadDeclaredDeps reads a YAML fixture of explicit group dependency edges.
func loadDeclaredDeps(path string) ([]engine.ConstraintEdge, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deps file %s: %w", path, err)
	}

	var doc declaredDepsFile

	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse deps file %s: %w", path, err)
	}

	edges := make([]engine.ConstraintEdge, 0, len(doc.Deps))

	for _, d := range doc.Deps {
		edges = append(edges, engine.ConstraintEdge{From: d.From, To: d.To, Kind: engine.Dependency})
	}

	return edges, nil
}
