package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
)

//go:embed presets.yaml
var builtinPresets []byte

type presetFile struct {
	Presets []domain.Preset `yaml:"presets"`
}

// Presets is an ordered set of named criteria
type Presets struct {
	list []domain.Preset
}

// LoadPresets returns the built-in presets, with entries from path added
// or replacing built-ins of the same name when path is set.
func LoadPresets(path string) (*Presets, error) {
	p, err := parsePresets(builtinPresets)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in presets: %w", err)
	}
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}
	override, err := parsePresets(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse presets file %s: %w", path, err)
	}
	for _, o := range override.list {
		p.put(o)
	}
	return p, nil
}

func parsePresets(data []byte) (*Presets, error) {
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	p := &Presets{}
	for _, preset := range f.Presets {
		if preset.Name == "" {
			return nil, fmt.Errorf("preset without a name")
		}
		p.put(preset)
	}
	return p, nil
}

func (p *Presets) put(preset domain.Preset) {
	preset.Name = strings.ToLower(strings.TrimSpace(preset.Name))
	for i := range p.list {
		if p.list[i].Name == preset.Name {
			p.list[i] = preset
			return
		}
	}
	p.list = append(p.list, preset)
}

// Get returns the criteria of a preset by name
func (p *Presets) Get(name string) (domain.FilterCriteria, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, preset := range p.list {
		if preset.Name == name {
			c := preset.Criteria
			c.Languages = append([]string(nil), c.Languages...)
			return c, nil
		}
	}
	return domain.FilterCriteria{}, apperrors.NewNotFoundError("preset " + name)
}

// List returns all presets in file order
func (p *Presets) List() []domain.Preset {
	return append([]domain.Preset(nil), p.list...)
}
