package repository

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/gradestats/internal/domain/model"
)

type fixtureFile struct {
	Grades []model.ScoreRecord `yaml:"grades"`
}

// LoadFixture reads seed records from a YAML or JSON file. The file holds
// either a list of records or a mapping with a "grades" list.
func LoadFixture(path string) ([]model.ScoreRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes fixture bytes. See LoadFixture.
func ParseFixture(data []byte) ([]model.ScoreRecord, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	if len(node.Content) == 0 {
		return []model.ScoreRecord{}, nil
	}

	var records []model.ScoreRecord
	switch root := node.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
		}
	case yaml.MappingNode:
		var f fixtureFile
		if err := root.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
		}
		records = f.Grades
	default:
		return nil, fmt.Errorf("%w: expected a list or a grades mapping", ErrInvalidFixture)
	}

	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrInvalidFixture, i, err)
		}
	}
	if records == nil {
		records = []model.ScoreRecord{}
	}
	return records, nil
}
