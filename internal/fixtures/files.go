package fixtures

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is static seed data for suites that want fixed payloads.
type File struct {
	Users    []User        `yaml:"users"`
	Projects []ProjectSeed `yaml:"projects"`
}

// ProjectSeed describes a project with prompts to create.
type ProjectSeed struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Prompts     []PromptSeed `yaml:"prompts"`
}

// PromptSeed describes a prompt and its version history, oldest first.
type PromptSeed struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Visibility  string            `yaml:"visibility"`
	Versions    []string          `yaml:"versions"`
	Publish     bool              `yaml:"publish"`
	Variables   map[string]string `yaml:"variables"`
}

// LoadFixtureFile reads a YAML fixture file. Unknown keys are rejected.
func LoadFixtureFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture file: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes YAML fixture data.
func ParseFixtures(data []byte) (*File, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var file File
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for i, project := range file.Projects {
		if project.Name == "" {
			return nil, fmt.Errorf("projects[%d]: name is required", i)
		}
		for j, prompt := range project.Prompts {
			if prompt.Name == "" {
				return nil, fmt.Errorf("projects[%d].prompts[%d]: name is required", i, j)
			}
			if prompt.Publish && len(prompt.Versions) == 0 {
				return nil, fmt.Errorf("projects[%d].prompts[%d]: publish requires at least one version", i, j)
			}
		}
	}
	return &file, nil
}
