package output

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format renders data as JSON.
func (f *JSONFormatter) Format(data any, _ Table) (string, error) {
	if data == nil {
		return "", nil
	}

	var (
		out []byte
		err error
	)

	if f.Indent {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		return "", err
	}

	return string(out), nil
}

// YAMLFormatter renders results as YAML. Values without yaml tags are
// round-tripped through JSON so field names match the JSON output.
type YAMLFormatter struct{}

// Format renders data as YAML.
func (f *YAMLFormatter) Format(data any, _ Table) (string, error) {
	if data == nil {
		return "", nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}

	out, err := yaml.Marshal(generic)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
