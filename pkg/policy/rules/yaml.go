package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlFile is the top-level shape of a policy YAML document.
type yamlFile struct {
	Policies []PolicyDef `yaml:"policies"`
}

// LoadFile reads and compiles policy definitions from a YAML file. The file
// holds a top-level "policies" list; each policy carries the same shape as
// the built-in definitions.
func LoadFile(path string) ([]*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %q: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and compiles policy definitions from YAML bytes.
func LoadBytes(data []byte) ([]*Policy, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("failed to parse policy YAML: %v", err)}
	}
	if len(file.Policies) == 0 {
		return nil, &ConfigError{Message: "policy file defines no policies"}
	}
	return CompileAll(file.Policies)
}
