package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML file into the provided configuration struct.
// Unlike Load, file configs are not cached: callers own the reload policy.
// Fields absent from the file keep whatever values v already holds, so
// defaults can be set before the call.
func LoadFile[T any](path string, v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Join(ErrReadingConfigFile, err)
	}

	if err := yaml.Unmarshal(data, v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	return nil
}
