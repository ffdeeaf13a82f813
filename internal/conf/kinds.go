package conf

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/migration"
)

// KindsFile is the layout of sync.kinds_file.
type KindsFile struct {
	Kinds []migration.KindOverride `yaml:"kinds"`
}

// LoadKindOverrides reads kind overrides from path. Unknown keys are
// rejected so that typos do not silently keep the built-in policy.
func LoadKindOverrides(path string) ([]migration.KindOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("kinds_file", path).
			Build()
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f KindsFile
	if err := dec.Decode(&f); err != nil {
		return nil, errors.New(fmt.Errorf("parse kinds file: %w", err)).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("kinds_file", path).
			Build()
	}
	return f.Kinds, nil
}

// ApplyKindsFile applies the overrides in s.Sync.KindsFile to reg. It is a
// no-op when no file is configured.
func (s *Settings) ApplyKindsFile(reg *migration.Registry) error {
	if s.Sync.KindsFile == "" {
		return nil
	}
	overrides, err := LoadKindOverrides(s.Sync.KindsFile)
	if err != nil {
		return err
	}
	for _, o := range overrides {
		if err := reg.Apply(o); err != nil {
			return fmt.Errorf("kinds file %s: %w", s.Sync.KindsFile, err)
		}
	}
	return nil
}
