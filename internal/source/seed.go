package source

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/invsync/internal/errors"
)

// SeedFile is the YAML layout accepted by DecodeSeed.
type SeedFile struct {
	Entities []SeedEntity `yaml:"entities"`
}

// SeedEntity is one entity in a seed file.
type SeedEntity struct {
	Kind   string         `yaml:"kind"`
	Key    []int64        `yaml:"key"`
	Fields map[string]any `yaml:"fields"`
}

// DecodeSeed reads entities from a YAML seed document. Every entity is
// validated; the first invalid one fails the whole file.
func DecodeSeed(r io.Reader) ([]Entity, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f SeedFile
	if err := dec.Decode(&f); err != nil {
		return nil, errors.New(fmt.Errorf("decode seed file: %w", err)).
			Component("source").
			Category(errors.CategoryFileParsing).
			Build()
	}

	out := make([]Entity, 0, len(f.Entities))
	for i, se := range f.Entities {
		e := Entity{Kind: se.Kind, Key: se.Key, Fields: se.Fields}
		if e.Fields == nil {
			e.Fields = map[string]any{}
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("seed entity %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}
