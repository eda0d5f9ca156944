// Package curriculumfile loads curriculum overrides from a YAML file.
//
// The file replaces whole (path, belt) rows of the built-in table:
//
//	paths:
//	  roblox:
//	    green: [10, 10, 12]
//	    blue: [8, 8]
//
// Each list holds the lesson count of every level of that belt, in order.
package curriculumfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
)

// ErrInvalidFile is returned for an override file that cannot be applied.
var ErrInvalidFile = errors.New("curriculumfile: invalid file")

type document struct {
	Paths map[string]map[string][]int `yaml:"paths"`
}

// Parse decodes override rows. Unknown top-level keys, paths and belts are rejected.
func Parse(data []byte) (progression.Rows, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return progression.Rows{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	rows := make(progression.Rows, len(doc.Paths))
	for pathName, belts := range doc.Paths {
		path, err := progression.ParsePath(pathName)
		if err != nil || pathName == "" {
			return nil, fmt.Errorf("%w: path %q", ErrInvalidFile, pathName)
		}

		rows[path] = make(map[progression.Belt][]int, len(belts))
		for beltName, levels := range belts {
			belt, err := progression.ParseBelt(beltName)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFile, path, err)
			}
			rows[path][belt] = levels
		}
	}

	return rows, nil
}

// Apply merges override rows into base and validates the result.
func Apply(base *progression.Curriculum, rows progression.Rows) (*progression.Curriculum, error) {
	if base == nil {
		base = progression.DefaultCurriculum()
	}
	if len(rows) == 0 {
		return base, nil
	}

	c, err := base.WithOverrides(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return c, nil
}

// Load reads the file at name and applies it to the built-in table.
// An empty name returns the built-in table unchanged.
func Load(name string) (*progression.Curriculum, error) {
	if name == "" {
		return progression.DefaultCurriculum(), nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("curriculumfile: read %s: %w", name, err)
	}

	rows, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return Apply(progression.DefaultCurriculum(), rows)
}

// Encode renders the rows of a curriculum in the override file format.
func Encode(c *progression.Curriculum) ([]byte, error) {
	doc := document{Paths: make(map[string]map[string][]int, len(progression.Paths))}
	for _, path := range progression.Paths {
		rows := c.Rows(path)
		if len(rows) == 0 {
			continue
		}
		belts := make(map[string][]int, len(rows))
		for belt, levels := range rows {
			belts[belt.String()] = levels
		}
		doc.Paths[path.String()] = belts
	}
	return yaml.Marshal(doc)
}
