// Package seed loads standards frameworks and their objective hierarchies
// from YAML files into a tenant.
package seed

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidSeed is returned when a seed file fails validation
	ErrInvalidSeed = errors.New("seed: invalid seed file")

	// ErrSeedNotFound is returned when the seed file does not exist
	ErrSeedNotFound = errors.New("seed: file not found")
)

// File is the root of a standards seed document:
//
//	frameworks:
//	  - name: USMLE Step 1
//	    educational_area: medical_school
//	    official: true
//	    objectives:
//	      - code: "1"
//	        title: Cardiovascular
//	        children:
//	          - code: "1.1"
//	            title: Cardiac cycle
type File struct {
	Frameworks []FrameworkSpec `yaml:"frameworks"`
}

// FrameworkSpec describes one framework to create
type FrameworkSpec struct {
	Name            string          `yaml:"name"`
	EducationalArea string          `yaml:"educational_area"`
	Description     string          `yaml:"description"`
	Official        bool            `yaml:"official"`
	Objectives      []ObjectiveSpec `yaml:"objectives"`
}

// ObjectiveSpec is one objective; Children become its descendants
type ObjectiveSpec struct {
	Code        string          `yaml:"code"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Children    []ObjectiveSpec `yaml:"children"`
}

// LoadFromFile reads and validates a seed file
func LoadFromFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSeedNotFound, path)
		}
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses and validates seed YAML
func LoadFromBytes(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks required fields and that codes are unique per framework
func (f *File) Validate() error {
	if len(f.Frameworks) == 0 {
		return fmt.Errorf("%w: at least one framework is required", ErrInvalidSeed)
	}

	names := make(map[string]struct{}, len(f.Frameworks))
	for i, fw := range f.Frameworks {
		name := strings.TrimSpace(fw.Name)
		if name == "" {
			return fmt.Errorf("%w: frameworks[%d].name is required", ErrInvalidSeed, i)
		}
		if strings.TrimSpace(fw.EducationalArea) == "" {
			return fmt.Errorf("%w: framework %q: educational_area is required", ErrInvalidSeed, name)
		}
		key := frameworkKey(fw.EducationalArea, name)
		if _, dup := names[key]; dup {
			return fmt.Errorf("%w: duplicate framework %q in area %s", ErrInvalidSeed, name, fw.EducationalArea)
		}
		names[key] = struct{}{}

		codes := make(map[string]struct{})
		if err := validateObjectives(name, fw.Objectives, codes); err != nil {
			return err
		}
	}
	return nil
}

func validateObjectives(framework string, specs []ObjectiveSpec, codes map[string]struct{}) error {
	for _, o := range specs {
		code := strings.TrimSpace(o.Code)
		if code == "" {
			return fmt.Errorf("%w: framework %q: objective code is required", ErrInvalidSeed, framework)
		}
		if strings.TrimSpace(o.Title) == "" {
			return fmt.Errorf("%w: framework %q: objective %s: title is required", ErrInvalidSeed, framework, code)
		}
		if _, dup := codes[code]; dup {
			return fmt.Errorf("%w: framework %q: duplicate objective code %s", ErrInvalidSeed, framework, code)
		}
		codes[code] = struct{}{}
		if err := validateObjectives(framework, o.Children, codes); err != nil {
			return err
		}
	}
	return nil
}

// ObjectiveCount returns the number of objectives in the framework, nested ones included
func (s FrameworkSpec) ObjectiveCount() int {
	return countObjectives(s.Objectives)
}

func countObjectives(specs []ObjectiveSpec) int {
	n := len(specs)
	for _, o := range specs {
		n += countObjectives(o.Children)
	}
	return n
}

func frameworkKey(area, name string) string {
	return strings.ToLower(strings.TrimSpace(area)) + "\x00" + strings.ToLower(strings.TrimSpace(name))
}
