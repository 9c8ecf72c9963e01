package metadata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CategoryShip is the static data category of every ship hull
const CategoryShip int64 = 6

// Policy decides which types are kept assembled, and therefore never
// unpacked when computing assembled volume
type Policy struct {
	categories map[int64]struct{}
	groups     map[int64]struct{}
}

type policyFile struct {
	AssembledCategories []int64 `yaml:"assembled_categories"`
	AssembledGroups     []int64 `yaml:"assembled_groups"`
}

// DefaultPolicy keeps ships assembled
func DefaultPolicy() Policy {
	return NewPolicy([]int64{CategoryShip}, nil)
}

func NewPolicy(categories, groups []int64) Policy {
	p := Policy{
		categories: make(map[int64]struct{}, len(categories)),
		groups:     make(map[int64]struct{}, len(groups)),
	}
	for _, id := range categories {
		p.categories[id] = struct{}{}
	}
	for _, id := range groups {
		p.groups[id] = struct{}{}
	}
	return p
}

func (p Policy) KeepsAssembled(groupID, categoryID int64) bool {
	if _, ok := p.groups[groupID]; ok {
		return true
	}
	_, ok := p.categories[categoryID]
	return ok
}

// ParsePolicy decodes a YAML policy document
func ParsePolicy(data []byte) (Policy, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Policy{}, fmt.Errorf("failed to parse unpack policy: %w", err)
	}

	for _, id := range file.AssembledCategories {
		if id <= 0 {
			return Policy{}, fmt.Errorf("invalid category id %d in unpack policy", id)
		}
	}
	for _, id := range file.AssembledGroups {
		if id <= 0 {
			return Policy{}, fmt.Errorf("invalid group id %d in unpack policy", id)
		}
	}

	return NewPolicy(file.AssembledCategories, file.AssembledGroups), nil
}

// LoadPolicy reads the policy file at path, or returns the default policy
// when no path is configured
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read unpack policy: %w", err)
	}
	return ParsePolicy(data)
}
