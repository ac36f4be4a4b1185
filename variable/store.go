package variable

import (
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// file is the on-disk layout of a variables file
type file struct {
	Variables []Variable `yaml:"variables"`
}

// LoadFile reads a YAML variables file. Entries without a scope get
// the given one; entries without a type are strings.
func LoadFile(path string, scope Scope) ([]Variable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read variables file %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse variables file %s: %w", path, err)
	}

	for i := range f.Variables {
		if f.Variables[i].Name == "" {
			return nil, fmt.Errorf("variables file %s: entry %d has no name", path, i+1)
		}
		if f.Variables[i].Type == "" {
			f.Variables[i].Type = TypeString
		}
		if f.Variables[i].Scope == "" {
			f.Variables[i].Scope = scope
		}
	}
	return f.Variables, nil
}

// LoadDotenv reads a .env file as environment-scoped string variables,
// sorted by name
func LoadDotenv(path string) ([]Variable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read .env file %s: %w", path, err)
	}

	envMap, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse .env file %s: %w", path, err)
	}

	names := make([]string, 0, len(envMap))
	for name := range envMap {
		names = append(names, name)
	}
	sort.Strings(names)

	vars := make([]Variable, 0, len(names))
	for _, name := range names {
		v := String(name, envMap[name])
		v.Scope = ScopeEnvironment
		vars = append(vars, v)
	}
	return vars, nil
}

// Merge resolves names declared in several scopes: session beats project
// beats environment beats global, and among equal scopes the later list
// wins. Disabled variables never override. The result keeps the order in
// which names first appear.
func Merge(lists ...[]Variable) []Variable {
	var order []string
	chosen := make(map[string]Variable)

	for _, list := range lists {
		for _, v := range list {
			if v.Disabled {
				continue
			}
			cur, ok := chosen[v.Name]
			if !ok {
				order = append(order, v.Name)
				chosen[v.Name] = v
				continue
			}
			if v.Scope.Rank() >= cur.Scope.Rank() {
				chosen[v.Name] = v
			}
		}
	}

	out := make([]Variable, 0, len(order))
	for _, name := range order {
		out = append(out, chosen[name])
	}
	return out
}
