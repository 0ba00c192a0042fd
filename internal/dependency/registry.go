// Package dependency declares, per deletable entity, which foreign references
// must be detached before the row goes away. The registry is versioned data
// rather than code so that a deployment with extra legacy tables can extend
// it without a rebuild.
package dependency

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
)

// SupportedVersion is the registry format this build understands.
const SupportedVersion = 1

//go:embed registry.yaml
var defaultRegistry []byte

// Entity names something that can be deleted.
type Entity string

// EntityActor is the actor account entity; record variants use their type name.
const EntityActor Entity = "actor"

// EntityFor maps a record variant to its registry entity.
func EntityFor(t models.RecordType) Entity { return Entity(t) }

// Action is how a reference is detached.
type Action string

const (
	ActionNullify  Action = "nullify"
	ActionReassign Action = "reassign"
	ActionCascade  Action = "cascade"
)

// Reference is one column pointing at a deleted entity.
type Reference struct {
	Table    string `yaml:"table"`
	Column   string `yaml:"column"`
	Action   Action `yaml:"action"`
	Optional bool   `yaml:"optional"`
}

func (r Reference) String() string {
	return r.Table + "." + r.Column
}

// Registry is the parsed reference list.
type Registry struct {
	Version  int                    `yaml:"version"`
	Entities map[Entity][]Reference `yaml:"entities"`
}

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Parse decodes and validates a registry document.
func Parse(data []byte) (*Registry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("dependency: registry is empty")
	}
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("dependency: decode registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Parse(defaultRegistry)
}

// Load reads the registry at path, or the embedded one when path is empty.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dependency: read %s: %w", path, err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("dependency: %s: %w", path, err)
	}
	return reg, nil
}

// Validate checks the version, entity names and every identifier. Table and
// column names are interpolated into SQL, so nothing outside the identifier
// grammar is accepted.
func (r *Registry) Validate() error {
	if r.Version != SupportedVersion {
		return fmt.Errorf("dependency: unsupported registry version %d", r.Version)
	}
	for entity, refs := range r.Entities {
		if !knownEntity(entity) {
			return fmt.Errorf("dependency: unknown entity %q", entity)
		}
		for i, ref := range refs {
			if !identifier.MatchString(ref.Table) || !identifier.MatchString(ref.Column) {
				return fmt.Errorf("dependency: %s[%d]: invalid identifier %q", entity, i, ref.String())
			}
			switch ref.Action {
			case ActionNullify, ActionCascade:
			case ActionReassign:
				if entity != EntityActor {
					return fmt.Errorf("dependency: %s[%d]: reassign only applies to actors", entity, i)
				}
			default:
				return fmt.Errorf("dependency: %s[%d]: unknown action %q", entity, i, ref.Action)
			}
		}
	}
	return nil
}

// References returns the references of entity in declaration order.
func (r *Registry) References(entity Entity) []Reference {
	return r.Entities[entity]
}

func knownEntity(entity Entity) bool {
	if entity == EntityActor {
		return true
	}
	for _, t := range models.RecordTypes {
		if Entity(t) == entity {
			return true
		}
	}
	return false
}
