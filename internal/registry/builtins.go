package registry

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"toolforge/internal/primitive"
)

//go:embed builtins.yaml
var builtinManifest []byte

// builtinEntry mirrors one entry of builtins.yaml.
type builtinEntry struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description"`
	Category    string                `yaml:"category"`
	Tags        []string              `yaml:"tags"`
	Icon        string                `yaml:"icon"`
	TimeoutMs   int                   `yaml:"timeout_ms"`
	Schema      primitive.InputSchema `yaml:"schema"`
	Handler     string                `yaml:"handler"`
}

type builtinFile struct {
	Builtins []builtinEntry `yaml:"builtins"`
}

// SeedBuiltins inserts the seeded primitives on first start and mounts
// them. Existing built-ins are left untouched; they are immutable by
// design, so reseeding never overwrites operator state.
func (r *Registry) SeedBuiltins() error {
	var manifest builtinFile
	if err := yaml.Unmarshal(builtinManifest, &manifest); err != nil {
		return fmt.Errorf("corrupt builtin manifest: %w", err)
	}

	seeded := 0
	for _, entry := range manifest.Builtins {
		if _, err := r.store.GetByName(entry.Name); err == nil {
			continue
		}

		// Built-in handlers go through the same static gate as user
		// handlers; a failure here is a packaging bug, not user error.
		if _, err := r.validator.Validate(entry.Handler); err != nil {
			return fmt.Errorf("builtin %s failed validation: %w", entry.Name, err)
		}

		now := time.Now().UTC()
		p := &primitive.Primitive{
			ID:          uuid.NewString(),
			Name:        entry.Name,
			Description: entry.Description,
			Category:    entry.Category,
			Tags:        entry.Tags,
			Icon:        entry.Icon,
			InputSchema: entry.Schema,
			Handler:     entry.Handler,
			TimeoutMs:   primitive.ClampTimeout(entry.TimeoutMs),
			Sandboxed:   true,
			Enabled:     true,
			BuiltIn:     true,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := r.store.InsertPrimitive(p); err != nil {
			return fmt.Errorf("failed to seed builtin %s: %w", entry.Name, err)
		}
		r.cache.Put(p)
		seeded++
	}

	if seeded > 0 {
		r.notify()
		r.log.Info("builtin primitives seeded", zap.Int("count", seeded))
	}
	return nil
}
