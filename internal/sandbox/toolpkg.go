package sandbox

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/traefik/yaegi/interp"
	"go.uber.org/zap"

	"toolforge/internal/store"
)

// capabilityExports builds the injected "tool" package for one
// invocation: the validated input, a data-access handle scoped to the
// invoked primitive, and a small read-only utility library. This is the
// entire capability surface a handler sees; there is no filesystem, no
// process control, and no way to load further code.
func capabilityExports(st *store.Store, primitiveID string, input map[string]any, log *zap.Logger) interp.Exports {
	return interp.Exports{
		"tool/tool": {
			// Validated input, also passed as the Run argument.
			"Input": reflect.ValueOf(func() map[string]any { return input }),

			// Scoped data-access handle.
			"Get": reflect.ValueOf(func(key string) (string, bool) {
				value, found, err := st.DataGet(primitiveID, key)
				if err != nil {
					log.Warn("sandbox data get failed", zap.String("key", key), zap.Error(err))
					return "", false
				}
				return value, found
			}),
			"Set": reflect.ValueOf(func(key, value string) error {
				return st.DataSet(primitiveID, key, value)
			}),
			"Delete": reflect.ValueOf(func(key string) error {
				return st.DataDelete(primitiveID, key)
			}),
			"Keys": reflect.ValueOf(func() []string {
				keys, err := st.DataKeys(primitiveID)
				if err != nil {
					log.Warn("sandbox data keys failed", zap.Error(err))
					return nil
				}
				return keys
			}),

			// Utilities.
			"NewID": reflect.ValueOf(func() string { return uuid.NewString() }),
			"Now": reflect.ValueOf(func() string {
				return time.Now().UTC().Format(time.RFC3339)
			}),
			"FormatJSON": reflect.ValueOf(func(v any) string {
				b, err := json.MarshalIndent(v, "", "  ")
				if err != nil {
					return ""
				}
				return string(b)
			}),
		},
	}
}
