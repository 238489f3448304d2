package driven

// ConfigStore is a flat key-value view of the persisted configuration.
// Keys use dot notation ("llm.provider"). Typed getters return the zero
// value when a key is missing or holds another type.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	// GetFloat also accepts integer values.
	GetFloat(key string) float64
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// All returns a copy of every value keyed by path.
	All() map[string]any

	// Set stores and persists a single value.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path is the backing file, or a descriptive name for in-memory stores.
	Path() string
}
