package postprocessors

import (
	"sync"

	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/postprocessors/artifacts"
	"github.com/custodia-labs/docchat/internal/postprocessors/dedupe"
	"github.com/custodia-labs/docchat/internal/postprocessors/newlines"
)

// DefaultOrder is the order the built-in passes run in. Later passes assume
// the line structure produced by earlier ones.
var DefaultOrder = []string{newlines.Name, dedupe.Name, artifacts.Name}

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register(newlines.Name, func(map[string]any) (driven.PostProcessor, error) {
		return newlines.New(), nil
	})
	r.Register(dedupe.Name, func(map[string]any) (driven.PostProcessor, error) {
		return dedupe.New(), nil
	})
	r.Register(artifacts.Name, buildArtifacts)
}

// NewDefaultPipeline builds the built-in passes in DefaultOrder.
// cfg holds optional per-pass settings keyed by pass name.
func NewDefaultPipeline(cfg map[string]map[string]any) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)
	return r.BuildPipeline(DefaultOrder, cfg)
}

var defaultPipeline = sync.OnceValue(func() *Pipeline {
	p, err := NewDefaultPipeline(nil)
	if err != nil {
		panic(err)
	}
	return p
})

// Postprocess cleans text with the default pipeline.
func Postprocess(text string) string {
	return defaultPipeline().Process(text)
}

// buildArtifacts creates an artifacts processor from generic config.
// Supported config keys:
//   - patterns ([]string): extra end-of-line patterns to strip
func buildArtifacts(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []artifacts.Option
	if patterns := getStringSliceFromConfig(cfg, "patterns"); len(patterns) > 0 {
		opts = append(opts, artifacts.WithPatterns(patterns...))
	}
	return artifacts.New(opts...)
}

// getStringSliceFromConfig safely extracts a string slice from a generic config map.
// Handles []string and the []any produced by TOML/JSON parsing.
func getStringSliceFromConfig(cfg map[string]any, key string) []string {
	val, ok := cfg[key]
	if !ok {
		return nil
	}

	switch v := val.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}
