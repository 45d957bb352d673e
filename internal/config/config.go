// ABOUTME: Pre-run variable/config loader — merges variable files and env overrides
// ABOUTME: into the workflow input map before the Scheduler's inputSchema validation runs

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/Masterminds/sprig/v3"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
	texttemplate "text/template"
)

// Loader assembles a run's input map from variable files and environment overrides, layered
// in the order they're supplied: later files/overrides win on key conflicts.
type Loader struct {
	baseDir string
}

// New creates a Loader resolving relative variable file paths against baseDir.
func New(baseDir string) *Loader {
	return &Loader{baseDir: baseDir}
}

// LoadFile loads one variable file (.yaml/.yml/.json/.toml/.env), decoding it into a plain
// map[string]interface{}.
func (l *Loader) LoadFile(path string) (map[string]interface{}, error) {
	if !filepath.IsAbs(path) && l.baseDir != "" {
		path = filepath.Join(l.baseDir, path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading variable file %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAML(content)
	case ".json":
		return decodeYAML(content) // encoding/json is a strict subset of YAML 1.2's flow style
	case ".toml":
		return decodeTOML(content)
	case ".env":
		return decodeEnv(content)
	default:
		return nil, fmt.Errorf("unrecognized variable file extension: %s", path)
	}
}

func decodeYAML(content []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parsing variable file: %w", err)
	}
	return normalize(raw)
}

func decodeTOML(content []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := toml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parsing TOML variable file: %w", err)
	}
	return normalize(raw)
}

func decodeEnv(content []byte) (map[string]interface{}, error) {
	pairs, err := gotenv.StrictParse(strings.NewReader(string(content)))
	if err != nil {
		return nil, fmt.Errorf("parsing .env variable file: %w", err)
	}
	out := make(map[string]interface{}, len(pairs))
	for k, v := range pairs {
		out[k] = v
	}
	return out, nil
}

// normalize decodes raw through mapstructure so that nested map[interface{}]interface{}
// values (a YAML v2 quirk some loaders still produce) come out as map[string]interface{}.
func normalize(raw map[string]interface{}) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := mapstructure.Decode(raw, &out); err != nil {
		return nil, fmt.Errorf("normalizing variable map: %w", err)
	}
	return out, nil
}

// Merge layers each variables map onto the previous one, later maps winning on conflicts.
func Merge(layers ...map[string]interface{}) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	for _, layer := range layers {
		if err := mergo.Merge(&out, layer, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging variable layers: %w", err)
		}
	}
	return out, nil
}

// ApplyEnvOverrides overlays any OS environment variable named in the given prefix map
// (external name -> variable key) onto vars.
func ApplyEnvOverrides(vars map[string]interface{}, envMapping map[string]string) {
	for envName, key := range envMapping {
		if v, ok := os.LookupEnv(envName); ok {
			vars[key] = v
		}
	}
}

// EvaluateScalars runs every string value in vars through a sprig-equipped text/template,
// with vars itself as the template data, supporting simple {{ env "X" }} / {{ now }} style
// expressions. This is a distinct, simpler surface from the core's §4.A mini-language.
func EvaluateScalars(vars map[string]interface{}) (map[string]interface{}, error) {
	funcs := sprig.TxtFuncMap()
	out := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		s, ok := v.(string)
		if !ok || !strings.Contains(s, "{{") {
			out[k] = v
			continue
		}
		tmpl, err := texttemplate.New(k).Funcs(funcs).Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parsing variable template %q: %w", k, err)
		}
		var b strings.Builder
		if err := tmpl.Execute(&b, vars); err != nil {
			return nil, fmt.Errorf("evaluating variable template %q: %w", k, err)
		}
		out[k] = b.String()
	}
	return out, nil
}
