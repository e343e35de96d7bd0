package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var envPlaceholder = regexp.MustCompile(`\$\{(\w+)\}`)

// Settings is one resolved provider entry from the registry YAML.
type Settings struct {
	Name             string
	BaseURL          string
	Model            string
	APIKey           string
	Type             string // openai (default) | anthropic
	IncludeReasoning bool
	ForceReasoning   bool
}

// Registry holds the provider entries declared in pyopencode.yaml.
type Registry struct {
	entries map[string]Settings
}

type settingsYAML struct {
	BaseURL          string `yaml:"PYOPENCODE_BASE_URL"`
	Model            string `yaml:"PYOPENCODE_MODEL"`
	APIKey           string `yaml:"PYOPENCODE_API_KEY"`
	IncludeReasoning bool   `yaml:"include_reasoning"`
	ForceReasoning   bool   `yaml:"force_reasoning"`
	Type             string `yaml:"type"`
}

type registryYAML struct {
	Providers map[string]settingsYAML `yaml:"providers"`
}

// LoadRegistry reads and validates a provider registry YAML. Decoding is
// strict: unknown keys fail instead of being dropped silently, so typos
// in provider entries surface immediately.
func LoadRegistry(path string) (*Registry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve provider config path: %w", err)
	}
	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("provider config not found: %s", abs)
		}
		return nil, fmt.Errorf("open provider config: %w", err)
	}
	defer f.Close()

	var raw registryYAML
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", abs, err)
	}
	if len(raw.Providers) == 0 {
		return nil, fmt.Errorf("%s must contain a non-empty 'providers:' mapping", abs)
	}

	reg := &Registry{entries: make(map[string]Settings, len(raw.Providers))}
	for name, entry := range raw.Providers {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return nil, fmt.Errorf("%s: provider name cannot be empty", abs)
		}
		s := Settings{
			Name:             key,
			BaseURL:          strings.TrimSpace(entry.BaseURL),
			Model:            strings.TrimSpace(entry.Model),
			APIKey:           strings.TrimSpace(entry.APIKey),
			Type:             strings.ToLower(strings.TrimSpace(entry.Type)),
			IncludeReasoning: entry.IncludeReasoning,
			ForceReasoning:   entry.ForceReasoning,
		}
		if s.BaseURL == "" || s.Model == "" || s.APIKey == "" {
			return nil, fmt.Errorf("providers.%s: PYOPENCODE_BASE_URL, PYOPENCODE_MODEL and PYOPENCODE_API_KEY are required", key)
		}
		switch s.Type {
		case "", "openai", "anthropic":
		default:
			return nil, fmt.Errorf("providers.%s: unsupported type %q (openai or anthropic)", key, s.Type)
		}
		expanded, err := expandPlaceholders(s.APIKey)
		if err != nil {
			return nil, err
		}
		s.APIKey = expanded
		reg.entries[key] = s
	}
	return reg, nil
}

// Get returns the settings for a named provider.
func (r *Registry) Get(name string) (Settings, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Settings{}, fmt.Errorf("missing provider name")
	}
	s, ok := r.entries[key]
	if !ok {
		return Settings{}, fmt.Errorf("unknown provider %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return s, nil
}

// Names returns the sorted provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the wire adapter for a settings entry.
func New(s Settings) Provider {
	if s.Type == "anthropic" {
		return NewAnthropic(s.Name, s.BaseURL, s.APIKey, s.Model)
	}
	return NewOpenAI(s.Name, s.BaseURL, s.APIKey, s.Model)
}

// expandPlaceholders substitutes ${VAR} references from the environment.
// An unset or empty variable is a fatal config error, not a silent empty
// key that would fail much later at the first LLM call.
func expandPlaceholders(s string) (string, error) {
	var missing string
	out := envPlaceholder.ReplaceAllStringFunc(s, func(m string) string {
		name := envPlaceholder.FindStringSubmatch(m)[1]
		val := os.Getenv(name)
		if val == "" && missing == "" {
			missing = name
		}
		return val
	})
	if missing != "" {
		return "", fmt.Errorf("API key placeholder '${%s}' not found in environment or is empty.", missing)
	}
	return out, nil
}
