package provider

import "sort"

// Provider defines the interface for a transcription/LLM service provider
type Provider interface {
	Name() string
	RequiresAPIKey() bool
	ValidateAPIKey(key string) bool
	Models() []Model
	DefaultModel(t ModelType) string
}

var registry = make(map[string]Provider)

func init() {
	Register(&DeepgramProvider{})
	Register(&OpenAIProvider{})
	Register(&GroqProvider{})
	Register(&GeminiProvider{})
	Register(&MockProvider{})
}

// Register adds a provider to the registry
func Register(p Provider) {
	registry[p.Name()] = p
}

// GetProvider returns a provider by name, or nil if not found
func GetProvider(name string) Provider {
	return registry[name]
}

// ListProviders returns all registered provider names, sorted
func ListProviders() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListProvidersWithTranscription returns providers that offer at least one transcription model
func ListProvidersWithTranscription() []string {
	return listWith(Transcription)
}

// ListProvidersWithLLM returns providers that offer at least one LLM
func ListProvidersWithLLM() []string {
	return listWith(LLM)
}

func listWith(t ModelType) []string {
	var names []string
	for _, name := range ListProviders() {
		if len(ModelsOfType(registry[name], t)) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// ModelsOfType filters a provider's models by type
func ModelsOfType(p Provider, t ModelType) []Model {
	var out []Model
	for _, m := range p.Models() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// FindModel looks up a model by id on a provider
func FindModel(p Provider, id string) (Model, bool) {
	for _, m := range p.Models() {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// KeyUsable reports whether key is acceptable for the named provider.
// Providers that need no key always accept.
func KeyUsable(name, key string) bool {
	p := GetProvider(name)
	if p == nil {
		return false
	}
	if !p.RequiresAPIKey() {
		return true
	}
	return p.ValidateAPIKey(key)
}
