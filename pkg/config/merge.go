package config

// mergeCapabilities merges built-in and user-defined capability
// configurations. User-defined capabilities override built-ins with the
// same id.
func mergeCapabilities(builtinCaps map[string]CapabilityConfig, userCaps map[string]CapabilityConfig) map[string]*CapabilityConfig {
	result := make(map[string]*CapabilityConfig)

	for id, entry := range builtinCaps {
		c := entry
		result[id] = &c
	}

	for id, entry := range userCaps {
		c := entry
		result[id] = &c
	}

	return result
}

// mergeLLMProviders merges built-in and user-defined LLM provider
// configurations. User-defined providers override built-ins with the
// same name.
func mergeLLMProviders(builtinProviders map[string]LLMProviderConfig, userProviders map[string]LLMProviderConfig) map[string]*LLMProviderConfig {
	result := make(map[string]*LLMProviderConfig)

	for name, provider := range builtinProviders {
		p := provider
		result[name] = &p
	}

	for name, provider := range userProviders {
		p := provider
		result[name] = &p
	}

	return result
}
