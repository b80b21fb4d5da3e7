package config

// Defaults returns the built-in configuration defaults as a flat map suitable
// for the koanf confmap provider.
func Defaults() map[string]any {
	return map[string]any{
		"data_dir":     "data",
		"store_cities": []string{"rigby", "ririe", "rexburg"},
		"cache_ttl":    "15m",
		"port":         8080,
		"state_path":   ".storelens/state.db",
		"watch_data":   false,
		"output":       "table",
	}
}
