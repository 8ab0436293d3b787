package config

import "os"

// GetRuntimePath resolves the runtime directory before the full config is
// parsed, so the .env file inside it can be loaded first.
func GetRuntimePath() string {
	path := os.Getenv("REVERIE_RUNTIME_PATH")
	if path == "" {
		path = ".reverie"
	}
	return path
}
