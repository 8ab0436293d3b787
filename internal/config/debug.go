package config

import "os"

func IsDebug() bool {
	return os.Getenv("REVERIE_DEBUG") == "1"
}
