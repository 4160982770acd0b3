package config

import "os"

func IsDebug() bool {
	return os.Getenv("LINGUABOT_DEBUG") == "1"
}
