package config

import "os"

func IsDebug() bool {
	return os.Getenv("PACKRAT_DEBUG") == "1"
}
