package envutil

import (
	"os"
	"strings"
)

// IsDev checks if we're running in development mode, where the broker falls
// back to a default state secret
func IsDev() bool {
	env := strings.ToLower(os.Getenv("BROKER_ENV"))
	return env == "development" || env == "dev"
}
