package servicekeys

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrProductionRestricted is returned when key generation is attempted outside development.
var ErrProductionRestricted = errors.New("api key generation is not allowed in production")

// GenerateAPIKey builds a throwaway key for local wiring. It is refused unless env is
// "development" or "test". Generated keys are not registered anywhere and must not be
// used as production credentials.
func GenerateAPIKey(env, serviceName string, now time.Time) (string, error) {
	switch env {
	case "development", "test":
	default:
		return "", ErrProductionRestricted
	}
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return "", errors.New("servicekeys: service name required")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%d-%s", serviceName, now.UnixMilli(), suffix), nil
}
