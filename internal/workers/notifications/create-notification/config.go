// internal/workers/notifications/create-notification/config.go
package createnotification

import (
	"time"

	"teamhub-notifications/pkg/registry"
)

type Config struct {
	Timeout time.Duration
	// InputSchema validates job variables before anything is written. Empty
	// accepts every input.
	InputSchema map[string]interface{}
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		InputSchema: registry.BuiltIn().InputSchema(TaskType),
	}
}
