package tprl

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/casualjim/conductor/pkg/slogx"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

func envStrOrDefault(key string, def string) string {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	return s
}

// NewClient creates a lazily connecting client for TEMPORAL_ADDRESS and
// TEMPORAL_NAMESPACE.
func NewClient() (client.Client, error) {
	lg := slog.Default().With(slogx.LoggerName("conductor.temporal"))

	cl, err := client.NewLazyClient(client.Options{
		HostPort:  envStrOrDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		Namespace: envStrOrDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		Logger:    log.NewStructuredLogger(lg),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}
	return cl, nil
}
