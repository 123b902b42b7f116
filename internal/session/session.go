// Package session manages the durable, opaque identifier that correlates one
// installation's telemetry across restarts.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Ensure returns the session identifier, creating and persisting one when
// none exists. An explicit external identifier wins and is persisted in place
// of any previous one. The identifier is a ULID: time-ordered prefix plus
// random suffix, unique enough for correlation, not a secret.
func Ensure(path, external string) (string, error) {
	if external != "" {
		if err := persist(path, external); err != nil {
			return "", err
		}
		return external, nil
	}

	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id := ulid.Make().String()
	if err := persist(path, id); err != nil {
		return "", err
	}
	return id, nil
}

func persist(path, id string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to persist session id: %w", err)
	}
	return nil
}
