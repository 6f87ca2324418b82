package config

import (
	"fmt"
	"os"

	"github.com/savannahlabs/edp/pkg/models"
)

// LoadRegistry reads and parses the entity registry file from the given
// path. Every entity config in the file is validated before use.
func LoadRegistry(filePath string) (*models.Registry, error) {
	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity registry '%s': %w", filePath, err)
	}

	registry, err := models.LoadRegistry(bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity registry '%s': %w", filePath, err)
	}

	return registry, nil
}
