package knowledge

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/crashlens/crashlens/pkg/logger"
)

type catalogFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadFile reads a YAML rule catalog. Guards from the registry are
// attached by rule ID, so a user-supplied catalog that reuses a
// built-in ID keeps its guard.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule catalog: %w", err)
	}

	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rule catalog %s: %w", path, err)
	}

	catalog, err := NewCatalog(doc.Rules)
	if err != nil {
		return nil, fmt.Errorf("rule catalog %s: %w", path, err)
	}

	logger.Info("Rule catalog loaded",
		zap.String("path", path),
		zap.Int("rules", catalog.Len()),
	)

	return catalog, nil
}

// Load returns the catalog at path, or the built-in catalog when path
// is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return BuiltinCatalog()
	}
	return LoadFile(path)
}
