package contexts

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chative-sales/server/internal/agent/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the static grounding text: policy lines first, then per-field hints.
type Catalog struct {
	Policy []string                 `yaml:"policy"`
	Hints  map[model.Field][]string `yaml:"hints"`
}

// LoadCatalog reads the catalog at path, or the embedded one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Policy) == 0 {
		return nil, fmt.Errorf("catalog has no policy lines")
	}
	for f := range c.Hints {
		if f.Label() == "" {
			return nil, fmt.Errorf("catalog hints for unknown field %q", f)
		}
	}
	return &c, nil
}
