// Package catalog loads the product catalogue from YAML.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"digistore/internal/model"
	"digistore/internal/security"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

//go:embed products.yaml
var defaultCatalog []byte

type document struct {
	Products []model.Product `yaml:"products"`
}

// Catalog is an immutable, ordered set of products.
type Catalog struct {
	products []model.Product
	byID     map[string]int
}

// Load reads the catalogue at path, or the embedded default when path is empty.
func Load(path string, logger zerolog.Logger) (*Catalog, error) {
	logger = logger.With().Str("component", "catalog").Logger()

	data := defaultCatalog
	source := "embedded"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog: %w", err)
		}
		data = b
		source = path
	}

	c, err := Parse(data)
	if err != nil {
		logger.Error().Err(err).Str("source", source).Msg("invalid product catalog")
		return nil, err
	}

	logger.Info().Str("source", source).Int("products", c.Len()).Msg("product catalog loaded")
	return c, nil
}

// Parse decodes and validates a YAML catalogue. Every product must pass
// security.ValidateProduct and IDs must be unique.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(doc.Products) == 0 {
		return nil, fmt.Errorf("catalog has no products")
	}

	c := &Catalog{
		products: make([]model.Product, 0, len(doc.Products)),
		byID:     make(map[string]int, len(doc.Products)),
	}

	var problems []string
	for i, p := range doc.Products {
		if r := security.ValidateProduct(p); !r.IsValid {
			problems = append(problems, fmt.Sprintf("product %d (%q): %s", i, p.ID, strings.Join(r.Errors, ", ")))
			continue
		}
		if _, dup := c.byID[p.ID]; dup {
			problems = append(problems, fmt.Sprintf("product %d: duplicate id %q", i, p.ID))
			continue
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid catalog: %s", strings.Join(problems, "; "))
	}
	return c, nil
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// List returns every product in catalogue order.
func (c *Catalog) List(_ context.Context) ([]model.Product, error) {
	out := make([]model.Product, len(c.products))
	copy(out, c.products)
	return out, nil
}

// GetByID returns the product with id, or nil, nil when there is none.
func (c *Catalog) GetByID(_ context.Context, id string) (*model.Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return nil, nil
	}
	p := c.products[i]
	return &p, nil
}
