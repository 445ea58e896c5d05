package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Default(t *testing.T) {
	c, err := Load("", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 53, c.Len())

	p, err := c.GetByID(context.Background(), "51")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(5000), p.Price)
	assert.Equal(t, "Forex Trading", p.Category)
	assert.Equal(t, "products/51.zip", p.FileURL)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
products:
  - id: "x1"
    name: "Test Course"
    description: "A course"
    price: 2500
    category: "Testing"
`), 0o600))

	c, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), zerolog.Nop())
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			yaml:    "products: [",
			wantErr: "failed to parse catalog",
		},
		{
			name:    "empty",
			yaml:    "products: []",
			wantErr: "no products",
		},
		{
			name: "missing price",
			yaml: `
products:
  - id: "1"
    name: "A"
    description: "d"
    category: "c"
`,
			wantErr: "price is required",
		},
		{
			name: "price over limit",
			yaml: `
products:
  - id: "1"
    name: "A"
    description: "d"
    category: "c"
    price: 20000000
`,
			wantErr: "Amount exceeds maximum limit",
		},
		{
			name: "duplicate id",
			yaml: `
products:
  - {id: "1", name: "A", description: "d", category: "c", price: 100}
  - {id: "1", name: "B", description: "d", category: "c", price: 200}
`,
			wantErr: `duplicate id "1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCatalog_ListAndGet(t *testing.T) {
	c, err := Parse([]byte(`
products:
  - {id: "a", name: "A", description: "d", category: "c", price: 100}
  - {id: "b", name: "B", description: "d", category: "c", price: 200}
`))
	require.NoError(t, err)

	ctx := context.Background()
	all, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)

	all[0].Name = "mutated"
	again, _ := c.List(ctx)
	assert.Equal(t, "A", again[0].Name)

	missing, err := c.GetByID(ctx, "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
