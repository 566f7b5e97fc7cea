package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "db.example.com",
		"port":     float64(5433),
		"database": "orders",
		"user":     "reader",
		"password": "secret",
		"sslmode":  "disable",
	})
	require.NoError(t, err)
	assert.Equal(t, "db.example.com", cfg.Host)
	assert.Equal(t, 5433, cfg.Port)
	assert.Equal(t, "orders", cfg.Database)
	assert.Equal(t, "reader", cfg.User)
	assert.Equal(t, "disable", cfg.SSLMode)
}

func TestFromMapDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "localhost",
		"database": "orders",
		"username": "reader",
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultPort(), cfg.Port)
	assert.Equal(t, "reader", cfg.User)
}

func TestFromMapMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
	}{
		{"missing host", map[string]any{"database": "orders", "user": "reader"}},
		{"missing database", map[string]any{"host": "localhost", "user": "reader"}},
		{"missing user", map[string]any{"host": "localhost", "database": "orders"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.config)
			assert.Error(t, err)
		})
	}
}

func TestBuildConnectionStringEscaping(t *testing.T) {
	connStr := buildConnectionString(&Config{
		Host:     "localhost",
		Port:     5432,
		Database: "orders",
		User:     "reader",
		Password: "p@ss:word",
	})
	assert.Contains(t, connStr, "p%40ss%3Aword")
	assert.Contains(t, connStr, "sslmode=require")
}

func TestQualifiedTableName(t *testing.T) {
	assert.Equal(t, `"public"."orders"`, qualifiedTableName("public", "orders"))
	assert.Equal(t, `"orders"`, qualifiedTableName("", "orders"))
	assert.Equal(t, `"public"."or""ders"`, qualifiedTableName("public", `or"ders`))
}
