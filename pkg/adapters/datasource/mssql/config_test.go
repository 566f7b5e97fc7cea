package mssql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "sql.example.com",
		"port":     float64(14330),
		"database": "Orders",
		"username": "reader",
		"password": "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "sql.example.com", cfg.Host)
	assert.Equal(t, 14330, cfg.Port)
	assert.Equal(t, "Orders", cfg.Database)
	assert.True(t, cfg.Encrypt)
	assert.Equal(t, DefaultConnectionTimeout(), cfg.ConnectionTimeout)
}

func TestFromMapMissingFields(t *testing.T) {
	_, err := FromMap(map[string]any{"database": "Orders", "username": "reader"})
	assert.Error(t, err)

	_, err = FromMap(map[string]any{"host": "localhost", "username": "reader"})
	assert.Error(t, err)

	_, err = FromMap(map[string]any{"host": "localhost", "database": "Orders"})
	assert.Error(t, err)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "[orders]", quoteIdentifier("orders"))
	assert.Equal(t, "[or]]ders]", quoteIdentifier("or]ders"))
}

func TestMapSQLServerType(t *testing.T) {
	assert.Equal(t, "INTEGER", mapSQLServerType("int"))
	assert.Equal(t, "VARCHAR", mapSQLServerType("nvarchar"))
	assert.Equal(t, "UUID", mapSQLServerType("uniqueidentifier"))
	assert.Equal(t, "TIMESTAMP", mapSQLServerType("datetime2"))
	assert.Equal(t, "BOOLEAN", mapSQLServerType("bit"))
	assert.Equal(t, "GEOGRAPHY", mapSQLServerType("geography"))
}
