package db

import (
	"testing"

	"marketplace-ledger/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestDialect(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Host = "db"
	cfg.Database.Port = "5432"
	cfg.Database.DBNAME = "marketplace"

	for _, typ := range []string{"postgres", "mysql", "sqlite"} {
		cfg.Database.Type = typ
		d, err := Dialect(cfg)
		require.NoError(t, err, typ)
		require.Equal(t, typ, d.Name())
	}

	cfg.Database.Type = "oracle"
	_, err := Dialect(cfg)
	require.Error(t, err)
}
