package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConnect_SQLiteInMemory(t *testing.T) {
	db, err := Connect(":memory:", zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, db.Exec("CREATE TABLE ping (id INTEGER PRIMARY KEY)").Error)
	require.NoError(t, db.Exec("INSERT INTO ping (id) VALUES (1)").Error)

	var count int64
	require.NoError(t, db.Raw("SELECT COUNT(*) FROM ping").Scan(&count).Error)
	require.EqualValues(t, 1, count)
}
