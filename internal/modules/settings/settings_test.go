package settings

import (
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/casaflora/tienda-core/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return gdb, mock
}

func storedConfigJSON(t *testing.T, mutate func(*config.StoreConfig)) string {
	t.Helper()
	cfg := config.DefaultStoreConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	return string(data)
}

func TestGet_LoadsStoredConfig(t *testing.T) {
	gdb, mock := newMockDB(t)
	svc := NewService(gdb)

	stored := storedConfigJSON(t, func(c *config.StoreConfig) {
		c.Store.Name = "Casa Flora Outlet"
		c.Newsletter.BatchSize = 25
	})
	mock.ExpectQuery("SELECT (.+) FROM `options`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "value"}).
			AddRow(1, "store_configs", stored))

	cfg, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, "Casa Flora Outlet", cfg.Store.Name)
	assert.Equal(t, 25, cfg.Newsletter.BatchSize)

	// second call served from cache, no further queries
	again, err := svc.Get()
	require.NoError(t, err)
	assert.Same(t, cfg, again)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_MissingRowFallsBackToDefaults(t *testing.T) {
	gdb, mock := newMockDB(t)
	svc := NewService(gdb)

	mock.ExpectQuery("SELECT (.+) FROM `options`").
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `options`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	cfg, err := svc.Get()
	require.NoError(t, err)
	defaults := config.DefaultStoreConfig()
	assert.Equal(t, defaults.Newsletter.BatchSize, cfg.Newsletter.BatchSize)
	assert.Equal(t, defaults.Newsletter.DiscountCode, cfg.Newsletter.DiscountCode)
}

func TestPatch_DeepMergesNestedKeys(t *testing.T) {
	gdb, mock := newMockDB(t)
	svc := NewService(gdb)

	stored := storedConfigJSON(t, func(c *config.StoreConfig) {
		c.Store.Name = "Casa Flora"
		c.Store.BusinessEmail = "pedidos@casaflora.example"
	})
	mock.ExpectQuery("SELECT (.+) FROM `options`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "value"}).
			AddRow(1, "store_configs", stored))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `options`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	updated, err := svc.Patch(map[string]json.RawMessage{
		"store": json.RawMessage(`{"web_url":"https://casaflora.example"}`),
	})
	require.NoError(t, err)

	// patched key applied, sibling keys preserved
	assert.Equal(t, "https://casaflora.example", updated.Store.WebURL)
	assert.Equal(t, "Casa Flora", updated.Store.Name)
	assert.Equal(t, "pedidos@casaflora.example", updated.Store.BusinessEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeepMergeJSON(t *testing.T) {
	old := map[string]interface{}{
		"a": map[string]interface{}{"x": 1.0, "y": 2.0},
		"b": []interface{}{1.0, 2.0},
	}
	incoming := map[string]interface{}{
		"a": map[string]interface{}{"y": 9.0},
		"b": []interface{}{3.0},
	}

	merged := deepMergeJSON(old, incoming).(map[string]interface{})
	a := merged["a"].(map[string]interface{})
	assert.Equal(t, 1.0, a["x"])
	assert.Equal(t, 9.0, a["y"])
	assert.Equal(t, []interface{}{3.0}, merged["b"])
}
