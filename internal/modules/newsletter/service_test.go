package newsletter

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/casaflora/tienda-core/internal/config"
	"github.com/casaflora/tienda-core/internal/dispatcher"
	"github.com/casaflora/tienda-core/internal/pkg/mail"
	"github.com/casaflora/tienda-core/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
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

func newAuditService(t *testing.T, gdb *gorm.DB) (*Service, *recordingChannel) {
	t.Helper()
	reg := registry.New(filepath.Join(t.TempDir(), "subscribers.json"))
	for _, email := range []string{"uno@example.com", "dos@example.com"} {
		_, err := reg.Add(email, registry.SourceNewsletter)
		require.NoError(t, err)
	}

	storeCfg := config.DefaultStoreConfig()
	storeCfg.Mail.Enable = true
	storeCfg.Mail.From = "hola@casaflora.example"
	storeCfg.Mail.SMTP = &config.SMTPConfig{
		User:    "hola@casaflora.example",
		Pass:    "secret",
		Options: config.SMTPOptions{Host: "smtp.example", Port: 587},
	}

	ch := &recordingChannel{}
	disp := dispatcher.New(
		func() (*config.StoreConfig, error) { return &storeCfg, nil },
		zap.NewNop(),
		dispatcher.WithChannel(func(mail.Config) dispatcher.Channel { return ch }),
	)

	return NewService(reg, disp, nil, gdb, zap.NewNop()), ch
}

func TestSendAudited_WritesAuditRecord(t *testing.T) {
	gdb, mock := newMockDB(t)
	svc, ch := newAuditService(t, gdb)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `newsletters`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	count, err := svc.SendAudited("Rebajas de verano", "<p>Hola</p>", "hasta -50%")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, ch.count())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSent_NewestFirst(t *testing.T) {
	gdb, mock := newMockDB(t)
	svc, _ := newAuditService(t, gdb)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "subject", "sent_at", "recipient_count", "success"}).
		AddRow("id-2", "Segunda", now, 10, true).
		AddRow("id-1", "Primera", now.Add(-time.Hour), 8, true)
	mock.ExpectQuery("SELECT (.+) FROM `newsletters`(.+)ORDER BY sent_at DESC").
		WillReturnRows(rows)

	records, err := svc.ListSent()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Segunda", records[0].Subject)
	assert.Equal(t, "Primera", records[1].Subject)

	require.NoError(t, mock.ExpectationsWereMet())
}
