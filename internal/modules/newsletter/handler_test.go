package newsletter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/casaflora/tienda-core/internal/config"
	"github.com/casaflora/tienda-core/internal/dispatcher"
	"github.com/casaflora/tienda-core/internal/middleware"
	"github.com/casaflora/tienda-core/internal/pkg/mail"
	redisc "github.com/casaflora/tienda-core/internal/pkg/redis"
	"github.com/casaflora/tienda-core/internal/pkg/taskqueue"
	"github.com/casaflora/tienda-core/internal/registry"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAdminToken = "token-de-prueba"

type recordingChannel struct {
	mu   sync.Mutex
	sent []mail.Message
	fail error
}

func (r *recordingChannel) Send(msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.fail
}

func (r *recordingChannel) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type testEnv struct {
	router  *gin.Engine
	channel *recordingChannel
	tasks   *taskqueue.Service
	svc     *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := registry.New(filepath.Join(t.TempDir(), "subscribers.json"))

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

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	tasks := taskqueue.NewService(redisc.NewFromRaw(rdb), zap.NewNop())

	svc := NewService(reg, disp, tasks, nil, zap.NewNop())
	svc.RegisterTasks()

	router := gin.New()
	NewHandler(svc, zap.NewNop()).RegisterRoutes(&router.RouterGroup, middleware.Auth(testAdminToken))

	return &testEnv{router: router, channel: ch, tasks: tasks, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestSubscribeAndListAndUnsubscribe(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/subscribe", gin.H{"email": "a@b.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["message"])

	w = env.do(t, http.MethodGet, "/subscribe", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.EqualValues(t, 1, body["total"])
	subs := body["subscribers"].([]interface{})
	require.Len(t, subs, 1)
	first := subs[0].(map[string]interface{})
	assert.Equal(t, "a@b.com", first["email"])
	assert.Equal(t, "newsletter", first["source"])
	assert.NotEmpty(t, first["subscribedAt"])

	w = env.do(t, http.MethodDelete, "/newsletter", gin.H{"email": "a@b.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["success"])

	w = env.do(t, http.MethodGet, "/subscribe", nil, "")
	body = decodeBody(t, w)
	assert.EqualValues(t, 0, body["total"])
	assert.Empty(t, body["subscribers"])
}

func TestSubscribe_Duplicate(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/subscribe", gin.H{"email": "a@b.com"}, "")
	w := env.do(t, http.MethodPost, "/subscribe", gin.H{"email": " A@B.com "}, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["alreadySubscribed"])
	assert.NotContains(t, body, "success")
}

func TestSubscribe_Validation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/subscribe", gin.H{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/subscribe", gin.H{"email": "not-an-email"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decodeBody(t, w)["error"])

	w = env.do(t, http.MethodPost, "/subscribe", gin.H{"email": "a@b.com", "source": "robots"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/subscribe", nil, "")
	assert.EqualValues(t, 0, decodeBody(t, w)["total"])
}

func TestSubscribe_QueuesWelcomeEmail(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/subscribe", gin.H{"email": "a@b.com"}, "")

	pending := taskqueue.TaskPending
	tasks, total, err := env.tasks.List(context.Background(), 1, 10, &pending)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskWelcomeEmail, tasks[0].Type)

	// nothing sent until the worker picks the task up
	assert.Equal(t, 0, env.channel.count())
}

func TestUnsubscribe_Errors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodDelete, "/newsletter", gin.H{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/newsletter", gin.H{"email": "nadie@example.com"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, decodeBody(t, w)["error"])
}

func TestSendSimple(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		env.do(t, http.MethodPost, "/subscribe", gin.H{"email": fmt.Sprintf("s%d@example.com", i)}, "")
	}

	w := env.do(t, http.MethodPost, "/newsletter", gin.H{"subject": "Hola", "content": "<p>Novedades</p>"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 3, body["recipients"])
	assert.Equal(t, 1, env.channel.count())
}

func TestSendSimple_TestEmailOnly(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/subscribe", gin.H{"email": "s@example.com"}, "")

	w := env.do(t, http.MethodPost, "/newsletter",
		gin.H{"subject": "Hola", "content": "x", "testEmail": "qa@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["recipients"])

	require.Equal(t, 1, env.channel.count())
	env.channel.mu.Lock()
	defer env.channel.mu.Unlock()
	assert.Equal(t, []string{"qa@example.com"}, env.channel.sent[0].To)
}

func TestSendSimple_Validation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/newsletter", gin.H{"subject": "Hola"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/newsletter", gin.H{"content": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendAudited_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/newsletter/send", gin.H{"subject": "x", "content": "y"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "No autorizado", decodeBody(t, w)["error"])

	w = env.do(t, http.MethodPost, "/newsletter/send", gin.H{"subject": "x", "content": "y"}, "token-falso")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSendAudited_NoActiveSubscribers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/newsletter/send", gin.H{"subject": "x", "content": "y"}, testAdminToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No hay suscriptores activos", decodeBody(t, w)["error"])
}

func TestExportCSV_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/subscribe/export", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	env.do(t, http.MethodPost, "/subscribe", gin.H{"email": "a@b.com"}, "")
	w = env.do(t, http.MethodGet, "/subscribe/export", nil, testAdminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "a@b.com")
}
