package orders

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/casaflora/tienda-core/internal/config"
	"github.com/casaflora/tienda-core/internal/dispatcher"
	"github.com/casaflora/tienda-core/internal/middleware"
	"github.com/casaflora/tienda-core/internal/pkg/mail"
	"github.com/casaflora/tienda-core/internal/registry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubChannel struct {
	sent   []mail.Message
	failOn map[int]error
}

func (s *stubChannel) Send(msg mail.Message) error {
	idx := len(s.sent)
	s.sent = append(s.sent, msg)
	if err, ok := s.failOn[idx]; ok {
		return err
	}
	return nil
}

func newOrderRouter(t *testing.T, ch *stubChannel) (*gin.Engine, *registry.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	storeCfg := config.DefaultStoreConfig()
	storeCfg.Store.BusinessEmail = "pedidos@casaflora.example"
	storeCfg.Mail.Enable = true
	storeCfg.Mail.From = "hola@casaflora.example"
	storeCfg.Mail.SMTP = &config.SMTPConfig{
		User:    "hola@casaflora.example",
		Pass:    "secret",
		Options: config.SMTPOptions{Host: "smtp.example", Port: 587},
	}

	disp := dispatcher.New(
		func() (*config.StoreConfig, error) { return &storeCfg, nil },
		zap.NewNop(),
		dispatcher.WithChannel(func(mail.Config) dispatcher.Channel { return ch }),
	)

	reg := registry.New(filepath.Join(t.TempDir(), "subscribers.json"))
	svc := NewService(disp, reg, nil, zap.NewNop())

	router := gin.New()
	NewHandler(svc, zap.NewNop()).RegisterRoutes(&router.RouterGroup, middleware.Auth("token-de-prueba"))
	return router, reg
}

func validOrderBody() gin.H {
	return gin.H{
		"orderNumber": "CF-1042",
		"shippingInfo": gin.H{
			"name":       "Marta López",
			"email":      "marta@example.com",
			"phone":      "600123456",
			"address":    "Calle Sol 5",
			"city":       "Sevilla",
			"postalCode": "41001",
		},
		"items": []gin.H{
			{"productId": "p-1", "name": "Jarrón artesanal", "quantity": 1, "unitPrice": 34.90},
		},
		"subtotal":  34.90,
		"shipping":  4.95,
		"total":     39.85,
		"pdfBase64": base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake")),
	}
}

func postOrder(t *testing.T, router *gin.Engine, body gin.H) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/send-order", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNotify_SendsBothEmails(t *testing.T) {
	ch := &stubChannel{}
	router, _ := newOrderRouter(t, ch)

	w := postOrder(t, router, validOrderBody())
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])

	require.Len(t, ch.sent, 2)
	assert.Equal(t, []string{"pedidos@casaflora.example"}, ch.sent[0].To)
	assert.Equal(t, []string{"marta@example.com"}, ch.sent[1].To)
	require.Len(t, ch.sent[0].Attachments, 1)
	assert.Equal(t, "pedido-CF-1042.pdf", ch.sent[0].Attachments[0].Filename)
	assert.Equal(t, []byte("%PDF-1.4 fake"), ch.sent[0].Attachments[0].Data)
}

func TestNotify_PartialFailureReturnsDetails(t *testing.T) {
	ch := &stubChannel{failOn: map[int]error{1: errors.New("mailbox full")}}
	router, _ := newOrderRouter(t, ch)

	w := postOrder(t, router, validOrderBody())
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
	details := body["details"].(map[string]interface{})
	assert.Contains(t, details, "customer")
	assert.NotContains(t, details, "internal")

	// both sends were still attempted
	assert.Len(t, ch.sent, 2)
}

func TestNotify_Validation(t *testing.T) {
	ch := &stubChannel{}
	router, _ := newOrderRouter(t, ch)

	body := validOrderBody()
	delete(body, "orderNumber")
	w := postOrder(t, router, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = validOrderBody()
	body["items"] = []gin.H{}
	w = postOrder(t, router, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = validOrderBody()
	body["pdfBase64"] = "esto no es base64 !!!"
	w = postOrder(t, router, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, ch.sent)
}

func TestNotify_CheckoutSubscription(t *testing.T) {
	ch := &stubChannel{}
	router, reg := newOrderRouter(t, ch)

	body := validOrderBody()
	body["subscribeToNewsletter"] = true
	w := postOrder(t, router, body)
	require.Equal(t, http.StatusOK, w.Code)

	subs, err := reg.List()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "marta@example.com", subs[0].Email)
	assert.Equal(t, registry.SourceCheckout, subs[0].Source)
}

func TestListOrders_RequiresAuth(t *testing.T) {
	ch := &stubChannel{}
	router, _ := newOrderRouter(t, ch)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
