package orders

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/casaflora/tienda-core/internal/models"
	"github.com/casaflora/tienda-core/internal/pkg/mail"
	"github.com/casaflora/tienda-core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type shippingInfo struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

type orderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type notifyBody struct {
	OrderNumber  string       `json:"orderNumber"`
	ShippingInfo shippingInfo `json:"shippingInfo"`
	Items        []orderItem  `json:"items"`
	Subtotal     float64      `json:"subtotal"`
	Shipping     float64      `json:"shipping"`
	Total        float64      `json:"total"`
	PDFBase64    string       `json:"pdfBase64"`
	Subscribe    bool         `json:"subscribeToNewsletter"`
}

type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.POST("/send-order", h.notify)
	rg.GET("/admin/orders", authMW, h.list)
}

func (h *Handler) notify(c *gin.Context) {
	var body notifyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "Cuerpo de la petición no válido")
		return
	}
	if body.OrderNumber == "" || body.ShippingInfo.Email == "" || len(body.Items) == 0 {
		response.BadRequest(c, "Faltan datos del pedido")
		return
	}

	var pdf []byte
	if body.PDFBase64 != "" {
		var err error
		pdf, err = base64.StdEncoding.DecodeString(body.PDFBase64)
		if err != nil {
			response.BadRequest(c, "El PDF adjunto no es válido")
			return
		}
	}

	items := make([]models.OrderItem, len(body.Items))
	for i, item := range body.Items {
		items[i] = models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	res, err := h.svc.Notify(c.Request.Context(), Input{
		OrderNumber:   body.OrderNumber,
		CustomerName:  body.ShippingInfo.Name,
		CustomerEmail: body.ShippingInfo.Email,
		Phone:         body.ShippingInfo.Phone,
		Address:       body.ShippingInfo.Address,
		City:          body.ShippingInfo.City,
		PostalCode:    body.ShippingInfo.PostalCode,
		Items:         items,
		Subtotal:      body.Subtotal,
		Shipping:      body.Shipping,
		Total:         body.Total,
		PDF:           pdf,
		Subscribe:     body.Subscribe,
	})
	if err != nil {
		if errors.Is(err, mail.ErrNotConfigured) {
			h.logger.Error("order notification not configured", zap.Error(err))
			response.InternalError(c)
			return
		}
		h.logger.Error("order notification failed", zap.String("order", body.OrderNumber), zap.Error(err))
		response.InternalError(c)
		return
	}
	if !res.Success() {
		response.InternalErrorDetails(c, "No se pudieron enviar todas las notificaciones del pedido", res.Details())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Notificaciones del pedido enviadas",
	})
}

func (h *Handler) list(c *gin.Context) {
	records, err := h.svc.List()
	if err != nil {
		h.logger.Error("order list failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":  len(records),
		"orders": records,
	})
}
