package newsletter

import (
	"errors"
	"net/http"

	"github.com/casaflora/tienda-core/internal/pkg/response"
	"github.com/casaflora/tienda-core/internal/registry"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type subscribeBody struct {
	Email  string `json:"email"`
	Source string `json:"source"`
}

type unsubscribeBody struct {
	Email string `json:"email"`
}

type sendSimpleBody struct {
	Subject   string `json:"subject"`
	Content   string `json:"content"`
	TestEmail string `json:"testEmail"`
}

type sendAuditedBody struct {
	Subject     string `json:"subject"`
	Content     string `json:"content"`
	PreviewText string `json:"previewText"`
}

type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.POST("/subscribe", h.subscribe)
	rg.GET("/subscribe", h.list)
	rg.GET("/subscribe/export", authMW, h.exportCSV)

	rg.DELETE("/newsletter", h.unsubscribe)
	rg.POST("/newsletter", h.sendSimple)

	send := rg.Group("/newsletter/send", authMW)
	send.POST("", h.sendAudited)
	send.GET("", h.listSent)
}

func (h *Handler) subscribe(c *gin.Context) {
	var body subscribeBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" {
		response.BadRequest(c, "El correo electrónico es obligatorio")
		return
	}

	source, err := registry.ParseSource(body.Source)
	if err != nil {
		response.BadRequest(c, "Origen de suscripción no válido")
		return
	}

	res, err := h.svc.Subscribe(c.Request.Context(), body.Email, source)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidEmail) {
			response.BadRequest(c, "El correo electrónico no es válido")
			return
		}
		h.logger.Error("subscribe failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	if res.AlreadyExisted {
		c.JSON(http.StatusOK, gin.H{
			"message":           "Ya estás suscrito a nuestro boletín",
			"alreadySubscribed": true,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "¡Gracias por suscribirte! Revisa tu correo para tu código de descuento",
	})
}

func (h *Handler) list(c *gin.Context) {
	subs, err := h.svc.List()
	if err != nil {
		h.logger.Error("subscriber list failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if subs == nil {
		subs = []registry.Subscriber{}
	}
	c.JSON(http.StatusOK, gin.H{
		"total":       len(subs),
		"subscribers": subs,
	})
}

func (h *Handler) exportCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="suscriptores.csv"`)
	if err := h.svc.reg.ExportCSV(c.Writer); err != nil {
		h.logger.Error("subscriber export failed", zap.Error(err))
		response.InternalError(c)
	}
}

func (h *Handler) unsubscribe(c *gin.Context) {
	var body unsubscribeBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" {
		response.BadRequest(c, "El correo electrónico es obligatorio")
		return
	}

	if err := h.svc.Unsubscribe(body.Email); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			response.NotFoundMsg(c, "Este correo no está suscrito")
			return
		}
		h.logger.Error("unsubscribe failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Te has dado de baja del boletín",
	})
}

func (h *Handler) sendSimple(c *gin.Context) {
	var body sendSimpleBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Subject == "" || body.Content == "" {
		response.BadRequest(c, "El asunto y el contenido son obligatorios")
		return
	}

	count, err := h.svc.SendSimple(body.Subject, body.Content, body.TestEmail)
	if err != nil {
		if errors.Is(err, ErrNoSubscribers) {
			response.BadRequest(c, "No hay suscriptores activos")
			return
		}
		h.logger.Error("newsletter send failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Boletín enviado",
		"recipients": count,
	})
}

func (h *Handler) sendAudited(c *gin.Context) {
	var body sendAuditedBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Subject == "" || body.Content == "" {
		response.BadRequest(c, "El asunto y el contenido son obligatorios")
		return
	}

	count, err := h.svc.SendAudited(body.Subject, body.Content, body.PreviewText)
	if err != nil {
		if errors.Is(err, ErrNoSubscribers) {
			response.BadRequest(c, "No hay suscriptores activos")
			return
		}
		h.logger.Error("audited newsletter send failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Boletín enviado",
		"recipientCount": count,
	})
}

func (h *Handler) listSent(c *gin.Context) {
	records, err := h.svc.ListSent()
	if err != nil {
		h.logger.Error("newsletter audit list failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":       len(records),
		"newsletters": records,
	})
}
