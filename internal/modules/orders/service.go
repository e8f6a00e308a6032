package orders

import (
	"context"
	"time"

	"github.com/casaflora/tienda-core/internal/dispatcher"
	"github.com/casaflora/tienda-core/internal/models"
	"github.com/casaflora/tienda-core/internal/pkg/mail"
	"github.com/casaflora/tienda-core/internal/registry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Input is one order-notification request after boundary validation.
type Input struct {
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	Phone         string
	Address       string
	City          string
	PostalCode    string
	Items         []models.OrderItem
	Subtotal      float64
	Shipping      float64
	Total         float64
	PDF           []byte
	Subscribe     bool
}

// Service sends order notifications and keeps the order audit trail.
type Service struct {
	disp   *dispatcher.Dispatcher
	reg    *registry.Registry
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(disp *dispatcher.Dispatcher, reg *registry.Registry, db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{disp: disp, reg: reg, db: db, logger: logger}
}

// Notify attempts both order emails and records the order. The dispatch
// outcome is reported per recipient; the audit write never fails the call.
func (s *Service) Notify(ctx context.Context, in Input) (dispatcher.OrderResult, error) {
	lines := make([]mail.OrderLine, len(in.Items))
	for i, item := range in.Items {
		lines[i] = mail.OrderLine{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	order := mail.OrderData{
		OrderNumber:   in.OrderNumber,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		Phone:         in.Phone,
		Address:       in.Address,
		City:          in.City,
		PostalCode:    in.PostalCode,
		Items:         lines,
		Subtotal:      in.Subtotal,
		Shipping:      in.Shipping,
		Total:         in.Total,
	}

	res, err := s.disp.SendOrderNotifications(order, in.PDF)
	if err != nil {
		return res, err
	}

	if in.Subscribe {
		s.subscribeCustomer(in.CustomerEmail)
	}
	s.record(in, res)
	return res, nil
}

func (s *Service) subscribeCustomer(email string) {
	if s.reg == nil || email == "" {
		return
	}
	if _, err := s.reg.Add(email, registry.SourceCheckout); err != nil {
		s.logger.Warn("checkout subscription failed", zap.String("email", email), zap.Error(err))
	}
}

func (s *Service) record(in Input, res dispatcher.OrderResult) {
	if s.db == nil {
		return
	}

	record := models.OrderModel{
		OrderNumber:   in.OrderNumber,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		Address:       in.Address,
		City:          in.City,
		PostalCode:    in.PostalCode,
		Phone:         in.Phone,
		Items:         in.Items,
		Subtotal:      in.Subtotal,
		Shipping:      in.Shipping,
		Total:         in.Total,
		NotifiedAt:    time.Now(),
		InternalSent:  res.InternalErr == nil,
		CustomerSent:  res.CustomerErr == nil,
	}
	if err := s.db.Create(&record).Error; err != nil {
		s.logger.Error("order audit record failed",
			zap.String("order", in.OrderNumber),
			zap.Error(err),
		)
	}
}

// List returns recorded orders, newest first.
func (s *Service) List() ([]models.OrderModel, error) {
	var records []models.OrderModel
	err := s.db.Order("created_at DESC").Find(&records).Error
	return records, err
}
