package dispatcher

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/casaflora/tienda-core/internal/config"
	"github.com/casaflora/tienda-core/internal/pkg/alert"
	"github.com/casaflora/tienda-core/internal/pkg/mail"
	"go.uber.org/zap"
)

// DefaultBatchSize bounds one delivery-channel call, matching the provider's
// rate limits.
const DefaultBatchSize = 50

// Channel is the external delivery channel for rendered messages.
// *mail.Sender implements it.
type Channel interface {
	Send(mail.Message) error
}

// SettingsFunc returns the current store settings on each dispatch.
type SettingsFunc func() (*config.StoreConfig, error)

// Dispatcher renders notification messages and hands them to the delivery
// channel. It owns no persistent state; every call is a pure transformation
// from (recipients, content) to delivery attempts.
type Dispatcher struct {
	settings SettingsFunc
	logger   *zap.Logger
	alerts   *alert.Service
	channel  func(mail.Config) Channel
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithAlerts enables ops push alerts on delivery failures.
func WithAlerts(a *alert.Service) Option {
	return func(d *Dispatcher) { d.alerts = a }
}

// WithChannel overrides the delivery-channel constructor (used by tests).
func WithChannel(fn func(mail.Config) Channel) Option {
	return func(d *Dispatcher) { d.channel = fn }
}

func New(settings SettingsFunc, logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		settings: settings,
		logger:   logger,
		channel:  func(mc mail.Config) Channel { return mail.New(mc) },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// open resolves settings and builds the delivery channel. Missing credentials
// surface here, at first use, as mail.ErrNotConfigured.
func (d *Dispatcher) open() (*config.StoreConfig, Channel, error) {
	cfg, err := d.settings()
	if err != nil {
		return nil, nil, fmt.Errorf("dispatcher: load settings: %w", err)
	}
	if !cfg.Mail.Enable {
		return nil, nil, mail.ErrNotConfigured
	}
	return cfg, d.channel(mail.BuildMailConfig(cfg)), nil
}

// SendWelcome sends the fixed welcome email to one new subscriber. One
// attempt, no retry; callers must treat failure as non-fatal to the
// subscription flow.
func (d *Dispatcher) SendWelcome(to, name string) error {
	cfg, ch, err := d.open()
	if err != nil {
		return err
	}
	msg, err := mail.NewWelcomeMessage(to, mail.WelcomeData{
		StoreName:       cfg.Store.Name,
		Name:            name,
		DiscountCode:    cfg.Newsletter.DiscountCode,
		DiscountPercent: cfg.Newsletter.DiscountPercent,
		ShopURL:         cfg.Store.WebURL,
	})
	if err != nil {
		return err
	}
	if err := ch.Send(msg); err != nil {
		d.logger.Warn("welcome email failed", zap.String("to", to), zap.Error(err))
		return err
	}
	return nil
}

// BatchResult is the outcome of one delivery-channel call within a broadcast.
type BatchResult struct {
	Batch int    `json:"batch"`
	Size  int    `json:"size"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// BulkResult aggregates a best-effort broadcast: dispatch was attempted for
// every batch; individual failures live in Batches, they do not fail the run.
type BulkResult struct {
	Attempted int           `json:"attempted"`
	Batches   []BatchResult `json:"batches"`
}

// Failed reports how many batches failed.
func (r BulkResult) Failed() int {
	n := 0
	for _, b := range r.Batches {
		if !b.OK {
			n++
		}
	}
	return n
}

// SendBulk partitions recipients into fixed-size batches and sends the
// newsletter to each batch independently. A failing batch never stops the
// ones after it. The returned error covers only configuration and rendering
// problems detected before any dispatch.
func (d *Dispatcher) SendBulk(recipients []string, subject, content, previewText string) (BulkResult, error) {
	cfg, ch, err := d.open()
	if err != nil {
		return BulkResult{}, err
	}

	batchSize := cfg.Newsletter.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	data := mail.NewsletterData{
		StoreName:   cfg.Store.Name,
		Subject:     subject,
		PreviewText: previewText,
		Content:     template.HTML(content),
	}

	result := BulkResult{}
	for i, batch := range partition(recipients, batchSize) {
		br := BatchResult{Batch: i + 1, Size: len(batch), OK: true}
		msg, err := mail.NewNewsletterMessage(batch, data)
		if err == nil {
			err = ch.Send(msg)
		}
		if err != nil {
			br.OK = false
			br.Error = err.Error()
			d.logger.Warn("newsletter batch failed",
				zap.Int("batch", br.Batch),
				zap.Int("size", br.Size),
				zap.Error(err),
			)
		}
		result.Attempted += len(batch)
		result.Batches = append(result.Batches, br)
	}

	if failed := result.Failed(); failed > 0 && d.alerts != nil {
		go d.alerts.ThrottlePush("newsletter_batch_failure",
			"Fallo en el envío del boletín",
			fmt.Sprintf("%d de %d lotes fallaron (asunto: %s)", failed, len(result.Batches), subject),
		)
	}
	return result, nil
}

// OrderResult reports both order sends independently.
type OrderResult struct {
	InternalErr error
	CustomerErr error
}

// Success reports whether both sends went through.
func (r OrderResult) Success() bool {
	return r.InternalErr == nil && r.CustomerErr == nil
}

// Details names which send failed, for the HTTP error body.
func (r OrderResult) Details() map[string]string {
	details := map[string]string{}
	if r.InternalErr != nil {
		details["internal"] = r.InternalErr.Error()
	}
	if r.CustomerErr != nil {
		details["customer"] = r.CustomerErr.Error()
	}
	return details
}

// SendOrderNotifications renders the business-facing notification and the
// customer-facing confirmation from one order payload, attaches the rendered
// PDF to both, and attempts both sends. Both outcomes are reported; one
// failing never prevents the other attempt.
func (d *Dispatcher) SendOrderNotifications(order mail.OrderData, pdf []byte) (OrderResult, error) {
	cfg, ch, err := d.open()
	if err != nil {
		return OrderResult{}, err
	}

	businessEmail := strings.TrimSpace(cfg.Store.BusinessEmail)
	if businessEmail == "" {
		return OrderResult{}, fmt.Errorf("dispatcher: business email not configured: %w", mail.ErrNotConfigured)
	}
	if order.StoreName == "" {
		order.StoreName = cfg.Store.Name
	}

	var result OrderResult

	if msg, err := mail.NewOrderInternalMessage(businessEmail, order, pdf); err != nil {
		result.InternalErr = err
	} else if err := ch.Send(msg); err != nil {
		result.InternalErr = err
	}

	if msg, err := mail.NewOrderConfirmationMessage(order.CustomerEmail, order, pdf); err != nil {
		result.CustomerErr = err
	} else if err := ch.Send(msg); err != nil {
		result.CustomerErr = err
	}

	if !result.Success() {
		d.logger.Warn("order notification partially failed",
			zap.String("order", order.OrderNumber),
			zap.NamedError("internal", result.InternalErr),
			zap.NamedError("customer", result.CustomerErr),
		)
		if d.alerts != nil {
			go d.alerts.ThrottlePush("order_notification_failure",
				"Fallo en la notificación de pedido",
				fmt.Sprintf("Pedido %s: %v", order.OrderNumber, result.Details()),
			)
		}
	}
	return result, nil
}

func partition(recipients []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(recipients); start += size {
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}
		batches = append(batches, recipients[start:end])
	}
	return batches
}
