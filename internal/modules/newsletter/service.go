package newsletter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/casaflora/tienda-core/internal/dispatcher"
	"github.com/casaflora/tienda-core/internal/models"
	"github.com/casaflora/tienda-core/internal/pkg/taskqueue"
	"github.com/casaflora/tienda-core/internal/registry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNoSubscribers is returned by audited sends when the registry is empty.
var ErrNoSubscribers = errors.New("newsletter: no active subscribers")

// TaskWelcomeEmail is the background task type for post-subscribe greetings.
const TaskWelcomeEmail = "welcome_email"

type welcomePayload struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Service coordinates the subscriber registry, the mail dispatcher and the
// send audit trail.
type Service struct {
	reg    *registry.Registry
	disp   *dispatcher.Dispatcher
	tasks  *taskqueue.Service
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(reg *registry.Registry, disp *dispatcher.Dispatcher, tasks *taskqueue.Service, db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{reg: reg, disp: disp, tasks: tasks, db: db, logger: logger}
}

// RegisterTasks binds the welcome-email handler to the task queue.
func (s *Service) RegisterTasks() {
	if s.tasks == nil {
		return
	}
	s.tasks.Register(TaskWelcomeEmail, func(ctx context.Context, raw json.RawMessage) error {
		var p welcomePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		return s.disp.SendWelcome(p.Email, p.Name)
	})
}

// Subscribe adds the email to the registry. On a fresh subscription the
// welcome email is handed to the background queue; its outcome never affects
// the subscription result.
func (s *Service) Subscribe(ctx context.Context, email string, source registry.Source) (registry.AddResult, error) {
	res, err := s.reg.Add(email, source)
	if err != nil {
		return res, err
	}
	if res.Created {
		s.queueWelcome(ctx, res.Subscriber.Email)
	}
	return res, nil
}

func (s *Service) queueWelcome(ctx context.Context, email string) {
	if s.tasks != nil {
		if _, err := s.tasks.Enqueue(ctx, TaskWelcomeEmail, welcomePayload{Email: email}); err != nil {
			s.logger.Warn("welcome email enqueue failed", zap.String("email", email), zap.Error(err))
		}
		return
	}
	go func() {
		if err := s.disp.SendWelcome(email, ""); err != nil {
			s.logger.Warn("welcome email failed", zap.String("email", email), zap.Error(err))
		}
	}()
}

// Unsubscribe removes the email from the registry.
func (s *Service) Unsubscribe(email string) error {
	return s.reg.Remove(email)
}

// List returns all subscribers in insertion order.
func (s *Service) List() ([]registry.Subscriber, error) {
	return s.reg.List()
}

// SendSimple sends the newsletter to every subscriber, or only to testEmail
// when one is given. No audit record is written.
func (s *Service) SendSimple(subject, content, testEmail string) (int, error) {
	recipients, err := s.recipients(testEmail)
	if err != nil {
		return 0, err
	}
	res, err := s.disp.SendBulk(recipients, subject, content, "")
	if err != nil {
		return 0, err
	}
	return res.Attempted, nil
}

// SendAudited sends the newsletter to all subscribers and records the send.
func (s *Service) SendAudited(subject, content, previewText string) (int, error) {
	recipients, err := s.recipients("")
	if err != nil {
		return 0, err
	}

	res, err := s.disp.SendBulk(recipients, subject, content, previewText)
	if err != nil {
		return 0, err
	}

	record := models.NewsletterModel{
		Subject:        subject,
		Content:        content,
		PreviewText:    previewText,
		SentAt:         time.Now(),
		RecipientCount: res.Attempted,
		Success:        res.Failed() == 0,
	}
	if err := s.db.Create(&record).Error; err != nil {
		s.logger.Error("newsletter audit record failed", zap.Error(err))
	}
	return res.Attempted, nil
}

func (s *Service) recipients(testEmail string) ([]string, error) {
	if testEmail != "" {
		return []string{testEmail}, nil
	}
	subs, err := s.reg.List()
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ErrNoSubscribers
	}
	out := make([]string, len(subs))
	for i, sub := range subs {
		out[i] = sub.Email
	}
	return out, nil
}

// ListSent returns the audit trail, newest first.
func (s *Service) ListSent() ([]models.NewsletterModel, error) {
	var records []models.NewsletterModel
	err := s.db.Order("sent_at DESC").Find(&records).Error
	return records, err
}
