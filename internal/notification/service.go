package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Service struct {
	repo   Repository
	log    *zap.Logger
	tracer trace.Tracer

	now   func() time.Time
	newID func() string
}

func NewService(repo Repository, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		log:    log,
		tracer: otel.Tracer("notification"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Notify queues one PENDING notification per channel the customer enabled.
// Zero channels is not an error. A missing preference is apperr.ErrNotFound.
func (s *Service) Notify(ctx context.Context, customerID, message string) ([]Notification, error) {
	ctx, span := s.tracer.Start(ctx, "notification.notify", trace.WithAttributes(attribute.String("customer.id", customerID)))
	defer span.End()

	pref, err := s.repo.FindPreferenceByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("service: notify %s: %w", customerID, err)
	}

	channels := pref.Channels()
	out := make([]Notification, 0, len(channels))
	for _, ch := range channels {
		out = append(out, Notification{
			ID:          s.newID(),
			RecipientID: customerID,
			Type:        ch,
			Message:     message,
			Status:      StatusPending,
			CreatedAt:   s.now(),
		})
	}
	if err := s.repo.InsertNotifications(ctx, out); err != nil {
		return nil, fmt.Errorf("service: notify %s: %w", customerID, err)
	}
	span.SetAttributes(attribute.Int("notification.count", len(out)))
	s.log.Info("notifications queued", zap.String("customer_id", customerID), zap.Int("count", len(out)))
	return out, nil
}

func (s *Service) SavePreference(ctx context.Context, in SavePreference) (Preference, error) {
	if err := in.Validate(); err != nil {
		return Preference{}, err
	}
	p := Preference{
		ID:           in.ID,
		CustomerID:   in.CustomerID,
		EmailEnabled: in.EmailEnabled,
		Email:        in.Email,
		SMSEnabled:   in.SMSEnabled,
		PhoneNumber:  in.PhoneNumber,
		PushEnabled:  in.PushEnabled,
		DeviceID:     in.DeviceID,
	}

	if p.ID != "" {
		saved, err := s.repo.UpdatePreference(ctx, p)
		if err != nil {
			return Preference{}, fmt.Errorf("service: save preference: %w", err)
		}
		return saved, nil
	}

	p.ID = s.newID()
	p.CreatedAt = s.now().UTC()
	if err := s.repo.InsertPreference(ctx, p); err != nil {
		return Preference{}, fmt.Errorf("service: save preference: %w", err)
	}
	s.log.Info("preference created", zap.String("customer_id", p.CustomerID))
	return p, nil
}

func (s *Service) GetPreference(ctx context.Context, id string) (Preference, error) {
	p, err := s.repo.FindPreference(ctx, id)
	if err != nil {
		return Preference{}, fmt.Errorf("service: get preference: %w", err)
	}
	return p, nil
}

func (s *Service) GetPreferenceByCustomer(ctx context.Context, customerID string) (Preference, error) {
	p, err := s.repo.FindPreferenceByCustomer(ctx, customerID)
	if err != nil {
		return Preference{}, fmt.Errorf("service: get customer preference: %w", err)
	}
	return p, nil
}

func (s *Service) History(ctx context.Context, customerID string) (CustomerHistory, error) {
	p, err := s.repo.FindPreferenceByCustomer(ctx, customerID)
	if err != nil {
		return CustomerHistory{}, fmt.Errorf("service: notification history: %w", err)
	}
	ns, err := s.repo.NotificationsFor(ctx, customerID)
	if err != nil {
		return CustomerHistory{}, fmt.Errorf("service: notification history: %w", err)
	}
	if ns == nil {
		ns = []Notification{}
	}
	return CustomerHistory{Preference: p, Notifications: ns}, nil
}
