package inventory

import (
	"time"

	"github.com/ariefcatur/go-order-saga/internal/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	MsgOrderCompleted = "Order Completed"
	MsgOrderRejected  = "Order Rejected"

	ReasonInternal = "Internal error during inventory processing"
)

type Service struct {
	repo   Repository
	pub    events.Publisher
	log    *zap.Logger
	tracer trace.Tracer

	now   func() time.Time
	newID func() string
}

func NewService(repo Repository, pub events.Publisher, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		pub:    pub,
		log:    log,
		tracer: otel.Tracer("inventory"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}
