package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"github.com/google/uuid"
)

type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelPush  Channel = "PUSH"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId"`
	Type        Channel   `json:"type"`
	Message     string    `json:"message"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Preference is one per customer. A contact address is set for every enabled
// channel.
type Preference struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customerId"`
	EmailEnabled bool      `json:"emailEnabled"`
	Email        *string   `json:"email"`
	SMSEnabled   bool      `json:"smsEnabled"`
	PhoneNumber  *string   `json:"phoneNumber"`
	PushEnabled  bool      `json:"pushEnabled"`
	DeviceID     *string   `json:"deviceId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Channels lists the enabled channels in a fixed order.
func (p Preference) Channels() []Channel {
	var out []Channel
	if p.EmailEnabled {
		out = append(out, ChannelEmail)
	}
	if p.SMSEnabled {
		out = append(out, ChannelSMS)
	}
	if p.PushEnabled {
		out = append(out, ChannelPush)
	}
	return out
}

type CustomerHistory struct {
	Preference
	Notifications []Notification `json:"notifications"`
}

type SavePreference struct {
	ID           string  `json:"id,omitempty"`
	CustomerID   string  `json:"customerId"`
	EmailEnabled bool    `json:"emailEnabled"`
	Email        *string `json:"email"`
	SMSEnabled   bool    `json:"smsEnabled"`
	PhoneNumber  *string `json:"phoneNumber"`
	PushEnabled  bool    `json:"pushEnabled"`
	DeviceID     *string `json:"deviceId"`
}

func (in SavePreference) Validate() error {
	if in.ID != "" {
		if _, err := uuid.Parse(in.ID); err != nil {
			return fmt.Errorf("%w: id must be a uuid", apperr.ErrValidation)
		}
	}
	if _, err := uuid.Parse(in.CustomerID); err != nil {
		return fmt.Errorf("%w: customerId must be a uuid", apperr.ErrValidation)
	}
	if in.EmailEnabled && blank(in.Email) {
		return fmt.Errorf("%w: email is required when email notification is enabled", apperr.ErrValidation)
	}
	if in.SMSEnabled && blank(in.PhoneNumber) {
		return fmt.Errorf("%w: phone number is required when sms notification is enabled", apperr.ErrValidation)
	}
	if in.PushEnabled && blank(in.DeviceID) {
		return fmt.Errorf("%w: device id is required when push notification is enabled", apperr.ErrValidation)
	}
	return nil
}

func blank(s *string) bool { return s == nil || strings.TrimSpace(*s) == "" }
