package notification

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"github.com/ariefcatur/go-order-saga/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	InsertPreference(ctx context.Context, p Preference) error
	// UpdatePreference keeps the stored created_at and returns the saved row.
	UpdatePreference(ctx context.Context, p Preference) (Preference, error)
	FindPreference(ctx context.Context, id string) (Preference, error)
	FindPreferenceByCustomer(ctx context.Context, customerID string) (Preference, error)

	// InsertNotifications stores all rows or none.
	InsertNotifications(ctx context.Context, ns []Notification) error
	NotificationsFor(ctx context.Context, recipientID string) ([]Notification, error)
	// Dispatchable returns PENDING and FAILED rows, oldest first.
	Dispatchable(ctx context.Context, limit int) ([]Notification, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

func NewRepo(db *pgxpool.Pool) *Repo { return &Repo{DB: db} }

const preferenceColumns = `id, customer_id, email_enabled, email, sms_enabled, phone_number, push_enabled, device_id, created_at`

const notificationColumns = `id, recipient_id, type, message, status, created_at`

func (r *Repo) InsertPreference(ctx context.Context, p Preference) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO customer_notification_preferences(`+preferenceColumns+`)
	                          VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.CustomerID, p.EmailEnabled, p.Email, p.SMSEnabled, p.PhoneNumber, p.PushEnabled, p.DeviceID, p.CreatedAt)
	return mapWriteErr(err)
}

func (r *Repo) UpdatePreference(ctx context.Context, p Preference) (Preference, error) {
	row := r.DB.QueryRow(ctx, `UPDATE customer_notification_preferences
	                           SET customer_id=$2, email_enabled=$3, email=$4, sms_enabled=$5,
	                               phone_number=$6, push_enabled=$7, device_id=$8
	                           WHERE id=$1 RETURNING `+preferenceColumns,
		p.ID, p.CustomerID, p.EmailEnabled, p.Email, p.SMSEnabled, p.PhoneNumber, p.PushEnabled, p.DeviceID)
	saved, err := scanPreference(row)
	if postgres.IsUniqueViolation(err) {
		return Preference{}, mapWriteErr(err)
	}
	if err != nil {
		return Preference{}, fmt.Errorf("repository: preference %s: %w", p.ID, err)
	}
	return saved, nil
}

func (r *Repo) FindPreference(ctx context.Context, id string) (Preference, error) {
	return r.findPreference(ctx, `id`, id)
}

func (r *Repo) FindPreferenceByCustomer(ctx context.Context, customerID string) (Preference, error) {
	return r.findPreference(ctx, `customer_id`, customerID)
}

func (r *Repo) findPreference(ctx context.Context, column, value string) (Preference, error) {
	if _, err := uuid.Parse(value); err != nil {
		return Preference{}, fmt.Errorf("repository: preference %s=%s: %w", column, value, apperr.ErrNotFound)
	}
	row := r.DB.QueryRow(ctx, `SELECT `+preferenceColumns+` FROM customer_notification_preferences WHERE `+column+`=$1`, value)
	p, err := scanPreference(row)
	if err != nil {
		return Preference{}, fmt.Errorf("repository: preference %s=%s: %w", column, value, err)
	}
	return p, nil
}

func (r *Repo) InsertNotifications(ctx context.Context, ns []Notification) error {
	if len(ns) == 0 {
		return nil
	}
	return postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, n := range ns {
			b.Queue(`INSERT INTO notifications(`+notificationColumns+`, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$6)`,
				n.ID, n.RecipientID, string(n.Type), n.Message, string(n.Status), n.CreatedAt)
		}
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("repository: insert notifications: %w", err)
		}
		return nil
	})
}

func (r *Repo) NotificationsFor(ctx context.Context, recipientID string) ([]Notification, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
	                              WHERE recipient_id=$1 ORDER BY created_at, id`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("repository: notifications: %w", err)
	}
	return collectNotifications(rows)
}

func (r *Repo) Dispatchable(ctx context.Context, limit int) ([]Notification, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
	                              WHERE status IN ('PENDING','FAILED') ORDER BY created_at, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: dispatchable notifications: %w", err)
	}
	return collectNotifications(rows)
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, status Status) error {
	ct, err := r.DB.Exec(ctx, `UPDATE notifications SET status=$2, updated_at=now() WHERE id=$1`, id, string(status))
	if err != nil {
		return fmt.Errorf("repository: update notification status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("repository: notification %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func mapWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err):
		return fmt.Errorf("repository: duplicate entry, customer id already exists: %w", apperr.ErrConflict)
	default:
		return fmt.Errorf("repository: save preference: %w", err)
	}
}

func scanPreference(row pgx.Row) (Preference, error) {
	var p Preference
	err := row.Scan(&p.ID, &p.CustomerID, &p.EmailEnabled, &p.Email, &p.SMSEnabled, &p.PhoneNumber,
		&p.PushEnabled, &p.DeviceID, &p.CreatedAt)
	if postgres.IsNoRows(err) {
		return Preference{}, apperr.ErrNotFound
	}
	return p, err
}

func collectNotifications(rows pgx.Rows) ([]Notification, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Notification, error) {
		var (
			n           Notification
			typ, status string
		)
		err := row.Scan(&n.ID, &n.RecipientID, &typ, &n.Message, &status, &n.CreatedAt)
		n.Type, n.Status = Channel(typ), Status(status)
		return n, err
	})
}
