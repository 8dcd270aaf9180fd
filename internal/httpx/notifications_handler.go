package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/notification"
	"github.com/go-chi/chi/v5"
)

type NotificationService interface {
	SavePreference(ctx context.Context, in notification.SavePreference) (notification.Preference, error)
	GetPreference(ctx context.Context, id string) (notification.Preference, error)
	GetPreferenceByCustomer(ctx context.Context, customerID string) (notification.Preference, error)
	History(ctx context.Context, customerID string) (notification.CustomerHistory, error)
}

type NotificationsHandler struct {
	Service NotificationService
}

func (h *NotificationsHandler) Register(r chi.Router) {
	r.Post("/notifications", h.savePreference)
	r.Get("/notifications/customer/{id}", h.byCustomer)
	r.Get("/notifications/histories/{id}", h.history)
	r.Get("/notifications/{id}", h.getPreference)
}

func (h *NotificationsHandler) savePreference(w http.ResponseWriter, r *http.Request) {
	var req notification.SavePreference
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Service.SavePreference(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *NotificationsHandler) getPreference(w http.ResponseWriter, r *http.Request) {
	h.lookup(w, r, h.Service.GetPreference)
}

func (h *NotificationsHandler) byCustomer(w http.ResponseWriter, r *http.Request) {
	h.lookup(w, r, h.Service.GetPreferenceByCustomer)
}

func (h *NotificationsHandler) lookup(w http.ResponseWriter, r *http.Request, find func(context.Context, string) (notification.Preference, error)) {
	id := chi.URLParam(r, "id")
	if !validUUID(w, id) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := find(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *NotificationsHandler) history(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validUUID(w, id) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	hist, err := h.Service.History(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}
