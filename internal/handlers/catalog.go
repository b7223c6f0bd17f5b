package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"pharmacy-agent/internal/models"
)

const (
	serviceName    = "Pharmacy AI Agent"
	serviceVersion = "1.0.0"
)

type userLister interface {
	List(ctx context.Context) ([]models.UserSummary, error)
}

type medicationLister interface {
	List(ctx context.Context) ([]models.Medication, error)
}

// CatalogHandler serves the read-only endpoints next to the chat.
type CatalogHandler struct {
	users       userLister
	medications medicationLister
	logger      *slog.Logger
}

func NewCatalogHandler(users userLister, medications medicationLister, logger *slog.Logger) *CatalogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogHandler{users: users, medications: medications, logger: logger}
}

func (h *CatalogHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.ServiceInfo{Status: "online", Service: serviceName, Version: serviceVersion})
}

func (h *CatalogHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *CatalogHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Error fetching users", r))
		return
	}
	if users == nil {
		users = []models.UserSummary{}
	}
	writeJSON(w, http.StatusOK, models.UserListResponse{Success: true, Users: users, Count: len(users)})
}

func (h *CatalogHandler) ListMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := h.medications.List(r.Context())
	if err != nil {
		h.logger.Error("list medications", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Error fetching medications", r))
		return
	}
	items := make([]models.MedicationListItem, len(meds))
	for i := range meds {
		items[i] = meds[i].ListItem()
	}
	writeJSON(w, http.StatusOK, models.MedicationListResponse{Medications: items})
}
