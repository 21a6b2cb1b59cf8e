package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medsecop/platform/internal/case/domain"
	"github.com/medsecop/platform/internal/case/service"
	"github.com/medsecop/platform/internal/shared/auth"
	"github.com/medsecop/platform/internal/shared/errors"
	"github.com/medsecop/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the case module
type Handler struct {
	service *service.Service
}

// NewHandler creates a new case handler
func NewHandler(service *service.Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the case routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListCases)
	r.Post("/", h.CreateCase)

	r.Route("/{caseID}", func(r chi.Router) {
		r.Get("/", h.GetCase)
		r.Patch("/", h.UpdateCase)

		// Lifecycle actions
		r.Post("/submit", h.SubmitCase)
		r.Post("/assign", h.AssignDoctor)
		r.Post("/review", h.StartReview)
		r.Post("/complete", h.CompleteCase)
		r.Post("/cancel", h.CancelCase)
	})

	return r
}

// CreateCaseRequest is the payload for creating a case
type CreateCaseRequest struct {
	PatientID   string `json:"patient_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Specialty   string `json:"specialty"`
	Priority    string `json:"priority,omitempty"`
	Submit      bool   `json:"submit,omitempty"`
}

// AssignDoctorRequest is the payload for assigning a doctor
type AssignDoctorRequest struct {
	DoctorID string `json:"doctor_id"`
}

// ListCases lists cases visible to the caller
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{
		Search: r.URL.Query().Get("search"),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.Status(s)
		filter.Status = &status
	}

	if sp := r.URL.Query().Get("specialty"); sp != "" {
		specialty := domain.Specialty(sp)
		filter.Specialty = &specialty
	}

	if p := r.URL.Query().Get("priority"); p != "" {
		priority := domain.Priority(p)
		filter.Priority = &priority
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	filter.OrderBy = r.URL.Query().Get("order_by")
	filter.OrderDesc = r.URL.Query().Get("order") == "desc"

	cases, total, err := h.service.List(r.Context(), auth.GetUser(r.Context()), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  cases,
		"total": total,
	})
}

// CreateCase creates a new case
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var req CreateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	// Patients create cases for themselves; admins may name any patient
	patientID := user.ID
	if req.PatientID != "" {
		id, err := types.ParseID(req.PatientID)
		if err != nil {
			writeError(w, errors.BadRequest("invalid patient ID"))
			return
		}
		patientID = id
	}

	input := service.CreateInput{
		PatientID:   patientID,
		Title:       req.Title,
		Description: req.Description,
		Specialty:   domain.Specialty(req.Specialty),
		Priority:    domain.Priority(req.Priority),
		Submit:      req.Submit,
	}

	c, err := h.service.Create(r.Context(), user, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

// GetCase gets a case by ID
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	id, err := h.caseID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	c, err := h.service.Get(r.Context(), auth.GetUser(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// UpdateCase applies a partial update to a case
func (h *Handler) UpdateCase(w http.ResponseWriter, r *http.Request) {
	id, err := h.caseID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input service.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	c, err := h.service.Update(r.Context(), auth.GetUser(r.Context()), id, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// SubmitCase submits a draft case for review
func (h *Handler) SubmitCase(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.service.Submit)
}

// AssignDoctor assigns a doctor to a case
func (h *Handler) AssignDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := h.caseID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req AssignDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	doctorID, err := types.ParseID(req.DoctorID)
	if err != nil {
		writeError(w, errors.BadRequest("invalid doctor ID"))
		return
	}

	c, err := h.service.AssignDoctor(r.Context(), auth.GetUser(r.Context()), id, doctorID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// StartReview starts the review of an assigned case
func (h *Handler) StartReview(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.service.StartReview)
}

// CompleteCase completes a case under review
func (h *Handler) CompleteCase(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.service.Complete)
}

// CancelCase cancels a case
func (h *Handler) CancelCase(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.service.Cancel)
}

// action is the shared handler for the single-transition lifecycle endpoints
func (h *Handler) action(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, actor *auth.User, id types.ID) (*domain.Case, error),
) {
	id, err := h.caseID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	c, err := op(r.Context(), auth.GetUser(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) caseID(r *http.Request) (types.ID, error) {
	id, err := types.ParseID(chi.URLParam(r, "caseID"))
	if err != nil {
		return types.ID(""), errors.BadRequest("invalid case ID")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
