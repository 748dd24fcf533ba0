package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"kidpoints/internal/app"
	"kidpoints/internal/models"
)

// APIHandler exposes the household over JSON
type APIHandler struct {
	app    *app.Application
	logger *zap.Logger
}

func NewAPIHandler(a *app.Application, logger *zap.Logger) *APIHandler {
	return &APIHandler{app: a, logger: logger}
}

type stateResponse struct {
	models.SessionState
	OnboardingRequired bool   `json:"onboardingRequired"`
	PendingAction      string `json:"pendingAction,omitempty"`
	AccountsEnabled    bool   `json:"accountsEnabled"`
}

// State returns the session state
func (h *APIHandler) State(w http.ResponseWriter, r *http.Request) {
	required, err := h.app.OnboardingRequired(r.Context())
	if err != nil {
		h.respondWithDomainError(w, "Failed to read onboarding flag", err)
		return
	}
	pending, _ := h.app.PendingAction()
	respondJSON(w, http.StatusOK, stateResponse{
		SessionState:       h.app.State(),
		OnboardingRequired: required,
		PendingAction:      pending,
		AccountsEnabled:    h.app.AccountsEnabled(),
	})
}

func (h *APIHandler) ListKids(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.app.Kids())
}

type addChildRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (h *APIHandler) AddChild(w http.ResponseWriter, r *http.Request) {
	var req addChildRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	child, err := h.app.AddChild(req.Name, req.Avatar)
	if err != nil {
		h.respondWithDomainError(w, "Failed to add child", err)
		return
	}
	respondJSON(w, http.StatusCreated, child)
}

func (h *APIHandler) GetChild(w http.ResponseWriter, r *http.Request) {
	child, ok := h.app.Child(r.PathValue("id"))
	if !ok {
		respondWithError(w, h.logger, http.StatusNotFound, "child not found", "", nil)
		return
	}
	respondJSON(w, http.StatusOK, child)
}

func (h *APIHandler) RemoveChild(w http.ResponseWriter, r *http.Request) {
	if err := h.app.RemoveChild(r.PathValue("id")); err != nil {
		h.respondWithDomainError(w, "Failed to remove child", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ChildHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.app.ChildHistory(r.PathValue("id"))
	if err != nil {
		h.respondWithDomainError(w, "Failed to read history", err)
		return
	}
	if history == nil {
		history = []models.HistoryEntry{}
	}
	respondJSON(w, http.StatusOK, history)
}

func (h *APIHandler) ChildLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.app.Child(id); !ok {
		respondWithError(w, h.logger, http.StatusNotFound, "child not found", "", nil)
		return
	}
	logs := h.app.ChildLogs(id)
	if logs == nil {
		logs = []models.LogEntry{}
	}
	respondJSON(w, http.StatusOK, logs)
}

// Stats covers every child when the child query parameter is absent
func (h *APIHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.app.Stats(r.URL.Query().Get("child")))
}

func (h *APIHandler) Recap(w http.ResponseWriter, r *http.Request) {
	recap, err := h.app.Recap(r.PathValue("id"))
	if err != nil {
		h.respondWithDomainError(w, "Failed to build recap", err)
		return
	}
	respondJSON(w, http.StatusOK, recap)
}

type logActionRequest struct {
	ActionID  string   `json:"actionId"`
	ActionIDs []string `json:"actionIds"`
}

// LogAction scores one action, or a batch when actionIds is given
func (h *APIHandler) LogAction(w http.ResponseWriter, r *http.Request) {
	var req logActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	childID := r.PathValue("id")
	var (
		res app.LogResult
		err error
	)
	if len(req.ActionIDs) > 0 {
		res, err = h.app.LogActionBatch(r.Context(), childID, req.ActionIDs)
	} else {
		res, err = h.app.LogAction(r.Context(), childID, req.ActionID)
	}
	if err != nil {
		h.respondWithDomainError(w, "Failed to log action", err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (h *APIHandler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	removed, err := h.app.DeleteLog(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondWithDomainError(w, "Failed to delete log", err)
		return
	}
	respondJSON(w, http.StatusOK, removed)
}

func (h *APIHandler) ValidateWeek(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.ValidateWeek(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondWithDomainError(w, "Failed to validate week", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *APIHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.app.Actions())
}

type addActionRequest struct {
	Label    string            `json:"label"`
	Type     models.ActionType `json:"type"`
	Value    float64           `json:"value"`
	Category string            `json:"category"`
}

func (h *APIHandler) AddAction(w http.ResponseWriter, r *http.Request) {
	var req addActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	action, err := h.app.AddAction(req.Label, req.Type, req.Value, req.Category)
	if err != nil {
		h.respondWithDomainError(w, "Failed to add action", err)
		return
	}
	respondJSON(w, http.StatusCreated, action)
}

func (h *APIHandler) DeleteAction(w http.ResponseWriter, r *http.Request) {
	if err := h.app.DeleteAction(r.PathValue("id")); err != nil {
		h.respondWithDomainError(w, "Failed to delete action", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ResetScores(w http.ResponseWriter, r *http.Request) {
	h.app.ResetScores()
	respondJSON(w, http.StatusOK, h.app.Kids())
}

func (h *APIHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]models.Theme{"theme": h.app.ToggleTheme()})
}

type setPinRequest struct {
	Pin *string `json:"pin"`
}

// SetPin sets the PIN; a null pin clears it
func (h *APIHandler) SetPin(w http.ResponseWriter, r *http.Request) {
	var req setPinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	if err := h.app.SetPin(req.Pin); err != nil {
		h.respondWithDomainError(w, "Failed to set pin", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type confirmPinRequest struct {
	Pin string `json:"pin"`
}

// ConfirmPin runs the parked action when pin matches and answers the way the
// parked request would have
func (h *APIHandler) ConfirmPin(w http.ResponseWriter, r *http.Request) {
	var req confirmPinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	res, err := h.app.ConfirmPin(req.Pin)
	if err != nil {
		h.respondWithDomainError(w, "Failed to run parked action", err)
		return
	}
	status := http.StatusOK
	if _, ok := res.(app.LogResult); ok {
		status = http.StatusCreated
	}
	respondJSON(w, status, res)
}

func (h *APIHandler) CancelPin(w http.ResponseWriter, r *http.Request) {
	h.app.CancelPin()
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) CreateFamilyCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.app.CreateFamilyCode(r.Context())
	if err != nil {
		h.respondWithDomainError(w, "Failed to create family code", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"code": code})
}

type joinFamilyRequest struct {
	Code string `json:"code"`
}

func (h *APIHandler) JoinFamilyCode(w http.ResponseWriter, r *http.Request) {
	var req joinFamilyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	ok, err := h.app.JoinFamilyCode(r.Context(), req.Code)
	if err != nil {
		h.respondWithDomainError(w, "Failed to join family", err)
		return
	}
	if !ok {
		respondWithError(w, h.logger, http.StatusNotFound, "unknown family code", "", nil)
		return
	}
	respondJSON(w, http.StatusOK, h.app.State())
}

func (h *APIHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	if err := h.app.CompleteOnboarding(r.Context()); err != nil {
		h.respondWithDomainError(w, "Failed to complete onboarding", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Resync re-reads the shared record
func (h *APIHandler) Resync(w http.ResponseWriter, r *http.Request) {
	h.app.Resync(r.Context())
	respondJSON(w, http.StatusOK, h.app.Kids())
}

// Report downloads the household workbook
func (h *APIHandler) Report(w http.ResponseWriter, r *http.Request) {
	f, err := h.app.Reports().Build()
	if err != nil {
		h.respondWithDomainError(w, "Failed to build report", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="kidpoints.xlsx"`)
	if _, err := f.WriteTo(w); err != nil {
		h.logger.Warn("Failed to write report", zap.Error(err))
	}
}
