// Package httpapi exposes the trading loop over HTTP: the status document,
// opportunity intake and the operator re-enable switch.
package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	profitDomain "github.com/fd1az/flashguard/business/profit/domain"
	reliabilityApp "github.com/fd1az/flashguard/business/reliability/app"
	"github.com/fd1az/flashguard/business/trading/app"
	"github.com/fd1az/flashguard/business/trading/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/health"
	"github.com/fd1az/flashguard/internal/logger"
)

const maxBodyBytes = 1 << 20

// StatusReporter produces the reliability snapshot.
type StatusReporter interface {
	Snapshot() reliabilityApp.Snapshot
}

// Intake accepts opportunities and reports loop counters.
type Intake interface {
	Submit(opp domain.Opportunity) (domain.Opportunity, error)
	Stats() app.LoopStats
	Top() []profitDomain.Validation
}

// Operator lifts an emergency stop.
type Operator interface {
	Enable(ctx context.Context)
}

// TradingStatus is the trading part of the status document.
type TradingStatus struct {
	Loop app.LoopStats             `json:"loop"`
	Top  []profitDomain.Validation `json:"top_opportunities"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	reliabilityApp.Snapshot
	Trading TradingStatus `json:"trading"`
}

// SubmitResponse is the body of an accepted POST /opportunities.
type SubmitResponse struct {
	ID string `json:"id"`
}

// Handler serves the trading routes.
type Handler struct {
	status   StatusReporter
	intake   Intake
	operator Operator
	token    string
	logger   logger.LoggerInterface
}

// NewHandler creates the handler. An empty adminToken disables the admin
// routes.
func NewHandler(status StatusReporter, intake Intake, operator Operator, adminToken string, log logger.LoggerInterface) *Handler {
	return &Handler{
		status:   status,
		intake:   intake,
		operator: operator,
		token:    adminToken,
		logger:   log,
	}
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/status", h.handleStatus)
	r.Post("/opportunities", h.handleSubmit)
	r.Post("/admin/reenable", h.handleReenable)
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	health.WriteJSON(w, http.StatusOK, StatusResponse{
		Snapshot: h.status.Snapshot(),
		Trading: TradingStatus{
			Loop: h.intake.Stats(),
			Top:  h.intake.Top(),
		},
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var opp domain.Opportunity
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&opp); err != nil {
		health.WriteError(w, http.StatusBadRequest, string(apperror.CodeInvalidInput), "malformed opportunity: "+err.Error())
		return
	}
	if err := opp.Validate(); err != nil {
		health.WriteError(w, http.StatusBadRequest, string(apperror.CodeValidationError), err.Error())
		return
	}

	queued, err := h.intake.Submit(opp)
	if err != nil {
		code := apperror.GetCode(err)
		status := http.StatusInternalServerError
		if code == apperror.CodeRateLimitExceeded {
			status = http.StatusTooManyRequests
		}
		h.logger.Warn(r.Context(), "opportunity not queued", "id", queued.ID, "error", err)
		health.WriteError(w, status, string(code), apperror.Reason(err))
		return
	}
	health.WriteJSON(w, http.StatusAccepted, SubmitResponse{ID: queued.ID})
}

func (h *Handler) handleReenable(w http.ResponseWriter, r *http.Request) {
	if h.token == "" {
		health.WriteError(w, http.StatusForbidden, "", "admin routes disabled")
		return
	}
	if !h.authorized(r) {
		health.WriteError(w, http.StatusUnauthorized, "", "invalid admin token")
		return
	}

	h.operator.Enable(r.Context())
	h.logger.Warn(r.Context(), "trading re-enabled by operator", "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) authorized(r *http.Request) bool {
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
