package handler

import (
	"context"
	"net/http"

	"ums_backend/internal/withdraw/domain"
	"ums_backend/internal/withdraw/service"
	"ums_backend/internal/withdraw/transport"
	"ums_backend/platform/httpkit"
	"ums_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

type withdrawService interface {
	Withdraw(ctx context.Context, userID uuid.UUID) (domain.WithdrawRequest, error)
	Get(ctx context.Context, userID uuid.UUID) (service.Detail, error)
}

type purgeEnqueuer interface {
	EnqueueForcePurge(ctx context.Context, requestedBy string) (string, error)
}

type Handler struct {
	svc   withdrawService
	purge purgeEnqueuer
	val   *validator.Validator
}

func New(svc withdrawService, purge purgeEnqueuer, val *validator.Validator) *Handler {
	return &Handler{svc: svc, purge: purge, val: val}
}

// Withdraw withdraws the calling user.
func (h *Handler) Withdraw(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	if _, err := h.svc.Withdraw(c.Request.Context(), id.UserID()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

// ForcePurge queues a purge run outside the schedule.
func (h *Handler) ForcePurge(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	taskID, err := h.purge.EnqueueForcePurge(c.Request.Context(), id.UserID().String())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Accepted(c, transport.PurgeQueuedResponse{TaskID: taskID})
}

// GetRequest returns a user's withdraw request and its history.
func (h *Handler) GetRequest(c *gin.Context) {
	var param transport.UserIDParam
	if err := c.ShouldBindUri(&param); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(param); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	detail, err := h.svc.Get(c.Request.Context(), uuid.MustParse(param.UserID))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toDetailResponse(detail))
}

func toDetailResponse(d service.Detail) transport.WithdrawDetailResponse {
	history := make([]transport.ProcessHistoryResponse, 0, len(d.History))
	for _, e := range d.History {
		history = append(history, transport.ProcessHistoryResponse{
			Process:     string(e.Process),
			IsPassed:    e.IsPassed,
			ProcessedAt: e.ProcessedAt,
		})
	}

	r := d.Request
	return transport.WithdrawDetailResponse{
		Request: transport.WithdrawRequestResponse{
			ID:            r.ID.String(),
			UserID:        r.UserID.String(),
			Email:         r.Email,
			PurgeStatus:   string(r.PurgeStatus),
			PurgeTryCount: r.PurgeTryCount,
			CreatedAt:     r.CreatedAt,
			UpdatedAt:     r.UpdatedAt,
		},
		History: history,
	}
}
