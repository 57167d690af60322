// Package withdraw is the user withdrawal bounded context.
package withdraw

import (
	apphttp "ums_backend/internal/http"
	"ums_backend/internal/keycloak"
	"ums_backend/internal/outbox"
	"ums_backend/internal/scheduler"
	"ums_backend/internal/users"
	"ums_backend/internal/withdraw/handler"
	"ums_backend/internal/withdraw/repository"
	"ums_backend/internal/withdraw/service"
	"ums_backend/platform/db"
	"ums_backend/platform/logger"
	"ums_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the withdraw module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the withdraw service over pool. purge may be nil when the
// scheduler is not configured; force purge requests then fail as unavailable.
func NewModule(pool *pgxpool.Pool, idp *keycloak.Client, purge scheduler.PurgeEnqueuer, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(
		db.NewTxManager(pool),
		users.New(pool),
		repository.NewRequests(pool),
		repository.NewHistories(pool),
		outbox.New(pool),
		idp,
		log,
	)
	if purge == nil {
		purge = (*scheduler.Client)(nil)
	}

	return &Module{
		handler: handler.New(svc, purge, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "withdraw"
}

// Service returns the withdraw service.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts withdraw routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/users/me/withdraw", m.handler.Withdraw)

	ctx.Admin.POST("/withdraw/purge", m.handler.ForcePurge)
	ctx.Admin.GET("/withdraw/requests/:userId", m.handler.GetRequest)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
