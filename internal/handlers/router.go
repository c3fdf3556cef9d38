// Package handlers exposes the HTTP API: transfer execution and lookup,
// account balance reads and a health probe.
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/gmelo/transferapi/internal/handlers/middleware"
	"github.com/gmelo/transferapi/internal/logger"
	"github.com/gmelo/transferapi/internal/models"
	"github.com/gmelo/transferapi/internal/service/balance"
	"github.com/gmelo/transferapi/internal/service/transfer"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	transferService transferService,
	balanceService balanceService,
	pinger pinger,
	logger logger.Logger,
) http.Handler {
	apiv1 := http.NewServeMux()

	apiv1.Handle("POST /transfers", handleCreateTransfer(transferService, logger))
	apiv1.Handle("GET /transfers/{id}", handleGetTransfer(transferService, logger))
	apiv1.Handle("GET /accounts/{number}/{agency}/transfers", handleListTransfers(transferService, balanceService, logger))
	apiv1.Handle("GET /accounts/{number}/{agency}/balance", handleGetBalance(balanceService, logger))

	root := http.NewServeMux()
	root.Handle("/api/v1/", http.StripPrefix("/api/v1", apiv1))
	root.Handle("GET /health", handleHealth(pinger))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type transferService interface {
	// Executes a transfer end to end.
	// Business rejections come back as apperrors with a stable code.
	Execute(ctx context.Context, p transfer.ExecuteParams) (transfer.Result, error)

	// Has to return apperrors.TransferNotFound for unknown ids
	GetTransfer(ctx context.Context, id uuid.UUID) (models.Transfer, error)

	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Transfer, error)
}

type balanceService interface {
	// Has to return apperrors.AccountNotFound for unknown accounts
	GetBalance(ctx context.Context, number string, agency string) (balance.Balance, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}
