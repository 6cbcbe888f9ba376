package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portssvc "github.com/commonward/coop_ledger_app/internal/core/ports/services"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/commonward/coop_ledger_app/internal/middleware"
)

// transactionHandler handles HTTP requests related to ledger transactions.
type transactionHandler struct {
	ledgerService portssvc.LedgerSvcFacade
}

func newTransactionHandler(ls portssvc.LedgerSvcFacade) *transactionHandler {
	return &transactionHandler{ledgerService: ls}
}

// registerTransactionRoutes registers routes related to transactions.
func registerTransactionRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade) {
	h := newTransactionHandler(ledgerService)

	transactions := rg.Group("/transactions")
	{
		transactions.POST("", h.postTransaction)
		transactions.GET("/:id", h.getTransaction)
		transactions.POST("/:id/void", h.voidTransaction)
	}
}

func (h *transactionHandler) postTransaction(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.PostTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for PostTransaction", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	txn, err := h.ledgerService.PostTransaction(c.Request.Context(), req, actorID, false)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Transaction posted", slog.String("transaction_id", txn.TransactionID), slog.String("period_id", txn.PeriodID))
	c.JSON(http.StatusCreated, dto.ToTransactionResponse(txn))
}

func (h *transactionHandler) getTransaction(c *gin.Context) {
	txn, err := h.ledgerService.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToTransactionResponse(txn))
}

func (h *transactionHandler) voidTransaction(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.VoidTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	txn, err := h.ledgerService.VoidTransaction(c.Request.Context(), c.Param("id"), req.Reason, actorID)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Transaction voided", slog.String("transaction_id", txn.TransactionID), slog.String("reason", req.Reason))
	c.JSON(http.StatusOK, dto.ToTransactionResponse(txn))
}

// listPeriodTransactions is mounted under the period routes; kept here with
// the other transaction handlers.
func listPeriodTransactions(ledgerService portssvc.LedgerSvcFacade) gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *domain.TransactionStatus
		if raw := c.Query("status"); raw != "" {
			s := domain.TransactionStatus(raw)
			status = &s
		}
		txns, err := ledgerService.ListTransactionsByPeriod(c.Request.Context(), c.Param("id"), status)
		if err != nil {
			respondError(c, err)
			return
		}
		responses := make([]dto.TransactionResponse, len(txns))
		for i := range txns {
			responses[i] = dto.ToTransactionResponse(&txns[i])
		}
		c.JSON(http.StatusOK, gin.H{"transactions": responses})
	}
}
