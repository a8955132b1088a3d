package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/storykeep-backend/internal/http/response"
	"github.com/yungbote/storykeep-backend/internal/platform/ctxutil"
	"github.com/yungbote/storykeep-backend/internal/services"
)

type WalletHandler struct {
	ledger services.LedgerService
}

func NewWalletHandler(ledger services.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// GET /api/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID := ctxutil.UserID(c.Request.Context())
	if userID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	w, err := h.ledger.GetWallet(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"wallet": w})
}

// GET /api/wallet/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID := ctxutil.UserID(c.Request.Context())
	if userID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	f := services.HistoryFilters{
		ResourceTypes:    queryList(c.Query("resourceType")),
		TransactionTypes: queryList(c.Query("transactionType")),
		SortBy:           c.Query("sortBy"),
		SortOrder:        c.Query("sortOrder"),
	}
	var err error
	if raw := c.Query("projectId"); raw != "" {
		pid, perr := uuid.Parse(raw)
		if perr != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_project_id", perr)
			return
		}
		f.ProjectID = &pid
	}
	if f.DateFrom, err = queryTime(c.Query("dateFrom"), "dateFrom", false); err != nil {
		respondServiceError(c, err)
		return
	}
	if f.DateTo, err = queryTime(c.Query("dateTo"), "dateTo", true); err != nil {
		respondServiceError(c, err)
		return
	}
	if f.Page, err = queryInt(c.Query("page"), "page"); err != nil {
		respondServiceError(c, err)
		return
	}
	if f.Limit, err = queryInt(c.Query("limit"), "limit"); err != nil {
		respondServiceError(c, err)
		return
	}
	page, err := h.ledger.GetTransactionHistory(c.Request.Context(), userID, f)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, page)
}

// GET /api/wallet/stats
func (h *WalletHandler) Stats(c *gin.Context) {
	userID := ctxutil.UserID(c.Request.Context())
	if userID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	stats, err := h.ledger.GetUserTransactionStats(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stats": stats})
}
