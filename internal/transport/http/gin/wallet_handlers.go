package httpgin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/service/membership"
)

// @Summary  Wallet balance
// @Security BearerAuth
// @Success  200 {object} BalanceResponse
// @Router   /wallet [get]
func (h *Handler) balance(c *gin.Context) {
	b, err := h.svcs.Wallet.Balance(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{Balance: b})
}

// @Summary  Top up wallet
// @Security BearerAuth
// @Param    req body  TopUpRequest true "payload"
// @Success  201 {object} domain.WalletTransaction
// @Failure  400 {object} ErrorResponse "invalid amount"
// @Router   /wallet/topup [post]
func (h *Handler) topUp(c *gin.Context) {
	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	tx, err := h.svcs.Wallet.TopUp(c.Request.Context(), mustUser(c).ID, req.Amount)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, tx)
}

// @Summary  Wallet transactions, newest first
// @Security BearerAuth
// @Param    limit  query  int  false  "page size"
// @Success  200 {array} domain.WalletTransaction
// @Router   /wallet/transactions [get]
func (h *Handler) transactions(c *gin.Context) {
	txs, err := h.svcs.Wallet.Transactions(c.Request.Context(), mustUser(c).ID, parseIntDefault(c.Query("limit"), 50))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// @Summary  Compare the balance with the ledger
// @Security BearerAuth
// @Success  200 {object} domain.WalletAudit
// @Router   /wallet/audit [get]
func (h *Handler) audit(c *gin.Context) {
	a, err := h.svcs.Wallet.Audit(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary  Pass catalog
// @Success  200 {array} membership.Plan
// @Router   /passes/catalog [get]
func (h *Handler) passCatalog(c *gin.Context) {
	writeCached(c, http.StatusOK, membership.Catalog(), time.Hour, true)
}

// @Summary  Buy a pass with the wallet
// @Security BearerAuth
// @Param    req body  PurchasePassRequest true "payload"
// @Success  201 {object} domain.Pass
// @Failure  402 {object} ErrorResponse "insufficient balance"
// @Router   /passes [post]
func (h *Handler) purchasePass(c *gin.Context) {
	var req PurchasePassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	p, err := h.svcs.Membership.PurchasePass(c.Request.Context(), mustUser(c).ID, uuid.MustParse(req.CafeID), req.PassType)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

// @Summary  My passes
// @Security BearerAuth
// @Success  200 {array} domain.Pass
// @Router   /passes [get]
func (h *Handler) listPasses(c *gin.Context) {
	out, err := h.svcs.Membership.ListPasses(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary  Apply a referral code
// @Security BearerAuth
// @Param    req body  ReferralRequest true "payload"
// @Success  200 {object} membership.ReferralResult
// @Failure  409 {object} ErrorResponse "already referred"
// @Router   /referrals [post]
func (h *Handler) applyReferral(c *gin.Context) {
	var req ReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.svcs.Membership.ApplyReferral(c.Request.Context(), mustUser(c).ID, req.Code)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
