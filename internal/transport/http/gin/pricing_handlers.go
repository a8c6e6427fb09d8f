package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/gamecafe/internal/service/pricing"
)

// @Summary  Create pricing rule
// @Security BearerAuth
// @Param    id  path  string  true  "Cafe ID"
// @Param    req body  CreateRuleRequest true "payload"
// @Success  201 {object} domain.PricingRule
// @Router   /cafes/{id}/pricing-rules [post]
func (h *Handler) createRule(c *gin.Context) {
	cafeID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !h.manage(c, cafeID) {
		return
	}

	rule, err := h.svcs.Pricing.CreateRule(c.Request.Context(), cafeID, pricing.RuleInput{
		Name:       req.Name,
		Type:       req.Type,
		Multiplier: req.Multiplier,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		DaysOfWeek: req.DaysOfWeek,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// @Summary  List pricing rules
// @Security BearerAuth
// @Param    id  path  string  true  "Cafe ID"
// @Success  200 {array} domain.PricingRule
// @Router   /cafes/{id}/pricing-rules [get]
func (h *Handler) listRules(c *gin.Context) {
	cafeID, ok := uuidParam(c, "id")
	if !ok || !h.manage(c, cafeID) {
		return
	}

	rules, err := h.svcs.Pricing.ListRules(c.Request.Context(), cafeID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, rules)
}

// @Summary  Enable or disable a pricing rule
// @Security BearerAuth
// @Param    id  path  string  true  "Rule ID"
// @Param    req body  SetRuleActiveRequest true "payload"
// @Success  200 {object} domain.PricingRule
// @Router   /pricing-rules/{id} [patch]
func (h *Handler) setRuleActive(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req SetRuleActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	rule, err := h.svcs.Pricing.GetRule(ctx, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	if !h.manage(c, rule.CafeID) {
		return
	}

	rule, err = h.svcs.Pricing.SetRuleActive(ctx, id, *req.IsActive)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// @Summary  Create coupon
// @Security BearerAuth
// @Param    id  path  string  true  "Cafe ID"
// @Param    req body  CreateCouponRequest true "payload"
// @Success  201 {object} domain.Coupon
// @Failure  409 {object} ErrorResponse "code exists"
// @Router   /cafes/{id}/coupons [post]
func (h *Handler) createCoupon(c *gin.Context) {
	cafeID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !h.manage(c, cafeID) {
		return
	}

	cp, err := h.svcs.Pricing.CreateCoupon(c.Request.Context(), cafeID, pricing.CouponInput{
		Code:          req.Code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MinAmount:     req.MinAmount,
		MaxUses:       req.MaxUses,
		ValidFrom:     req.ValidFrom,
		ValidDays:     req.ValidDays,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, cp)
}

// @Summary  List coupons
// @Security BearerAuth
// @Param    id  path  string  true  "Cafe ID"
// @Success  200 {array} domain.Coupon
// @Router   /cafes/{id}/coupons [get]
func (h *Handler) listCoupons(c *gin.Context) {
	cafeID, ok := uuidParam(c, "id")
	if !ok || !h.manage(c, cafeID) {
		return
	}

	coupons, err := h.svcs.Pricing.ListCoupons(c.Request.Context(), cafeID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, coupons)
}

// @Summary  Preview a coupon discount
// @Security BearerAuth
// @Param    id  path  string  true  "Cafe ID"
// @Param    req body  QuoteCouponRequest true "payload"
// @Success  200 {object} pricing.Quote
// @Failure  400 {object} ErrorResponse "invalid or expired coupon"
// @Router   /cafes/{id}/coupons/quote [post]
func (h *Handler) quoteCoupon(c *gin.Context) {
	cafeID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req QuoteCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	q, err := h.svcs.Pricing.QuoteCoupon(c.Request.Context(), cafeID, req.Code, req.Amount)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, q)
}
