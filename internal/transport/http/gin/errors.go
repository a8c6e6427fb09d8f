package httpgin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/gamecafe/internal/domain"
)

var errorStatuses = []struct {
	target error
	status int
	msg    string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not found"},
	{domain.ErrDeviceUnavailable, http.StatusConflict, "device unavailable"},
	{domain.ErrInvalidState, http.StatusConflict, "invalid state"},
	{domain.ErrCouponLimitReached, http.StatusConflict, "coupon usage limit reached"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient balance"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "invalid amount"},
	{domain.ErrInvalidCoupon, http.StatusBadRequest, "invalid coupon"},
	{domain.ErrCouponExpired, http.StatusBadRequest, "coupon expired"},
	{domain.ErrValidation, http.StatusUnprocessableEntity, "validation error"},
	{domain.ErrUpstreamUnavailable, http.StatusServiceUnavailable, "upstream unavailable"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate limited"},
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var ve domain.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: ve.Reason, Field: ve.Field})
		return
	}

	var du domain.DeviceUnavailableError
	if errors.As(err, &du) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: du.Error()})
		return
	}

	var is domain.InvalidStateError
	if errors.As(err, &is) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: is.Error()})
		return
	}

	for _, e := range errorStatuses {
		if errors.Is(err, e.target) {
			switch e.status {
			case http.StatusTooManyRequests:
				c.Header("Retry-After", "60")
			case http.StatusServiceUnavailable:
				c.Header("Retry-After", "5")
			}
			c.JSON(e.status, ErrorResponse{Error: e.msg})
			return
		}
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
