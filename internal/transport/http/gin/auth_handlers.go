package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/gamecafe/internal/service/auth"
)

// @Summary  Request a login code
// @Param    req body  OTPRequest true "payload"
// @Success  200 {object} OTPResponse
// @Failure  422 {object} ErrorResponse
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /auth/otp [post]
func (h *Handler) requestOTP(c *gin.Context) {
	var req OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.svcs.Auth.RequestOTP(c.Request.Context(), req.Phone)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, OTPResponse{
		Message:   "OTP sent",
		ExpiresIn: int(res.ExpiresIn.Seconds()),
		OTP:       res.Code,
	})
}

// @Summary  Verify a login code
// @Param    req body  VerifyOTPRequest true "payload"
// @Success  200 {object} auth.Session
// @Failure  401 {object} ErrorResponse
// @Router   /auth/verify [post]
func (h *Handler) verifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	sess, err := h.svcs.Auth.VerifyOTP(c.Request.Context(), req.Phone, req.OTP)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, sess)
}

// @Summary  Register
// @Param    req body  RegisterRequest true "payload"
// @Success  201 {object} auth.Session
// @Failure  409 {object} ErrorResponse "phone taken"
// @Router   /auth/register [post]
func (h *Handler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	sess, err := h.svcs.Auth.Register(c.Request.Context(), auth.RegisterInput{
		Phone: req.Phone,
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, sess)
}

// @Summary  Current user
// @Security BearerAuth
// @Success  200 {object} domain.User
// @Router   /me [get]
func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, mustUser(c))
}
