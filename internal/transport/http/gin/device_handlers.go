package httpgin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/service/device"
)

// @Summary  Add device
// @Security BearerAuth
// @Param    id  path  string  true  "Cafe ID"
// @Param    req body  CreateDeviceRequest true "payload"
// @Success  201 {object} domain.Device
// @Failure  422 {object} ErrorResponse
// @Router   /cafes/{id}/devices [post]
func (h *Handler) createDevice(c *gin.Context) {
	cafeID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !h.manage(c, cafeID) {
		return
	}

	d, err := h.svcs.Devices.Create(c.Request.Context(), cafeID, device.Spec{
		Name:           req.Name,
		Type:           req.Type,
		Specifications: req.Specifications,
		HourlyRate:     req.HourlyRate,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, d)
}

// @Summary  List cafe devices
// @Security BearerAuth
// @Param    id  path  string  true  "Cafe ID"
// @Success  200 {array} domain.Device
// @Router   /cafes/{id}/devices [get]
func (h *Handler) listDevices(c *gin.Context) {
	cafeID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	devices, err := h.svcs.Devices.ListByCafe(c.Request.Context(), cafeID)
	if err != nil {
		respondErr(c, err)
		return
	}

	// the websocket board carries live changes
	writeCached(c, http.StatusOK, devices, 5*time.Second, false)
}

// @Summary  Get device
// @Security BearerAuth
// @Param    id  path  string  true  "Device ID"
// @Success  200 {object} domain.Device
// @Router   /devices/{id} [get]
func (h *Handler) getDevice(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	d, err := h.svcs.Devices.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, d)
}

// @Summary  Effective hourly rate now
// @Security BearerAuth
// @Param    id  path  string  true  "Device ID"
// @Success  200 {object} RateResponse
// @Router   /devices/{id}/rate [get]
func (h *Handler) deviceRate(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	d, err := h.svcs.Devices.Get(ctx, id)
	if err != nil {
		respondErr(c, err)
		return
	}

	at := time.Now().UTC()
	rate, err := h.svcs.Pricing.ResolveRate(ctx, d.HourlyRate, d.CafeID, at)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, RateResponse{
		DeviceID:      d.ID.String(),
		BaseRate:      d.HourlyRate,
		EffectiveRate: rate,
		At:            at,
	})
}

// deviceToManage loads the path device and checks the caller manages its café.
func (h *Handler) deviceToManage(c *gin.Context) (domain.Device, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return domain.Device{}, false
	}
	d, err := h.svcs.Devices.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return domain.Device{}, false
	}
	if !h.manage(c, d.CafeID) {
		return domain.Device{}, false
	}
	return d, true
}

// @Summary  Overwrite device status
// @Security BearerAuth
// @Param    id  path  string  true  "Device ID"
// @Param    req body  SetDeviceStatusRequest true "payload"
// @Success  200 {object} domain.Device
// @Router   /devices/{id}/status [patch]
func (h *Handler) setDeviceStatus(c *gin.Context) {
	var req SetDeviceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	d, ok := h.deviceToManage(c)
	if !ok {
		return
	}

	d, err := h.svcs.Devices.SetStatus(c.Request.Context(), d.ID, req.Status)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, d)
}

// @Summary  Deactivate device
// @Security BearerAuth
// @Param    id  path  string  true  "Device ID"
// @Success  204
// @Failure  409 {object} ErrorResponse "device in use"
// @Router   /devices/{id} [delete]
func (h *Handler) deactivateDevice(c *gin.Context) {
	d, ok := h.deviceToManage(c)
	if !ok {
		return
	}

	if err := h.svcs.Devices.Deactivate(c.Request.Context(), d.ID); err != nil {
		respondErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary  Schedule maintenance
// @Security BearerAuth
// @Param    id  path  string  true  "Device ID"
// @Param    req body  ScheduleMaintenanceRequest true "payload"
// @Success  201 {object} domain.MaintenanceRecord
// @Failure  409 {object} ErrorResponse "device not available"
// @Router   /devices/{id}/maintenance [post]
func (h *Handler) scheduleMaintenance(c *gin.Context) {
	var req ScheduleMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	d, ok := h.deviceToManage(c)
	if !ok {
		return
	}

	rec, err := h.svcs.Devices.ScheduleMaintenance(c.Request.Context(), d.ID, device.MaintenanceInput{
		IssueDescription: req.IssueDescription,
		MaintenanceType:  req.MaintenanceType,
		ScheduledDate:    req.ScheduledDate,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// @Summary  Complete maintenance
// @Security BearerAuth
// @Param    id  path  string  true  "Maintenance record ID"
// @Param    req body  CompleteMaintenanceRequest true "payload"
// @Success  200 {object} domain.MaintenanceRecord
// @Router   /maintenance/{id}/complete [post]
func (h *Handler) completeMaintenance(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req CompleteMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	rec, err := h.svcs.Devices.GetMaintenance(ctx, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	if !h.manage(c, rec.CafeID) {
		return
	}

	rec, err = h.svcs.Devices.CompleteMaintenance(ctx, id, req.Cost, req.Notes)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// @Summary  List maintenance records
// @Security BearerAuth
// @Param    id  path  string  true  "Cafe ID"
// @Success  200 {array} domain.MaintenanceRecord
// @Router   /cafes/{id}/maintenance [get]
func (h *Handler) listMaintenance(c *gin.Context) {
	cafeID, ok := uuidParam(c, "id")
	if !ok || !h.manage(c, cafeID) {
		return
	}

	recs, err := h.svcs.Devices.ListMaintenance(c.Request.Context(), cafeID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, recs)
}

// @Summary  Record a device health metric
// @Security BearerAuth
// @Param    id  path  string  true  "Device ID"
// @Param    req body  HealthLogRequest true "payload"
// @Success  201 {object} domain.DeviceHealthLog
// @Router   /devices/{id}/health-log [post]
func (h *Handler) logDeviceHealth(c *gin.Context) {
	var req HealthLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	d, ok := h.deviceToManage(c)
	if !ok {
		return
	}

	l, err := h.svcs.Devices.LogHealth(c.Request.Context(), d.ID, req.Metric, req.Value)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, l)
}

// @Summary  Device health history
// @Security BearerAuth
// @Param    id  path  string  true  "Device ID"
// @Success  200 {array} domain.DeviceHealthLog
// @Router   /devices/{id}/health [get]
func (h *Handler) deviceHealth(c *gin.Context) {
	d, ok := h.deviceToManage(c)
	if !ok {
		return
	}

	logs, err := h.svcs.Devices.Health(c.Request.Context(), d.ID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, logs)
}
