package insight

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/domain"
)

// ContextVersion is bumped whenever a field changes meaning.
const ContextVersion = 1

// Context is the aggregate snapshot handed to the provider. Optional fields are
// omitted from the prompt when nil.
type Context struct {
	Version          int       `json:"version"`
	CafeID           uuid.UUID `json:"cafe_id"`
	TotalDevices     int       `json:"total_devices"`
	ActiveSessions   int       `json:"active_sessions"`
	TodayRevenue     float64   `json:"today_revenue"`
	MonthRevenue     float64   `json:"month_revenue"`
	AvgUtilization   float64   `json:"avg_utilization"`
	CurrentRate      *float64  `json:"current_rate,omitempty"`
	PeakUsage        *float64  `json:"peak_usage,omitempty"`
	OffPeakUsage     *float64  `json:"offpeak_usage,omitempty"`
	AvgDurationHours *float64  `json:"avg_duration_hours,omitempty"`
}

func (c Context) Validate() error {
	switch {
	case c.Version != ContextVersion:
		return domain.ValidationError{Field: "version", Reason: fmt.Sprintf("unsupported context version %d", c.Version)}
	case c.CafeID == uuid.Nil:
		return domain.ValidationError{Field: "cafe_id", Reason: "required"}
	case c.TotalDevices < 0 || c.ActiveSessions < 0:
		return domain.ValidationError{Field: "counts", Reason: "must not be negative"}
	case c.TodayRevenue < 0 || c.MonthRevenue < 0:
		return domain.ValidationError{Field: "revenue", Reason: "must not be negative"}
	case c.AvgUtilization < 0 || c.AvgUtilization > 100:
		return domain.ValidationError{Field: "avg_utilization", Reason: "must be a percentage"}
	}

	for name, v := range map[string]*float64{
		"current_rate":       c.CurrentRate,
		"peak_usage":         c.PeakUsage,
		"offpeak_usage":      c.OffPeakUsage,
		"avg_duration_hours": c.AvgDurationHours,
	} {
		if v != nil && (*v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return domain.ValidationError{Field: name, Reason: "must be a non-negative number"}
		}
	}

	return nil
}

func (c Context) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total devices: %d\n", c.TotalDevices)
	fmt.Fprintf(&b, "Active sessions: %d\n", c.ActiveSessions)
	fmt.Fprintf(&b, "Today's revenue: %.2f\n", c.TodayRevenue)
	fmt.Fprintf(&b, "This month's revenue: %.2f\n", c.MonthRevenue)
	fmt.Fprintf(&b, "Average utilization: %.1f%%\n", c.AvgUtilization)
	if c.CurrentRate != nil {
		fmt.Fprintf(&b, "Current hourly rate: %.2f\n", *c.CurrentRate)
	}
	if c.PeakUsage != nil {
		fmt.Fprintf(&b, "Peak hours usage: %.1f%%\n", *c.PeakUsage)
	}
	if c.OffPeakUsage != nil {
		fmt.Fprintf(&b, "Off-peak usage: %.1f%%\n", *c.OffPeakUsage)
	}
	if c.AvgDurationHours != nil {
		fmt.Fprintf(&b, "Average session duration: %.2f hours\n", *c.AvgDurationHours)
	}
	return b.String()
}
