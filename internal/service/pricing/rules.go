package pricing

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kirinyoku/gamecafe/internal/domain"
)

// parseClock turns "HH:MM" into minutes after midnight.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}

	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%q has an invalid hour", s)
	}

	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%q has invalid minutes", s)
	}

	return h*60 + m, nil
}

// Weekday numbers days from 0 = Monday to 6 = Sunday.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// inWindow reports whether minute falls in [start, end). A window whose end is not after
// its start wraps past midnight; start == end covers the whole day.
func inWindow(minute, start, end int) bool {
	switch {
	case start == end:
		return true
	case start < end:
		return minute >= start && minute < end
	default:
		return minute >= start || minute < end
	}
}

// Applies reports whether an active rule covers the instant at. at must already be in
// the café's time zone. A rule without a window covers the whole day and a rule without
// days covers every day.
func Applies(rule domain.PricingRule, at time.Time) bool {
	if !rule.IsActive {
		return false
	}

	if len(rule.DaysOfWeek) > 0 && !slices.Contains(rule.DaysOfWeek, Weekday(at)) {
		return false
	}

	if rule.StartTime == "" && rule.EndTime == "" {
		return true
	}

	start, err := parseClock(rule.StartTime)
	if err != nil {
		return false
	}
	end, err := parseClock(rule.EndTime)
	if err != nil {
		return false
	}

	return inWindow(at.Hour()*60+at.Minute(), start, end)
}

// EffectiveRate multiplies base by the multiplier of every rule that applies at at.
func EffectiveRate(base float64, rules []domain.PricingRule, at time.Time) float64 {
	rate := base
	for _, r := range rules {
		if Applies(r, at) {
			rate *= r.Multiplier
		}
	}
	return rate
}

// ApplyDiscount returns amount after the discount, never below zero. When minAmount is
// set and amount is below it the discount does not apply.
func ApplyDiscount(amount float64, kind domain.DiscountType, value float64, minAmount *float64) float64 {
	if minAmount != nil && amount < *minAmount {
		return math.Max(0, amount)
	}

	var out float64
	switch kind {
	case domain.DiscountPercentage:
		out = amount * (1 - value/100)
	case domain.DiscountFixed:
		out = amount - value
	default:
		out = amount
	}

	return math.Max(0, out)
}

// RoundMoney rounds to paise.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func validateRule(in RuleInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.ValidationError{Field: "name", Reason: "required"}
	}

	if !in.Type.Valid() {
		return domain.ValidationError{Field: "rule_type", Reason: fmt.Sprintf("unknown type %q", in.Type)}
	}

	if !(in.Multiplier > 0) || math.IsInf(in.Multiplier, 0) {
		return domain.ValidationError{Field: "multiplier", Reason: "must be positive"}
	}

	if (in.StartTime == "") != (in.EndTime == "") {
		return domain.ValidationError{Field: "start_time", Reason: "start_time and end_time go together"}
	}

	if in.StartTime != "" {
		if _, err := parseClock(in.StartTime); err != nil {
			return domain.ValidationError{Field: "start_time", Reason: err.Error()}
		}
		if _, err := parseClock(in.EndTime); err != nil {
			return domain.ValidationError{Field: "end_time", Reason: err.Error()}
		}
	}

	for _, d := range in.DaysOfWeek {
		if d < 0 || d > 6 {
			return domain.ValidationError{Field: "days_of_week", Reason: "days run from 0 (Monday) to 6 (Sunday)"}
		}
	}

	return nil
}
