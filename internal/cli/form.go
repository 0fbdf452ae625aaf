package cli

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/api"
)

// ActivityTypes lists the selectable activity types in display order.
var ActivityTypes = []string{"Travel", "Electricity", "Gas", "Water", "Waste", "Diet", "Other"}

// Units maps each activity type to its allowed units. The first entry is the default.
var Units = map[string][]string{
	"Travel":      {"km", "miles", "liters of fuel"},
	"Electricity": {"kWh"},
	"Gas":         {"kWh", "m³"},
	"Water":       {"liters", "m³"},
	"Waste":       {"kg"},
	"Diet":        {"kg of meat"},
	"Other":       {"unit"},
}

// FormErrors collects per-field problems found before a request is sent.
type FormErrors map[string]string

func (e FormErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return "invalid activity: " + strings.Join(parts, "; ")
}

// DefaultUnit returns the first unit allowed for activityType.
func DefaultUnit(activityType string) string {
	if units := Units[activityType]; len(units) > 0 {
		return units[0]
	}
	return ""
}

// form is the user-entered activity before validation. Nil means "not given".
type form struct {
	ActivityType *string
	Quantity     *float64
	Unit         *string
	Deadline     *string
}

// validate applies the entry rules. When partial is true only supplied fields
// are checked, which is what an edit needs.
func (f form) validate(today time.Time, partial bool) error {
	errs := FormErrors{}

	if f.ActivityType != nil || !partial {
		activityType := strings.TrimSpace(deref(f.ActivityType))
		switch {
		case activityType == "":
			errs["activityType"] = "activity type is required"
		case Units[activityType] == nil:
			errs["activityType"] = fmt.Sprintf("must be one of %s", strings.Join(ActivityTypes, ", "))
		}
	}

	if f.Quantity != nil || !partial {
		if f.Quantity == nil || !validQuantity(*f.Quantity) {
			errs["quantity"] = "quantity must be a non-negative number"
		}
	}

	if f.Unit != nil || !partial {
		unit := strings.TrimSpace(deref(f.Unit))
		if unit == "" {
			errs["unit"] = "unit is required"
		} else if f.ActivityType != nil && !allowed(deref(f.ActivityType), unit) {
			if units := Units[deref(f.ActivityType)]; units != nil {
				errs["unit"] = fmt.Sprintf("%s is measured in %s", deref(f.ActivityType), strings.Join(units, ", "))
			}
		}
	}

	if f.Deadline != nil && strings.TrimSpace(*f.Deadline) != "" {
		if err := checkDeadline(*f.Deadline, today); err != nil {
			errs["deadline"] = err.Error()
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (f form) request() api.ActivityRequest {
	return api.ActivityRequest{
		ActivityType: f.ActivityType,
		Quantity:     f.Quantity,
		Unit:         f.Unit,
		Deadline:     f.Deadline,
	}
}

func allowed(activityType, unit string) bool {
	for _, u := range Units[activityType] {
		if u == unit {
			return true
		}
	}
	return false
}

func checkDeadline(raw string, today time.Time) error {
	d, err := api.ParseDate(raw)
	if err != nil {
		return errors.New("deadline must be YYYY-MM-DD")
	}
	if d.UTC().Format(api.DateLayout) < today.UTC().Format(api.DateLayout) {
		return errors.New("deadline cannot be in the past")
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func validQuantity(q float64) bool {
	return !math.IsNaN(q) && !math.IsInf(q, 0) && q >= 0
}
