package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/domain"
)

// DateLayout is the calendar-date form accepted and emitted for activity dates.
const DateLayout = "2006-01-02"

// ActivityRequest is the payload for POST and PUT on /api/activities.
// Absent fields stay nil so updates can tell "not sent" from zero.
type ActivityRequest struct {
	ActivityType *string  `json:"activityType"`
	Quantity     *float64 `json:"quantity"`
	Unit         *string  `json:"unit"`
	Date         *string  `json:"date"`
	Deadline     *string  `json:"deadline"`
}

// date resolves date/deadline; date wins when both are present.
func (r ActivityRequest) date() (*time.Time, error) {
	raw := r.Date
	field := "date"
	if raw == nil || strings.TrimSpace(*raw) == "" {
		raw, field = r.Deadline, "deadline"
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := ParseDate(*raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD or RFC 3339", field)
	}
	return &parsed, nil
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ActivityView is the JSON representation of an activity. The id and the
// date are each exposed under both of their historical names.
type ActivityView struct {
	MongoID      string    `json:"_id"`
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ActivityType string    `json:"activityType"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit"`
	Date         *string   `json:"date,omitempty"`
	Deadline     *string   `json:"deadline,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MessageResponse carries a confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func toActivityView(a domain.Activity) ActivityView {
	view := ActivityView{
		MongoID:      a.ID,
		ID:           a.ID,
		UserID:       a.OwnerID,
		ActivityType: a.ActivityType,
		Quantity:     a.Quantity,
		Unit:         a.Unit,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if a.Date != nil {
		formatted := a.Date.UTC().Format(DateLayout)
		view.Date = &formatted
		view.Deadline = &formatted
	}
	return view
}
