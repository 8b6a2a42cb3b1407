package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// WeeklyHours maps a weekday (0 = Sunday ... 6 = Saturday) to study hours.
// Stored as JSONB.
type WeeklyHours map[int]float64

// Value implements driver.Valuer.
func (h WeeklyHours) Value() (driver.Value, error) {
	if h == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner.
func (h *WeeklyHours) Scan(src interface{}) error {
	if src == nil {
		*h = WeeklyHours{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("weekly hours: unsupported scan type %T", src)
	}
	// JSON object keys are strings; decode and convert.
	decoded := map[string]float64{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("weekly hours: %w", err)
	}
	result := make(WeeklyHours, len(decoded))
	for key, hours := range decoded {
		var day int
		if _, err := fmt.Sscanf(key, "%d", &day); err != nil {
			continue
		}
		if day >= 0 && day <= 6 {
			result[day] = hours
		}
	}
	*h = result
	return nil
}

// Total returns the sum of configured weekly hours.
func (h WeeklyHours) Total() float64 {
	var total float64
	for _, hours := range h {
		total += hours
	}
	return total
}

// StudyPlan represents a user's study project tied to one exam date.
type StudyPlan struct {
	ID                     string      `db:"id" json:"id"`
	UserID                 string      `db:"user_id" json:"user_id"`
	PlanName               string      `db:"plan_name" json:"plan_name"`
	ExamDate               time.Time   `db:"exam_date" json:"exam_date"`
	StudyHoursPerDay       WeeklyHours `db:"study_hours_per_day" json:"study_hours_per_day"`
	SessionDurationMinutes int         `db:"session_duration_minutes" json:"session_duration_minutes"`
	HasEssay               bool        `db:"has_essay" json:"has_essay"`
	RetaFinalMode          bool        `db:"reta_final_mode" json:"reta_final_mode"`
	CreatedAt              time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time   `db:"updated_at" json:"updated_at"`
}
