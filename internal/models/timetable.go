package models

import "time"

// Weekday enumerates the teaching days, Monday through Saturday.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
)

// Weekdays lists the teaching days in order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// Valid returns true when the weekday is a teaching day.
func (d Weekday) Valid() bool {
	for _, day := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// Timetable hours run 1 through 8.
const (
	MinHour = 1
	MaxHour = 8
)

// TimetableEntry is one (day, hour) schedule slot within a batch. At most one
// entry exists per (batch, day, hour).
type TimetableEntry struct {
	ID        string    `db:"id" json:"id"`
	BatchID   string    `db:"batch_id" json:"batch_id"`
	Day       Weekday   `db:"day" json:"day"`
	Hour      int       `db:"hour" json:"hour"`
	Subject   string    `db:"subject" json:"subject"`
	Teacher   *string   `db:"teacher" json:"teacher,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimetableWeek groups entries by day for the weekly view.
type TimetableWeek struct {
	BatchID string                       `json:"batch_id"`
	Days    map[Weekday][]TimetableEntry `json:"days"`
}
