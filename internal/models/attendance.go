package models

import "time"

// AttendanceStatus represents a per-student attendance status.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	return s == AttendancePresent || s == AttendanceAbsent
}

// AttendanceRecord is the register for one (batch, date) pair. At most one
// record exists per pair.
type AttendanceRecord struct {
	ID        string    `db:"id" json:"id"`
	BatchID   string    `db:"batch_id" json:"batch_id"`
	Date      time.Time `db:"date" json:"date"`
	MarkedBy  string    `db:"marked_by" json:"marked_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceEntry is one student's status row within a record.
type AttendanceEntry struct {
	AttendanceID string           `db:"attendance_id" json:"-"`
	StudentID    string           `db:"student_id" json:"student_id"`
	Status       AttendanceStatus `db:"status" json:"status"`
}

// AttendanceRecordDetail bundles a record with its entries.
type AttendanceRecordDetail struct {
	AttendanceRecord
	Entries []AttendanceEntry `json:"entries"`
}

// AttendanceFilter scopes attendance queries.
type AttendanceFilter struct {
	BatchID   string
	StudentID string
	DateFrom  *time.Time
	DateTo    *time.Time
}

// AttendanceSummary carries derived statistics for a single student.
// Percentage is present/total*100 rounded to two decimals, 0 when no classes
// were held.
type AttendanceSummary struct {
	BatchID      string  `json:"batch_id"`
	StudentID    string  `json:"student_id"`
	TotalClasses int     `json:"total_classes"`
	Present      int     `json:"present"`
	Absent       int     `json:"absent"`
	Percentage   float64 `json:"percentage"`
}
