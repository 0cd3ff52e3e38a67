package models

import "time"

// Test is an exam definition scoped to a batch.
type Test struct {
	ID        string    `db:"id" json:"id"`
	BatchID   string    `db:"batch_id" json:"batch_id"`
	ExamName  string    `db:"exam_name" json:"exam_name"`
	Subject   string    `db:"subject" json:"subject"`
	MaxMarks  int       `db:"max_marks" json:"max_marks"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TestMark is one student's marks row for a test. At most one row exists per
// (test, student); later writes replace marks and remarks.
type TestMark struct {
	TestID    string    `db:"test_id" json:"test_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Marks     int       `db:"marks" json:"marks"`
	Remarks   *string   `db:"remarks" json:"remarks,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TestDetail bundles a test with its recorded marks.
type TestDetail struct {
	Test
	Marks []TestMark `json:"marks"`
}
