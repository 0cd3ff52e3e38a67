package models

import "time"

// Batch is a class group owned by exactly one teacher. Code is stored
// uppercase and unique. Version backs the optimistic concurrency check on
// field updates and deletes.
type Batch struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Class     string    `db:"class" json:"class"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BatchDetail extends a batch with its enrolled students.
type BatchDetail struct {
	Batch
	Students []UserInfo `json:"students"`
}

// BatchMember is one enrolled student reference.
type BatchMember struct {
	BatchID   string    `db:"batch_id" json:"batch_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	JoinedAt  time.Time `db:"joined_at" json:"joined_at"`
}
