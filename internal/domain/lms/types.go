// Package lms holds the read models shown on the role dashboards. Rows come
// from the hosted backend; nothing here is written back.
package lms

import "time"

// BatchStatus is the lifecycle of a batch.
type BatchStatus string

const (
	BatchActive    BatchStatus = "active"
	BatchCompleted BatchStatus = "completed"
	BatchUpcoming  BatchStatus = "upcoming"
)

// EnrollmentStatus is the lifecycle of a learner's enrollment.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
)

// AttendanceStatus is a per-day attendance mark.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
)

// UserSummary is the joined user columns displayed next to a row.
type UserSummary struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Batch is a cohort of learners led by a trainer.
type Batch struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	StartDate       time.Time   `json:"start_date"`
	EndDate         time.Time   `json:"end_date"`
	TrainerID       string      `json:"trainer_id"`
	Trainer         UserSummary `json:"trainer"`
	Status          BatchStatus `json:"status"`
	MaxLearners     int         `json:"max_learners"`
	CurrentLearners int         `json:"current_learners"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// BatchFilter narrows ListBatches. An empty TrainerID lists every batch.
type BatchFilter struct {
	TrainerID string
	Limit     int
}

// Enrollment links a learner to a batch.
type Enrollment struct {
	ID                   string           `json:"id"`
	BatchID              string           `json:"batch_id"`
	LearnerID            string           `json:"learner_id"`
	EnrolledAt           time.Time        `json:"enrolled_at"`
	Status               EnrollmentStatus `json:"status"`
	CompletionPercentage float64          `json:"completion_percentage"`
	FinalGrade           string           `json:"final_grade,omitempty"`
	Batch                Batch            `json:"batch"`
}

// Assignment is coursework attached to a batch.
type Assignment struct {
	ID          string    `json:"id"`
	BatchID     string    `json:"batch_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	MaxScore    int       `json:"max_score"`
	CreatedBy   string    `json:"created_by"`
}

// AttendanceRecord is one learner's mark for one day.
type AttendanceRecord struct {
	ID       string           `json:"id"`
	BatchID  string           `json:"batch_id"`
	Learner  UserSummary      `json:"learner"`
	Date     time.Time        `json:"date"`
	Status   AttendanceStatus `json:"status"`
	MarkedBy string           `json:"marked_by"`
	MarkedAt time.Time        `json:"marked_at"`
	Notes    string           `json:"notes,omitempty"`
}

// BatchStats summarizes a batch list for the admin overview.
type BatchStats struct {
	Total    int
	Active   int
	Learners int
}

// SummarizeBatches counts batches, active batches and enrolled learners.
func SummarizeBatches(batches []Batch) BatchStats {
	stats := BatchStats{Total: len(batches)}
	for _, b := range batches {
		if b.Status == BatchActive {
			stats.Active++
		}
		stats.Learners += b.CurrentLearners
	}
	return stats
}

// AttendanceTally counts marks by status.
type AttendanceTally struct {
	Present int
	Absent  int
	Late    int
}

// TallyAttendance counts records by status.
func TallyAttendance(records []AttendanceRecord) AttendanceTally {
	var t AttendanceTally
	for _, r := range records {
		switch r.Status {
		case AttendancePresent:
			t.Present++
		case AttendanceAbsent:
			t.Absent++
		case AttendanceLate:
			t.Late++
		}
	}
	return t
}
