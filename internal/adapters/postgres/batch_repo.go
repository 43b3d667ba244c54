package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/learnhub/internal/domain/lms"
	apperrors "github.com/target/learnhub/internal/errors"
	"github.com/target/learnhub/internal/ports"
)

// BatchRepo reads batches and the rows hanging off them.
type BatchRepo struct {
	DB      *sql.DB
	Timeout time.Duration
}

var _ ports.BatchReader = (*BatchRepo)(nil)

// NewBatchRepo creates a BatchRepo.
func NewBatchRepo(db *sql.DB, timeout time.Duration) *BatchRepo {
	return &BatchRepo{DB: db, Timeout: timeout}
}

const batchColumns = `
	b.id::text AS id,
	b.name,
	COALESCE(b.description, '') AS description,
	b.start_date,
	b.end_date,
	COALESCE(b.trainer_id::text, '') AS trainer_id,
	COALESCE(t.full_name, '') AS trainer_name,
	COALESCE(t.email, '') AS trainer_email,
	b.status,
	COALESCE(b.max_learners, 0) AS max_learners,
	COALESCE(b.current_learners, 0) AS current_learners,
	b.created_at,
	b.updated_at`

// BatchRow is the scanned shape of batchColumns. It is embedded by row types
// that join batches.
type BatchRow struct {
	ID              string    `db:"id"`
	Name            string    `db:"name"`
	Description     string    `db:"description"`
	StartDate       time.Time `db:"start_date"`
	EndDate         time.Time `db:"end_date"`
	TrainerID       string    `db:"trainer_id"`
	TrainerName     string    `db:"trainer_name"`
	TrainerEmail    string    `db:"trainer_email"`
	Status          string    `db:"status"`
	MaxLearners     int       `db:"max_learners"`
	CurrentLearners int       `db:"current_learners"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r BatchRow) toDomain() lms.Batch {
	return lms.Batch{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		TrainerID:   r.TrainerID,
		Trainer: lms.UserSummary{
			ID:       r.TrainerID,
			FullName: r.TrainerName,
			Email:    r.TrainerEmail,
		},
		Status:          lms.BatchStatus(r.Status),
		MaxLearners:     r.MaxLearners,
		CurrentLearners: r.CurrentLearners,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// ListBatches returns batches newest first, optionally only one trainer's.
func (r *BatchRepo) ListBatches(ctx context.Context, filter lms.BatchFilter) ([]lms.Batch, error) {
	var where whereClause
	if filter.TrainerID != "" {
		where.add("b.trainer_id = $%d", filter.TrainerID)
	}
	query := "SELECT" + batchColumns + `
	FROM batches b
	LEFT JOIN users t ON t.id = b.trainer_id` + where.String() + `
	ORDER BY b.created_at DESC`
	args := where.args
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	var out []lms.Batch
	err := withPgxConn(ctx, r.DB, r.Timeout, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		batches, err := pgx.CollectRows(rows, pgx.RowToStructByName[BatchRow])
		if err != nil {
			return err
		}
		out = make([]lms.Batch, 0, len(batches))
		for _, b := range batches {
			out = append(out, b.toDomain())
		}
		return nil
	})
	return out, err
}

// GetBatch returns one batch; a missing batch is NotFound.
func (r *BatchRepo) GetBatch(ctx context.Context, id string) (lms.Batch, error) {
	if id == "" {
		return lms.Batch{}, apperrors.ValidationField("batch", "batch id is required")
	}
	query := "SELECT" + batchColumns + `
	FROM batches b
	LEFT JOIN users t ON t.id = b.trainer_id
	WHERE b.id = $1`

	var out lms.Batch
	err := withPgxConn(ctx, r.DB, r.Timeout, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, id)
		if err != nil {
			return err
		}
		row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[BatchRow])
		if err != nil {
			return err
		}
		out = row.toDomain()
		return nil
	})
	return out, err
}

type enrollmentRow struct {
	EnrollmentID         string    `db:"enrollment_id"`
	BatchID              string    `db:"batch_id"`
	LearnerID            string    `db:"learner_id"`
	EnrolledAt           time.Time `db:"enrolled_at"`
	EnrollmentStatus     string    `db:"enrollment_status"`
	CompletionPercentage float64   `db:"completion_percentage"`
	FinalGrade           string    `db:"final_grade"`
	BatchRow
}

// ListEnrollments returns a learner's active enrollments with their batches.
func (r *BatchRepo) ListEnrollments(ctx context.Context, learnerID string) ([]lms.Enrollment, error) {
	query := `
	SELECT e.id::text AS enrollment_id,
	       e.batch_id::text AS batch_id,
	       e.learner_id::text AS learner_id,
	       e.enrolled_at,
	       e.status AS enrollment_status,
	       COALESCE(e.completion_percentage, 0)::float8 AS completion_percentage,
	       COALESCE(e.final_grade, '') AS final_grade,` + batchColumns + `
	FROM batch_enrollments e
	JOIN batches b ON b.id = e.batch_id
	LEFT JOIN users t ON t.id = b.trainer_id
	WHERE e.learner_id = $1 AND e.status = $2
	ORDER BY e.enrolled_at DESC`

	var out []lms.Enrollment
	err := withPgxConn(ctx, r.DB, r.Timeout, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, learnerID, string(lms.EnrollmentActive))
		if err != nil {
			return err
		}
		items, err := pgx.CollectRows(rows, pgx.RowToStructByName[enrollmentRow])
		if err != nil {
			return err
		}
		out = make([]lms.Enrollment, 0, len(items))
		for _, e := range items {
			out = append(out, lms.Enrollment{
				ID:                   e.EnrollmentID,
				BatchID:              e.BatchID,
				LearnerID:            e.LearnerID,
				EnrolledAt:           e.EnrolledAt,
				Status:               lms.EnrollmentStatus(e.EnrollmentStatus),
				CompletionPercentage: e.CompletionPercentage,
				FinalGrade:           e.FinalGrade,
				Batch:                e.BatchRow.toDomain(),
			})
		}
		return nil
	})
	return out, err
}

type assignmentRow struct {
	ID          string    `db:"id"`
	BatchID     string    `db:"batch_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	DueDate     time.Time `db:"due_date"`
	MaxScore    int       `db:"max_score"`
	CreatedBy   string    `db:"created_by"`
}

// ListAssignments returns a batch's assignments by due date.
func (r *BatchRepo) ListAssignments(ctx context.Context, batchID string) ([]lms.Assignment, error) {
	const query = `
	SELECT id::text AS id,
	       batch_id::text AS batch_id,
	       title,
	       COALESCE(description, '') AS description,
	       due_date,
	       COALESCE(max_score, 0) AS max_score,
	       COALESCE(created_by::text, '') AS created_by
	FROM assignments
	WHERE batch_id = $1
	ORDER BY due_date ASC`

	var out []lms.Assignment
	err := withPgxConn(ctx, r.DB, r.Timeout, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, batchID)
		if err != nil {
			return err
		}
		items, err := pgx.CollectRows(rows, pgx.RowToStructByName[assignmentRow])
		if err != nil {
			return err
		}
		out = make([]lms.Assignment, 0, len(items))
		for _, a := range items {
			out = append(out, lms.Assignment(a))
		}
		return nil
	})
	return out, err
}

type attendanceRow struct {
	ID           string    `db:"id"`
	BatchID      string    `db:"batch_id"`
	LearnerID    string    `db:"learner_id"`
	LearnerName  string    `db:"learner_name"`
	LearnerEmail string    `db:"learner_email"`
	Date         time.Time `db:"date"`
	Status       string    `db:"status"`
	MarkedBy     string    `db:"marked_by"`
	MarkedAt     time.Time `db:"marked_at"`
	Notes        string    `db:"notes"`
}

// ListAttendance returns a batch's attendance newest day first, optionally
// for a single day.
func (r *BatchRepo) ListAttendance(ctx context.Context, batchID string, date *time.Time) ([]lms.AttendanceRecord, error) {
	var where whereClause
	where.add("a.batch_id = $%d", batchID)
	if date != nil {
		where.add("a.date = $%d::date", date.Format(time.DateOnly))
	}
	query := `
	SELECT a.id::text AS id,
	       a.batch_id::text AS batch_id,
	       a.learner_id::text AS learner_id,
	       COALESCE(u.full_name, '') AS learner_name,
	       COALESCE(u.email, '') AS learner_email,
	       a.date,
	       a.status,
	       COALESCE(a.marked_by::text, '') AS marked_by,
	       a.marked_at,
	       COALESCE(a.notes, '') AS notes
	FROM attendance a
	LEFT JOIN users u ON u.id = a.learner_id` + where.String() + `
	ORDER BY a.date DESC, learner_name ASC`

	var out []lms.AttendanceRecord
	err := withPgxConn(ctx, r.DB, r.Timeout, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, where.args...)
		if err != nil {
			return err
		}
		items, err := pgx.CollectRows(rows, pgx.RowToStructByName[attendanceRow])
		if err != nil {
			return err
		}
		out = make([]lms.AttendanceRecord, 0, len(items))
		for _, a := range items {
			out = append(out, lms.AttendanceRecord{
				ID:       a.ID,
				BatchID:  a.BatchID,
				Learner:  lms.UserSummary{ID: a.LearnerID, FullName: a.LearnerName, Email: a.LearnerEmail},
				Date:     a.Date,
				Status:   lms.AttendanceStatus(a.Status),
				MarkedBy: a.MarkedBy,
				MarkedAt: a.MarkedAt,
				Notes:    a.Notes,
			})
		}
		return nil
	})
	return out, err
}
