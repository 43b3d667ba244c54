package ports

import (
	"context"
	"time"

	"github.com/target/learnhub/internal/domain/lms"
)

// BatchReader reads dashboard data from the hosted backend.
type BatchReader interface {
	// ListBatches returns batches newest first.
	ListBatches(ctx context.Context, filter lms.BatchFilter) ([]lms.Batch, error)
	GetBatch(ctx context.Context, id string) (lms.Batch, error)
	// ListEnrollments returns the learner's active enrollments with their batches.
	ListEnrollments(ctx context.Context, learnerID string) ([]lms.Enrollment, error)
	// ListAssignments returns a batch's assignments ordered by due date.
	ListAssignments(ctx context.Context, batchID string) ([]lms.Assignment, error)
	// ListAttendance returns a batch's attendance newest first, optionally for one day.
	ListAttendance(ctx context.Context, batchID string, date *time.Time) ([]lms.AttendanceRecord, error)
}
