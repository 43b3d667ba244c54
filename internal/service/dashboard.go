package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	domainauth "github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/domain/lms"
	apperrors "github.com/target/learnhub/internal/errors"
	"github.com/target/learnhub/internal/ports"
)

const (
	recentBatchLimit    = 5
	upcomingAssignments = 10
)

// ErrDataUnavailable is returned when no dashboard data source is configured.
var ErrDataUnavailable = apperrors.Unavailable("dashboard data source is not configured")

// DashboardServiceOptions groups dependencies for DashboardService.
type DashboardServiceOptions struct {
	Reader ports.BatchReader // Optional: nil renders dashboards without data
	Logger *slog.Logger      // Optional: structured logger
	Now    func() time.Time  // Optional: injectable clock for tests
}

// DashboardService reads the role dashboards' data for an identity.
type DashboardService struct {
	reader ports.BatchReader
	logger *slog.Logger
	now    func() time.Time
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(opts DashboardServiceOptions) *DashboardService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &DashboardService{
		reader: opts.Reader,
		logger: logger.With("component", "dashboard_service"),
		now:    nowFn,
	}
}

// Overview is the landing page content for one role. Only the fields for the
// identity's role are populated.
type Overview struct {
	Role domainauth.Role

	// admin
	Stats         lms.BatchStats
	RecentBatches []lms.Batch

	// trainer
	Batches  []lms.Batch
	Upcoming []lms.Assignment

	// learner
	Enrollments []lms.Enrollment
}

// Overview loads the dashboard for id's role.
func (s *DashboardService) Overview(ctx context.Context, id domainauth.Identity) (Overview, error) {
	if s.reader == nil {
		return Overview{Role: id.Role}, ErrDataUnavailable
	}

	switch id.Role {
	case domainauth.RoleAdmin:
		return s.adminOverview(ctx)
	case domainauth.RoleTrainer:
		return s.trainerOverview(ctx, id)
	case domainauth.RoleLearner:
		return s.learnerOverview(ctx, id)
	default:
		return Overview{}, &domainauth.UnknownRoleError{Value: string(id.Role)}
	}
}

func (s *DashboardService) adminOverview(ctx context.Context) (Overview, error) {
	batches, err := s.reader.ListBatches(ctx, lms.BatchFilter{})
	if err != nil {
		return Overview{}, fmt.Errorf("list batches: %w", err)
	}
	recent := batches
	if len(recent) > recentBatchLimit {
		recent = recent[:recentBatchLimit]
	}
	return Overview{
		Role:          domainauth.RoleAdmin,
		Stats:         lms.SummarizeBatches(batches),
		RecentBatches: recent,
	}, nil
}

func (s *DashboardService) trainerOverview(ctx context.Context, id domainauth.Identity) (Overview, error) {
	batches, err := s.reader.ListBatches(ctx, lms.BatchFilter{TrainerID: id.ID})
	if err != nil {
		return Overview{}, fmt.Errorf("list trainer batches: %w", err)
	}

	now := s.now()
	var upcoming []lms.Assignment
	for _, b := range batches {
		items, err := s.reader.ListAssignments(ctx, b.ID)
		if err != nil {
			return Overview{}, fmt.Errorf("list assignments for batch %s: %w", b.ID, err)
		}
		for _, a := range items {
			if !a.DueDate.Before(now) {
				upcoming = append(upcoming, a)
			}
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].DueDate.Before(upcoming[j].DueDate) })
	if len(upcoming) > upcomingAssignments {
		upcoming = upcoming[:upcomingAssignments]
	}

	return Overview{Role: domainauth.RoleTrainer, Batches: batches, Upcoming: upcoming}, nil
}

func (s *DashboardService) learnerOverview(ctx context.Context, id domainauth.Identity) (Overview, error) {
	enrollments, err := s.reader.ListEnrollments(ctx, id.ID)
	if err != nil {
		return Overview{}, fmt.Errorf("list enrollments: %w", err)
	}
	return Overview{Role: domainauth.RoleLearner, Enrollments: enrollments}, nil
}

// Batches lists the batches visible to id: all for admins, own for trainers,
// enrolled for learners.
func (s *DashboardService) Batches(ctx context.Context, id domainauth.Identity) ([]lms.Batch, error) {
	if s.reader == nil {
		return nil, ErrDataUnavailable
	}
	switch id.Role {
	case domainauth.RoleAdmin:
		return s.reader.ListBatches(ctx, lms.BatchFilter{})
	case domainauth.RoleTrainer:
		return s.reader.ListBatches(ctx, lms.BatchFilter{TrainerID: id.ID})
	case domainauth.RoleLearner:
		enrollments, err := s.reader.ListEnrollments(ctx, id.ID)
		if err != nil {
			return nil, err
		}
		out := make([]lms.Batch, 0, len(enrollments))
		for _, e := range enrollments {
			out = append(out, e.Batch)
		}
		return out, nil
	default:
		return nil, &domainauth.UnknownRoleError{Value: string(id.Role)}
	}
}

// Assignments lists a batch's assignments by due date if id may read the batch.
func (s *DashboardService) Assignments(ctx context.Context, id domainauth.Identity, batchID string) ([]lms.Assignment, error) {
	if s.reader == nil {
		return nil, ErrDataUnavailable
	}
	if err := s.authorizeBatch(ctx, id, batchID, true); err != nil {
		return nil, err
	}
	return s.reader.ListAssignments(ctx, batchID)
}

// Attendance lists a batch's attendance, optionally for one day. Learners may
// not read attendance.
func (s *DashboardService) Attendance(
	ctx context.Context,
	id domainauth.Identity,
	batchID string,
	date *time.Time,
) ([]lms.AttendanceRecord, error) {
	if s.reader == nil {
		return nil, ErrDataUnavailable
	}
	if err := s.authorizeBatch(ctx, id, batchID, false); err != nil {
		return nil, err
	}
	return s.reader.ListAttendance(ctx, batchID, date)
}

func (s *DashboardService) authorizeBatch(ctx context.Context, id domainauth.Identity, batchID string, learnerAllowed bool) error {
	if batchID == "" {
		return apperrors.ValidationField("batch", "batch is required")
	}

	switch id.Role {
	case domainauth.RoleAdmin:
		_, err := s.reader.GetBatch(ctx, batchID)
		return err
	case domainauth.RoleTrainer:
		b, err := s.reader.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if b.TrainerID != id.ID {
			return apperrors.Forbidden("batch is assigned to another trainer")
		}
		return nil
	case domainauth.RoleLearner:
		if !learnerAllowed {
			return apperrors.Forbidden("learners cannot view attendance")
		}
		enrollments, err := s.reader.ListEnrollments(ctx, id.ID)
		if err != nil {
			return err
		}
		for _, e := range enrollments {
			if e.BatchID == batchID {
				return nil
			}
		}
		return apperrors.Forbidden("not enrolled in this batch")
	default:
		return &domainauth.UnknownRoleError{Value: string(id.Role)}
	}
}

// IsDataUnavailable reports whether err means no data source is configured.
func IsDataUnavailable(err error) bool {
	return errors.Is(err, ErrDataUnavailable)
}
