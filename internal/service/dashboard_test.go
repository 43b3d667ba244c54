package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/domain/lms"
	apperrors "github.com/target/learnhub/internal/errors"
	"github.com/target/learnhub/internal/mocks"
	"github.com/target/learnhub/internal/testutil"
)

var (
	adminID   = domainauth.Identity{ID: "u-admin", Role: domainauth.RoleAdmin}
	trainerID = domainauth.Identity{ID: "u-trainer", Role: domainauth.RoleTrainer}
	learnerID = domainauth.Identity{ID: "u-learner", Role: domainauth.RoleLearner}
)

func newDashboard(t *testing.T) (*DashboardService, *mocks.MockBatchReader) {
	t.Helper()
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockBatchReader(ctrl)
	svc := NewDashboardService(DashboardServiceOptions{
		Reader: reader,
		Now:    testutil.FixedTimeFunc(testutil.TestTime()),
	})
	return svc, reader
}

func TestDashboardService_AdminOverview(t *testing.T) {
	svc, reader := newDashboard(t)
	batches := make([]lms.Batch, 7)
	for i := range batches {
		batches[i] = lms.Batch{ID: fmt.Sprintf("b%d", i), Status: lms.BatchActive, CurrentLearners: 2}
	}
	batches[6].Status = lms.BatchCompleted
	reader.EXPECT().ListBatches(gomock.Any(), lms.BatchFilter{}).Return(batches, nil)

	ov, err := svc.Overview(context.Background(), adminID)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, ov.Role)
	assert.Equal(t, lms.BatchStats{Total: 7, Active: 6, Learners: 14}, ov.Stats)
	assert.Len(t, ov.RecentBatches, 5)
	assert.Equal(t, "b0", ov.RecentBatches[0].ID)
	assert.Empty(t, ov.Enrollments)
}

func TestDashboardService_TrainerOverview(t *testing.T) {
	svc, reader := newDashboard(t)
	now := testutil.TestTime()
	batches := []lms.Batch{{ID: "b1", TrainerID: trainerID.ID}, {ID: "b2", TrainerID: trainerID.ID}}

	reader.EXPECT().ListBatches(gomock.Any(), lms.BatchFilter{TrainerID: trainerID.ID}).Return(batches, nil)
	reader.EXPECT().ListAssignments(gomock.Any(), "b1").Return([]lms.Assignment{
		{ID: "past", DueDate: now.Add(-time.Hour)},
		{ID: "later", DueDate: now.Add(72 * time.Hour)},
	}, nil)
	reader.EXPECT().ListAssignments(gomock.Any(), "b2").Return([]lms.Assignment{
		{ID: "soon", DueDate: now.Add(time.Hour)},
		{ID: "now", DueDate: now},
	}, nil)

	ov, err := svc.Overview(context.Background(), trainerID)
	require.NoError(t, err)
	assert.Equal(t, batches, ov.Batches)

	ids := make([]string, 0, len(ov.Upcoming))
	for _, a := range ov.Upcoming {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"now", "soon", "later"}, ids)
}

func TestDashboardService_TrainerOverviewCapsUpcoming(t *testing.T) {
	svc, reader := newDashboard(t)
	now := testutil.TestTime()
	items := make([]lms.Assignment, 15)
	for i := range items {
		items[i] = lms.Assignment{ID: fmt.Sprintf("a%02d", i), DueDate: now.Add(time.Duration(15-i) * time.Hour)}
	}
	reader.EXPECT().ListBatches(gomock.Any(), gomock.Any()).Return([]lms.Batch{{ID: "b1"}}, nil)
	reader.EXPECT().ListAssignments(gomock.Any(), "b1").Return(items, nil)

	ov, err := svc.Overview(context.Background(), trainerID)
	require.NoError(t, err)
	require.Len(t, ov.Upcoming, 10)
	assert.Equal(t, "a14", ov.Upcoming[0].ID)
}

func TestDashboardService_LearnerOverview(t *testing.T) {
	svc, reader := newDashboard(t)
	enrollments := []lms.Enrollment{{ID: "e1", BatchID: "b1", Batch: lms.Batch{ID: "b1"}}}
	reader.EXPECT().ListEnrollments(gomock.Any(), learnerID.ID).Return(enrollments, nil)

	ov, err := svc.Overview(context.Background(), learnerID)
	require.NoError(t, err)
	assert.Equal(t, enrollments, ov.Enrollments)
	assert.Empty(t, ov.Batches)
}

func TestDashboardService_OverviewErrors(t *testing.T) {
	svc, reader := newDashboard(t)
	reader.EXPECT().ListBatches(gomock.Any(), gomock.Any()).Return(nil, apperrors.Unavailable("db down"))

	_, err := svc.Overview(context.Background(), adminID)
	require.Error(t, err)
	assert.True(t, apperrors.IsUnavailable(err))

	_, err = svc.Overview(context.Background(), domainauth.Identity{ID: "x", Role: "owner"})
	assert.ErrorIs(t, err, domainauth.ErrUnknownRole)
}

func TestDashboardService_WithoutReader(t *testing.T) {
	svc := NewDashboardService(DashboardServiceOptions{})

	ov, err := svc.Overview(context.Background(), learnerID)
	assert.True(t, IsDataUnavailable(err))
	assert.Equal(t, domainauth.RoleLearner, ov.Role)

	_, err = svc.Batches(context.Background(), adminID)
	assert.True(t, IsDataUnavailable(err))
	_, err = svc.Assignments(context.Background(), adminID, "b1")
	assert.True(t, IsDataUnavailable(err))
	_, err = svc.Attendance(context.Background(), adminID, "b1", nil)
	assert.True(t, IsDataUnavailable(err))
	assert.False(t, IsDataUnavailable(errors.New("other")))
}

func TestDashboardService_Batches(t *testing.T) {
	t.Run("learner sees enrolled batches", func(t *testing.T) {
		svc, reader := newDashboard(t)
		reader.EXPECT().ListEnrollments(gomock.Any(), learnerID.ID).Return([]lms.Enrollment{
			{BatchID: "b1", Batch: lms.Batch{ID: "b1", Name: "Go 101"}},
			{BatchID: "b2", Batch: lms.Batch{ID: "b2", Name: "SQL"}},
		}, nil)

		got, err := svc.Batches(context.Background(), learnerID)
		require.NoError(t, err)
		assert.Equal(t, []lms.Batch{{ID: "b1", Name: "Go 101"}, {ID: "b2", Name: "SQL"}}, got)
	})

	t.Run("trainer sees own batches", func(t *testing.T) {
		svc, reader := newDashboard(t)
		reader.EXPECT().ListBatches(gomock.Any(), lms.BatchFilter{TrainerID: trainerID.ID}).Return([]lms.Batch{{ID: "b1"}}, nil)

		got, err := svc.Batches(context.Background(), trainerID)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestDashboardService_Assignments(t *testing.T) {
	tests := []struct {
		name    string
		id      domainauth.Identity
		setup   func(r *mocks.MockBatchReader)
		wantErr func(error) bool
	}{
		{
			name: "admin reads any batch",
			id:   adminID,
			setup: func(r *mocks.MockBatchReader) {
				r.EXPECT().GetBatch(gomock.Any(), "b1").Return(lms.Batch{ID: "b1", TrainerID: "other"}, nil)
				r.EXPECT().ListAssignments(gomock.Any(), "b1").Return([]lms.Assignment{{ID: "a1"}}, nil)
			},
		},
		{
			name: "trainer reads own batch",
			id:   trainerID,
			setup: func(r *mocks.MockBatchReader) {
				r.EXPECT().GetBatch(gomock.Any(), "b1").Return(lms.Batch{ID: "b1", TrainerID: trainerID.ID}, nil)
				r.EXPECT().ListAssignments(gomock.Any(), "b1").Return([]lms.Assignment{{ID: "a1"}}, nil)
			},
		},
		{
			name: "trainer denied other batch",
			id:   trainerID,
			setup: func(r *mocks.MockBatchReader) {
				r.EXPECT().GetBatch(gomock.Any(), "b1").Return(lms.Batch{ID: "b1", TrainerID: "other"}, nil)
			},
			wantErr: apperrors.IsForbidden,
		},
		{
			name: "missing batch",
			id:   adminID,
			setup: func(r *mocks.MockBatchReader) {
				r.EXPECT().GetBatch(gomock.Any(), "b1").Return(lms.Batch{}, apperrors.NotFoundf("batch %s not found", "b1"))
			},
			wantErr: apperrors.IsNotFound,
		},
		{
			name: "enrolled learner",
			id:   learnerID,
			setup: func(r *mocks.MockBatchReader) {
				r.EXPECT().ListEnrollments(gomock.Any(), learnerID.ID).Return([]lms.Enrollment{{BatchID: "b1"}}, nil)
				r.EXPECT().ListAssignments(gomock.Any(), "b1").Return([]lms.Assignment{{ID: "a1"}}, nil)
			},
		},
		{
			name: "learner not enrolled",
			id:   learnerID,
			setup: func(r *mocks.MockBatchReader) {
				r.EXPECT().ListEnrollments(gomock.Any(), learnerID.ID).Return([]lms.Enrollment{{BatchID: "b9"}}, nil)
			},
			wantErr: apperrors.IsForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, reader := newDashboard(t)
			tt.setup(reader)

			got, err := svc.Assignments(context.Background(), tt.id, "b1")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []lms.Assignment{{ID: "a1"}}, got)
		})
	}
}

func TestDashboardService_AssignmentsRequiresBatch(t *testing.T) {
	svc, _ := newDashboard(t)
	_, err := svc.Assignments(context.Background(), adminID, "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestDashboardService_Attendance(t *testing.T) {
	t.Run("trainer with date", func(t *testing.T) {
		svc, reader := newDashboard(t)
		day := testutil.TimePtr(testutil.TestTime())
		records := []lms.AttendanceRecord{{ID: "r1", Status: lms.AttendancePresent}}
		reader.EXPECT().GetBatch(gomock.Any(), "b1").Return(lms.Batch{ID: "b1", TrainerID: trainerID.ID}, nil)
		reader.EXPECT().ListAttendance(gomock.Any(), "b1", day).Return(records, nil)

		got, err := svc.Attendance(context.Background(), trainerID, "b1", day)
		require.NoError(t, err)
		assert.Equal(t, records, got)
	})

	t.Run("learner forbidden", func(t *testing.T) {
		svc, _ := newDashboard(t)
		_, err := svc.Attendance(context.Background(), learnerID, "b1", nil)
		assert.True(t, apperrors.IsForbidden(err))
	})
}
