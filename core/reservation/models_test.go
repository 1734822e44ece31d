package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLegacyRecordNormalize(t *testing.T) {
	tests := []struct {
		name    string
		record  LegacyRecord
		want    Reservation
		wantErr error
	}{
		{
			name: "canonical fields",
			record: LegacyRecord{
				ID:          "r1",
				ProjectID:   "p1",
				StudentID:   "s1",
				Status:      "approved",
				RequestDate: "2021-03-01T10:00:00Z",
			},
			want: Reservation{
				ID:          "r1",
				ProjectID:   "p1",
				StudentID:   "s1",
				Status:      StatusApproved,
				RequestDate: time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "userId and timestamp aliases backfill studentId and requestDate",
			record: LegacyRecord{
				ID:        "r2",
				ProjectID: "p1",
				UserID:    "s2",
				Timestamp: "2021-03-01T10:00:00Z",
			},
			want: Reservation{
				ID:          "r2",
				ProjectID:   "p1",
				StudentID:   "s2",
				Status:      StatusPending,
				RequestDate: time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "canonical fields win over aliases",
			record: LegacyRecord{
				ID:          "r3",
				ProjectID:   "p1",
				StudentID:   "s3",
				UserID:      "other",
				RequestDate: "2021-03-01T10:00:00Z",
				Timestamp:   "2020-01-01T00:00:00Z",
			},
			want: Reservation{
				ID:          "r3",
				ProjectID:   "p1",
				StudentID:   "s3",
				Status:      StatusPending,
				RequestDate: time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:    "unknown status",
			record:  LegacyRecord{ProjectID: "p1", UserID: "s1", Status: "what"},
			wantErr: errInvalidStatus,
		},
		{
			name:   "status case-insensitive",
			record: LegacyRecord{ID: "r4", ProjectID: "p1", StudentID: "s1", Status: "Rejected"},
			want:   Reservation{ID: "r4", ProjectID: "p1", StudentID: "s1", Status: StatusRejected},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.record.Normalize()
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLegacyRecordNormalize_generatesID(t *testing.T) {
	got, err := LegacyRecord{ProjectID: "p1", UserID: "s1"}.Normalize()
	assert.NoError(t, err)
	assert.NotEmpty(t, got.ID)
}

func TestReservationLegacy(t *testing.T) {
	res := Reservation{
		ID:           "r1",
		ProjectID:    "p1",
		ProjectTitle: "Smart Irrigation",
		StudentID:    "s1",
		StudentName:  "Asha",
		SupervisorID: "sup1",
		Status:       StatusPending,
		RequestDate:  time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	lr := res.Legacy()
	assert.Equal(t, res.StudentID, lr.StudentID)
	assert.Equal(t, res.StudentID, lr.UserID)
	assert.Equal(t, lr.RequestDate, lr.Timestamp)

	// a dump rendered out must normalize back unchanged
	back, err := lr.Normalize()
	assert.NoError(t, err)
	assert.Equal(t, res, back)
}
