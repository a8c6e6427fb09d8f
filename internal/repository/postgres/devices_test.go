package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
)

func TestDeviceRepo_CompareAndSetStatus(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name      string
		setup     func(m pgxmock.PgxConnIface)
		want      error
		retryable bool
	}{
		{
			name: "moved",
			setup: func(m pgxmock.PgxConnIface) {
				m.ExpectExec(`UPDATE devices SET status`).
					WithArgs(id, domain.DeviceAvailable, domain.DeviceOccupied).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "status mismatch",
			setup: func(m pgxmock.PgxConnIface) {
				m.ExpectExec(`UPDATE devices SET status`).
					WithArgs(id, domain.DeviceAvailable, domain.DeviceOccupied).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
				m.ExpectQuery(`SELECT EXISTS`).
					WithArgs(id).
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
			},
			want: repository.ErrStatusMismatch,
		},
		{
			name: "missing",
			setup: func(m pgxmock.PgxConnIface) {
				m.ExpectExec(`UPDATE devices SET status`).
					WithArgs(id, domain.DeviceAvailable, domain.DeviceOccupied).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
				m.ExpectQuery(`SELECT EXISTS`).
					WithArgs(id).
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
			},
			want: repository.ErrNotFound,
		},
		{
			name: "serialization failure",
			setup: func(m pgxmock.PgxConnIface) {
				m.ExpectExec(`UPDATE devices SET status`).
					WithArgs(id, domain.DeviceAvailable, domain.DeviceOccupied).
					WillReturnError(&pgconn.PgError{Code: "40001"})
			},
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewConn()
			require.NoError(t, err)
			tt.setup(mock)

			repo := (&DeviceRepo{}).With(mock)
			err = repo.CompareAndSetStatus(context.Background(), id, domain.DeviceAvailable, domain.DeviceOccupied)

			switch {
			case tt.retryable:
				assert.True(t, IsRetryable(err), "got %v", err)
			case tt.want != nil:
				assert.ErrorIs(t, err, tt.want)
			default:
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
