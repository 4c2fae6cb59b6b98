// Package database provides unit tests for connection helpers.
// Integration tests with a real PostgreSQL instance are out of scope here;
// transactions are exercised against pgxmock.
package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), Config{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestIsConnected(t *testing.T) {
	assert.False(t, IsConnected(context.Background(), nil))

	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing()
	assert.True(t, IsConnected(context.Background(), mock))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.False(t, IsConnected(context.Background(), mock))

	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestWithTx verifies commit on success and rollback when the callback fails.
func TestWithTx(t *testing.T) {
	tests := []struct {
		name    string
		fnErr   error
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr bool
	}{
		{
			name: "commit on success",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE departments").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				mock.ExpectCommit()
			},
		},
		{
			name:  "rollback on error",
			fnErr: errors.New("boom"),
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE departments").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				mock.ExpectRollback()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setup(mock)

			err = WithTx(context.Background(), mock, func(tx pgx.Tx) error {
				if _, err := tx.Exec(context.Background(), "UPDATE departments SET name = $1", "x"); err != nil {
					return err
				}
				return tt.fnErr
			})

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNewMigrator_DefaultPath(t *testing.T) {
	m := NewMigrator("postgres://localhost/reporthub", "", zerolog.Nop())
	assert.Equal(t, "file://migrations", m.sourceURL)

	_, _, err := NewMigrator("", "", zerolog.Nop()).Version()
	assert.Error(t, err)
}
