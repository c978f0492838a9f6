package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/branch/models"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormStore(db), mock
}

func TestGormStore_GetUserNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}))

	_, err := s.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ListCheckInsNewestFirst(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "pod_id", "user_id", "timestamp", "stage", "focus"}).
		AddRow("c2", "p1", "u1", now, "evening", "ship").
		AddRow("c1", "p1", "u2", now.Add(-time.Hour), "morning", "write")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `check_ins` WHERE pod_id = ? ORDER BY timestamp DESC")).
		WithArgs("p1").
		WillReturnRows(rows)

	got, err := s.ListCheckIns(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c2", got[0].ID)
	assert.Equal(t, models.StageEvening, got[0].Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_RelationsSkipEmptyIDs(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	goals, err := s.ListGoals(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, goals)
	notes, err := s.ListNotifications(ctx, "u1", []string{})
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CompleteCheckInConflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `check_ins` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `check_ins` WHERE id = ?")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := s.CompleteCheckIn(context.Background(), "c1", "done", time.Now(), nil)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CompleteCheckInMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `check_ins` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `check_ins` WHERE id = ?")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	err := s.CompleteCheckIn(context.Background(), "nope", "done", time.Now(), nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_MarkAllNotificationsRead(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `notifications` SET `read`=? WHERE target_user_id = ? AND `read` = ?")).
		WithArgs(true, "u1", false).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, s.MarkAllNotificationsRead(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_DeleteReaction(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `reactions` WHERE id = ?")).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.DeleteReaction(context.Background(), &models.Reaction{ID: "r1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
