package series

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloghq/velog-server/internal/pkg/apperr"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *sql.DB) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return NewService(db, zap.NewNop()), mock, sqlDB
}

func ownedSeriesRow(id, userID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "name", "url_slug", "created_at"}).
		AddRow(id, userID, "My Series", "my-series", time.Now())
}

func seriesPostRows(postIDs ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "fk_series_id", "fk_post_id", "index"})
	for i, postID := range postIDs {
		rows.AddRow("sp-"+postID, "s1", postID, i+1)
	}
	return rows
}

func TestReorder_InvalidPermutationLeavesSeriesUntouched(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `series` WHERE id").
		WillReturnRows(ownedSeriesRow("s1", "u1"))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `series_posts` WHERE fk_series_id").
		WillReturnRows(seriesPostRows("p1", "p2", "p3"))
	// Validation fails before any UPDATE; the transaction rolls back.
	mock.ExpectRollback()

	err := svc.Reorder("u1", "s1", []string{"p1", "p2"})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReorder_WritesOnlyChangedRows(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `series` WHERE id").
		WillReturnRows(ownedSeriesRow("s1", "u1"))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `series_posts` WHERE fk_series_id").
		WillReturnRows(seriesPostRows("p1", "p2", "p3"))
	// p1 stays at index 1; only p3 and p2 are rewritten.
	mock.ExpectExec("UPDATE `series_posts` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `series_posts` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.Reorder("u1", "s1", []string{"p1", "p3", "p2"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReorder_NotOwner(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `series` WHERE id").
		WillReturnRows(ownedSeriesRow("s1", "someone-else"))

	err := svc.Reorder("u1", "s1", []string{"p1"})
	assert.ErrorIs(t, err, apperr.ErrNoPermission)
}

func TestRemovePost_CompactsIndices(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `series` WHERE id").
		WillReturnRows(ownedSeriesRow("s1", "u1"))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `series_posts` WHERE fk_series_id = \\? AND fk_post_id = \\?").
		WithArgs("s1", "p2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// p2 was removed, leaving a gap: remaining rows carry indices 1 and 3.
	rows := sqlmock.NewRows([]string{"id", "fk_series_id", "fk_post_id", "index"}).
		AddRow("sp-p1", "s1", "p1", 1).
		AddRow("sp-p3", "s1", "p3", 3)
	mock.ExpectQuery("SELECT .* FROM `series_posts` WHERE fk_series_id").
		WillReturnRows(rows)
	// Only sp-p3 needs a write to close the gap.
	mock.ExpectExec("UPDATE `series_posts` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.RemovePost("u1", "s1", "p2")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemovePost_NotInSeries(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `series` WHERE id").
		WillReturnRows(ownedSeriesRow("s1", "u1"))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `series_posts`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := svc.RemovePost("u1", "s1", "p9")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// Dropping a post and appending it again reuses the same unique
// (fk_series_id, fk_post_id) slot, so the removal must be a real DELETE.
func TestAppendPost_AgainAfterRemove(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `series` WHERE id").
		WillReturnRows(ownedSeriesRow("s1", "u1"))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `series_posts` WHERE fk_series_id = \\? AND fk_post_id = \\?").
		WithArgs("s1", "p2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .* FROM `series_posts` WHERE fk_series_id").
		WillReturnRows(seriesPostRows("p1"))
	mock.ExpectCommit()

	require.NoError(t, svc.RemovePost("u1", "s1", "p2"))

	mock.ExpectQuery("SELECT .* FROM `series` WHERE id").
		WillReturnRows(ownedSeriesRow("s1", "u1"))
	mock.ExpectQuery("SELECT .* FROM `posts` WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow("p2", "u1"))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `series_posts`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `series_posts`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec("INSERT INTO `series_posts`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sp, err := svc.AppendPost("u1", "s1", "p2")
	require.NoError(t, err)
	assert.Equal(t, 2, sp.Index)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Deleting a series removes the row outright, freeing its url slug for a
// new series with the same name.
func TestDelete_FreesSlug(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `series` WHERE id").
		WillReturnRows(ownedSeriesRow("s1", "u1"))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `series_posts` WHERE fk_series_id = \\?").
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM `series` WHERE `series`.`id` = \\?").
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Delete("u1", "s1"))

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `series`").
		WithArgs("u1", "my-series").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `series`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := svc.Create("u1", &CreateSeriesDTO{Name: "My Series"})
	require.NoError(t, err)
	assert.Equal(t, "my-series", created.URLSlug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendPost_DuplicateConflict(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `series` WHERE id").
		WillReturnRows(ownedSeriesRow("s1", "u1"))
	mock.ExpectQuery("SELECT .* FROM `posts` WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow("p1", "u1"))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `series_posts`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := svc.AppendPost("u1", "s1", "p1")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAppendPost_AssignsNextIndex(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `series` WHERE id").
		WillReturnRows(ownedSeriesRow("s1", "u1"))
	mock.ExpectQuery("SELECT .* FROM `posts` WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow("p4", "u1"))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `series_posts`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `series_posts`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec("INSERT INTO `series_posts`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sp, err := svc.AppendPost("u1", "s1", "p4")
	require.NoError(t, err)
	assert.Equal(t, 4, sp.Index)
}

func TestAppendPost_ForeignPostForbidden(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `series` WHERE id").
		WillReturnRows(ownedSeriesRow("s1", "u1"))
	mock.ExpectQuery("SELECT .* FROM `posts` WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow("p1", "other"))

	_, err := svc.AppendPost("u1", "s1", "p1")
	assert.ErrorIs(t, err, apperr.ErrNoPermission)
}

func TestCreate_DuplicateSlugConflict(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `series`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := svc.Create("u1", &CreateSeriesDTO{Name: "My Series"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}
