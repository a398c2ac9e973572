package post

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloghq/velog-server/internal/config"
	"github.com/veloghq/velog-server/internal/models"
	"github.com/veloghq/velog-server/internal/modules/notification"
	"github.com/veloghq/velog-server/internal/modules/search"
	"github.com/veloghq/velog-server/internal/modules/tag"
	"github.com/veloghq/velog-server/internal/pkg/apperr"
	"github.com/veloghq/velog-server/internal/pkg/slack"
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

	log := zap.NewNop()
	svc := NewService(
		db, log, nil,
		tag.NewService(db, log),
		notification.NewService(db, log),
		search.NewService(db, log, nil, config.SearchConfig{}),
		slack.New(""),
		"https://velog.example.com",
	)
	return svc, mock, sqlDB
}

func TestGenerateSlug_UsesTitleWhenNotRequested(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `posts`").
		WithArgs("u1", "My-Title").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	got, err := svc.generateSlug(svc.db, "u1", "My Title", "")
	require.NoError(t, err)
	assert.Equal(t, "My-Title", got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateSlug_TakenSlugGetsSuffix(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `posts`").
		WithArgs("u1", "My-Title").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	got, err := svc.generateSlug(svc.db, "u1", "ignored", "My Title")
	require.NoError(t, err)
	assert.Regexp(t, "^My-Title-[0-9a-f-]{8}$", got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateSlug_FallsBackToRandomID(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `posts`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	got, err := svc.generateSlug(svc.db, "u1", "!!!", "???")
	require.NoError(t, err)
	assert.Len(t, got, 8)
}

func TestListRecent_CursorPredicate(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	released := time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .* FROM `posts` WHERE id = \\?").
		WithArgs("p5", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "released_at"}).AddRow("p5", released))

	mock.ExpectQuery("SELECT .* FROM `posts` WHERE \\(is_private = FALSE AND is_temp = FALSE\\) AND \\(\\(released_at < \\? OR \\(released_at = \\? AND id < \\?\\)\\) AND id <> \\?\\)").
		WithArgs(released, released, "p5", "p5", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	posts, err := svc.ListRecent("p5", 20)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecent_InvalidCursor(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `posts` WHERE id = \\?").
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := svc.ListRecent("nope", 20)
	assert.ErrorIs(t, err, apperr.ErrInvalidCursor)
}

func TestListByUser_OwnerSeesPrivatePosts(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `users` WHERE username = \\?").
		WithArgs("alice", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))

	// No visibility filter when the requester is the owner.
	mock.ExpectQuery("SELECT .* FROM `posts` WHERE user_id = \\? AND `posts`.`deleted_at` IS NULL ORDER BY").
		WithArgs("u1", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	posts, err := svc.ListByUser("alice", "", 20, "u1")
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByUsernameAndSlug_PrivateHiddenFromOthers(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `users` WHERE username = \\?").
		WithArgs("alice", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))

	mock.ExpectQuery("SELECT .* FROM `posts` WHERE \\(user_id = \\? AND url_slug = \\?\\)").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "title", "url_slug", "is_private", "is_temp"}).
			AddRow("p1", "u1", "secret", "secret", true, false))
	mock.ExpectQuery("SELECT .* FROM `posts_tags`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetByUsernameAndSlug("alice", "secret", "other-user")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLike_DuplicateConflict(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT .* FROM `posts` WHERE id = \\?").
		WithArgs("p1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "url_slug"}).
			AddRow("p1", "u2", "hello", "hello"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `post_likes`").
		WithArgs("p1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := svc.Like("u1", "p1")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLike_CreatesRowAndBumpsCounter(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	// Owner liking their own post: no notification row is written.
	mock.ExpectQuery("SELECT .* FROM `posts` WHERE id = \\?").
		WithArgs("p1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "url_slug"}).
			AddRow("p1", "u1", "hello", "hello"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `post_likes`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO `post_likes`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `posts` SET `like_count`=like_count \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.Like("u1", "p1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlike_NotLiked(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `post_likes` WHERE post_id = \\? AND user_id = \\?").
		WithArgs("p1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := svc.Unlike("u1", "p1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A like removed and placed again must land in the same unique
// (post_id, user_id) slot, so the removal has to be a real DELETE.
func TestLike_AgainAfterUnlike(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `post_likes` WHERE post_id = \\? AND user_id = \\?").
		WithArgs("p1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `posts` SET `like_count`=like_count - 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Unlike("u1", "p1"))

	mock.ExpectQuery("SELECT .* FROM `posts` WHERE id = \\?").
		WithArgs("p1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "url_slug"}).
			AddRow("p1", "u1", "hello", "hello"))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `post_likes`").
		WithArgs("p1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO `post_likes`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `posts` SET `like_count`=like_count \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Like("u1", "p1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncTags_OnlyTouchesChangedRows(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	post := &models.PostModel{Base: models.Base{ID: "p1"}}

	mock.ExpectBegin()
	// "Go" already exists; "Rust" is created on the fly.
	mock.ExpectQuery("SELECT .* FROM `tags` WHERE name_filtered = \\?").
		WithArgs("go", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "name_filtered"}).
			AddRow("t-go", "Go", "go"))
	mock.ExpectQuery("SELECT .* FROM `tags` WHERE name_filtered = \\?").
		WithArgs("rust", 1).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectExec("INSERT INTO `tags`").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// The post currently carries js and go; js is dropped, go is kept.
	mock.ExpectQuery("SELECT .* FROM `posts_tags` WHERE fk_post_id = \\?").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "fk_post_id", "fk_tag_id"}).
			AddRow("pt-js", "p1", "t-js").
			AddRow("pt-go", "p1", "t-go"))
	mock.ExpectExec("DELETE FROM `posts_tags` WHERE id = \\?").
		WithArgs("pt-js").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `posts_tags`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.db.Transaction(func(tx *gorm.DB) error {
		return svc.syncTags(tx, post, []string{"Go", "Rust"})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Removing a tag and adding it back must not collide with the unique
// (fk_post_id, fk_tag_id) index, so the removal is a real DELETE and the
// re-add is a fresh INSERT.
func TestSyncTags_ReaddRemovedTag(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	post := &models.PostModel{Base: models.Base{ID: "p1"}}

	// First sync: drop the only tag.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `posts_tags` WHERE fk_post_id = \\?").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "fk_post_id", "fk_tag_id"}).
			AddRow("pt-go", "p1", "t-go"))
	mock.ExpectExec("DELETE FROM `posts_tags` WHERE id = \\?").
		WithArgs("pt-go").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.db.Transaction(func(tx *gorm.DB) error {
		return svc.syncTags(tx, post, nil)
	})
	require.NoError(t, err)

	// Second sync: the same tag comes back.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `tags` WHERE name_filtered = \\?").
		WithArgs("go", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "name_filtered"}).
			AddRow("t-go", "Go", "go"))
	mock.ExpectQuery("SELECT .* FROM `posts_tags` WHERE fk_post_id = \\?").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "fk_post_id", "fk_tag_id"}))
	mock.ExpectExec("INSERT INTO `posts_tags`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = svc.db.Transaction(func(tx *gorm.DB) error {
		return svc.syncTags(tx, post, []string{"Go"})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A soft-deleted post still occupies its (user_id, url_slug) index slot, so
// the uniqueness check is unscoped and a recreated post gets a suffix
// instead of a duplicate-key failure.
func TestGenerateSlug_DeletedSlugStaysReserved(t *testing.T) {
	svc, mock, sqlDB := newTestService(t)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `posts` WHERE user_id = \\? AND url_slug = \\?$").
		WithArgs("u1", "My-Title").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	got, err := svc.generateSlug(svc.db, "u1", "My Title", "")
	require.NoError(t, err)
	assert.Regexp(t, "^My-Title-[0-9a-f-]{8}$", got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Logged-in readers are recorded by user id alone; the ip hash column is
// only populated for anonymous reads.
func TestReaderIdentity(t *testing.T) {
	key, ipHash := readerIdentity("u1", "203.0.113.9")
	assert.Equal(t, "u1", key)
	assert.Empty(t, ipHash)

	key, ipHash = readerIdentity("", "203.0.113.9")
	assert.NotEmpty(t, ipHash)
	assert.Equal(t, ipHash, key)
	assert.NotContains(t, ipHash, "203.0.113.9")

	// Same IP, same key; different IP, different key.
	again, _ := readerIdentity("", "203.0.113.9")
	other, _ := readerIdentity("", "203.0.113.10")
	assert.Equal(t, key, again)
	assert.NotEqual(t, key, other)
}
