package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmcp/calmcp/internal/credentials"
)

var credentialColumns = []string{"user_id", "access_token", "refresh_token", "expires_at", "scopes", "updated_at"}

func newMockRepository(t *testing.T) (*CredentialRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.MonitorPingsOption(true),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewCredentialRepository(db), mock
}

func TestCredentialRepository_Get(t *testing.T) {
	repo, mock := newMockRepository(t)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	updated := time.Now().UTC().Truncate(time.Second)
	mock.ExpectQuery(`SELECT user_id, access_token, refresh_token, expires_at, scopes, updated_at`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(credentialColumns).
			AddRow("alice", "at-1", "rt-1", expires, "scope-a scope-b", updated))

	rec, err := repo.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.UserID)
	assert.Equal(t, "at-1", rec.AccessToken)
	assert.Equal(t, "rt-1", rec.RefreshToken)
	assert.Equal(t, expires, rec.ExpiresAt)
	assert.Equal(t, []string{"scope-a", "scope-b"}, rec.Scopes)
	assert.Equal(t, updated, rec.UpdatedAt)
}

func TestCredentialRepository_GetNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT user_id`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(credentialColumns))

	_, err := repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestCredentialRepository_GetStoreFailure(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT user_id`).
		WithArgs("alice").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.Get(context.Background(), "alice")
	assert.ErrorIs(t, err, credentials.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, credentials.ErrNotFound)
}

func TestCredentialRepository_Upsert(t *testing.T) {
	repo, mock := newMockRepository(t)

	expires := time.Now().Add(time.Hour).UTC()
	updated := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO user_credentials`).
		WithArgs("alice", "at-2", "rt-2", expires, "scope-a", updated).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), credentials.Record{
		UserID:       "alice",
		AccessToken:  "at-2",
		RefreshToken: "rt-2",
		ExpiresAt:    expires,
		Scopes:       []string{"scope-a"},
		UpdatedAt:    updated,
	})
	require.NoError(t, err)
}

func TestCredentialRepository_UpsertRejectsInvalidRecord(t *testing.T) {
	repo, _ := newMockRepository(t)

	err := repo.Upsert(context.Background(), credentials.Record{
		UserID:      "alice",
		AccessToken: "at-3",
		// expires_at missing for a present access token
		RefreshToken: "rt-3",
	})
	assert.ErrorIs(t, err, credentials.ErrInvalidRecord)
}

func TestCredentialRepository_UpsertStoreFailure(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`INSERT INTO user_credentials`).
		WillReturnError(errors.New("deadlock detected"))

	err := repo.Upsert(context.Background(), credentials.Record{
		UserID:       "alice",
		AccessToken:  "at-4",
		RefreshToken: "rt-4",
		ExpiresAt:    time.Now().Add(time.Hour),
		UpdatedAt:    time.Now(),
	})
	assert.ErrorIs(t, err, credentials.ErrStoreUnavailable)
}

func TestCredentialRepository_Delete(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`DELETE FROM user_credentials`).
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "alice"))
}

func TestCredentialRepository_DeleteNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`DELETE FROM user_credentials`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestCredentialRepository_List(t *testing.T) {
	repo, mock := newMockRepository(t)

	expires := time.Now().Add(time.Hour).UTC()
	updated := time.Now().UTC()
	mock.ExpectQuery(`SELECT user_id, access_token`).
		WillReturnRows(sqlmock.NewRows(credentialColumns).
			AddRow("alice", "at-1", "rt-1", expires, "scope-a", updated).
			AddRow("bob", "at-2", "rt-2", expires, "", updated))

	records, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alice", records[0].UserID)
	assert.Equal(t, []string{"scope-a"}, records[0].Scopes)
	assert.Equal(t, "bob", records[1].UserID)
	assert.Empty(t, records[1].Scopes)
}

func TestCredentialRepository_Ping(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectPing().WillReturnError(errors.New("down"))

	err := repo.Ping(context.Background())
	assert.ErrorIs(t, err, credentials.ErrStoreUnavailable)
}
