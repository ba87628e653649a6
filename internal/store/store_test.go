package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsham/tethru/internal/crm"
	"github.com/emsham/tethru/internal/oauth"
)

func openTestStore(t *testing.T, cipher *oauth.TokenCipher) *Store {
	t.Helper()
	if cipher == nil {
		var err error
		cipher, err = oauth.NewTokenCipher(nil)
		require.NoError(t, err)
	}
	s, err := Open(filepath.Join(t.TempDir(), "tethru.db"), cipher)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetSettingsCreatesDefaults(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	set, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.False(t, set.Connected)
	assert.True(t, set.SyncTasks)
	assert.True(t, set.SyncBirthdays)
	assert.True(t, set.SyncImportantDates)
	assert.True(t, set.SyncFollowUps)
	assert.Nil(t, set.LastSyncAt)
}

func TestSettingsRoundTrip(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	lastSync := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	set := crm.Settings{
		Connected:          true,
		SyncTasks:          true,
		SyncBirthdays:      false,
		SyncImportantDates: true,
		SyncFollowUps:      false,
		LastSyncAt:         &lastSync,
	}
	require.NoError(t, s.PutSettings(ctx, set))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, got.Connected)
	assert.False(t, got.SyncBirthdays)
	assert.False(t, got.SyncFollowUps)
	require.NotNil(t, got.LastSyncAt)
	assert.True(t, got.LastSyncAt.Equal(lastSync))
}

func TestMappingLifecycle(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	m := crm.Mapping{
		ID:              "m1",
		SourceType:      crm.SourceTask,
		SourceID:        "t1",
		ExternalEventID: "ev-1",
		CreatedAt:       time.Now().Truncate(time.Millisecond),
	}
	require.NoError(t, s.InsertMapping(ctx, m))

	got, err := s.FindMapping(ctx, crm.SourceTask, "t1", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ev-1", got.ExternalEventID)
	assert.True(t, got.CreatedAt.Equal(m.CreatedAt))

	missing, err := s.FindMapping(ctx, crm.SourceTask, "nobody", "")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.DeleteMapping(ctx, "m1"))
	gone, err := s.FindMapping(ctx, crm.SourceTask, "t1", "")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestInsertMappingRejectsDuplicateTuple(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	base := crm.Mapping{
		SourceType:      crm.SourceBirthday,
		SourceID:        "c1",
		ExternalEventID: "ev-1",
		CreatedAt:       time.Now(),
	}
	first := base
	first.ID = "m1"
	require.NoError(t, s.InsertMapping(ctx, first))

	second := base
	second.ID = "m2"
	second.ExternalEventID = "ev-2"
	err := s.InsertMapping(ctx, second)
	require.Error(t, err)
	assert.True(t, IsLedgerError(err))
}

func TestImportantDateSubIDsAreDistinctRows(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	for i, sub := range []string{"d1", "d2"} {
		require.NoError(t, s.InsertMapping(ctx, crm.Mapping{
			ID:                 "m" + sub,
			SourceType:         crm.SourceImportantDate,
			SourceID:           "c1",
			ImportantDateSubID: sub,
			ExternalEventID:    "ev-" + sub,
			CreatedAt:          time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := s.FindMapping(ctx, crm.SourceImportantDate, "c1", "d2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ev-d2", got.ExternalEventID)

	rooted, err := s.FindMappingsByRoot(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, rooted, 2)
}

func TestFindMappingsByRootSpansSourceTypes(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	rows := []crm.Mapping{
		{ID: "m1", SourceType: crm.SourceBirthday, SourceID: "c1", ExternalEventID: "ev-1", CreatedAt: time.Now()},
		{ID: "m2", SourceType: crm.SourceFollowUp, SourceID: "c1", ExternalEventID: "ev-2", CreatedAt: time.Now()},
		{ID: "m3", SourceType: crm.SourceTask, SourceID: "t9", ExternalEventID: "ev-3", CreatedAt: time.Now()},
	}
	for _, m := range rows {
		require.NoError(t, s.InsertMapping(ctx, m))
	}

	rooted, err := s.FindMappingsByRoot(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, rooted, 2)

	all, err := s.AllMappings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := s.CountMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, s.DeleteAllMappings(ctx))
	n, err = s.CountMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTokenRoundTripEncrypted(t *testing.T) {
	key, err := oauth.GenerateEncryptionKey()
	require.NoError(t, err)
	cipher, err := oauth.NewTokenCipher(key)
	require.NoError(t, err)

	s := openTestStore(t, cipher)
	ctx := context.Background()

	tok, err := s.LoadToken(ctx)
	require.NoError(t, err)
	assert.Nil(t, tok, "no credential persisted yet")

	expiry := time.Date(2026, 3, 15, 11, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveToken(ctx, &oauth.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       expiry,
	}))

	// The raw column must not contain the plaintext.
	var rawAccess string
	require.NoError(t, s.conn.QueryRow(`SELECT access_token FROM oauth_token WHERE id = 1`).Scan(&rawAccess))
	assert.NotEqual(t, "access-1", rawAccess)

	got, err := s.LoadToken(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	assert.True(t, got.Expiry.Equal(expiry))

	// Replacement, not accumulation.
	require.NoError(t, s.SaveToken(ctx, &oauth.Token{AccessToken: "access-2", RefreshToken: "refresh-2"}))
	got, err = s.LoadToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.True(t, got.Expiry.IsZero())

	require.NoError(t, s.DeleteToken(ctx))
	got, err = s.LoadToken(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAuthStateConsumeIsOneShot(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, s.SaveAuthState(ctx, "nonce-1"))

	ok, err := s.ConsumeAuthState(ctx, "nonce-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ConsumeAuthState(ctx, "nonce-1")
	require.NoError(t, err)
	assert.False(t, ok, "a nonce can be consumed only once")

	ok, err = s.ConsumeAuthState(ctx, "never-saved")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReopenKeepsData(t *testing.T) {
	cipher, err := oauth.NewTokenCipher(nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tethru.db")
	ctx := context.Background()

	s, err := Open(path, cipher)
	require.NoError(t, err)
	require.NoError(t, s.InsertMapping(ctx, crm.Mapping{
		ID: "m1", SourceType: crm.SourceTask, SourceID: "t1", ExternalEventID: "ev-1", CreatedAt: time.Now(),
	}))
	require.NoError(t, s.Close())

	s, err = Open(path, cipher)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.FindMapping(ctx, crm.SourceTask, "t1", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ev-1", got.ExternalEventID)
}
