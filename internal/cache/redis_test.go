package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/model-builder/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping integration test: REDIS_ADDR not set")
	}
	store, err := New(context.Background(), Options{
		Addr:       addr,
		Prefix:     "model_builder_test_" + uuid.NewString(),
		SessionTTL: time.Minute,
	})
	if err != nil {
		t.Skipf("Skipping integration test: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNew_RequiresAddress(t *testing.T) {
	_, err := New(context.Background(), Options{Addr: "  "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing redis address")
}

func TestNewWithClient_Defaults(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "localhost:0"})
	defer rdb.Close()

	s := NewWithClient(rdb, Options{})
	assert.Equal(t, defaultSessionTTL, s.sessionTTL)
	assert.Equal(t, "model_builder:session:abc", s.sessionKey("abc"))
	assert.Equal(t, "model_builder:datasets:4", s.datasetKey(4))

	s = NewWithClient(rdb, Options{Prefix: "p", SessionTTL: time.Hour})
	assert.Equal(t, time.Hour, s.sessionTTL)
	assert.Equal(t, "p:session:abc", s.sessionKey("abc"))
}

func TestSessionSnapshot_Integration(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	session := types.NewBuildSession(3, "Cached")
	session.Prompt = "predict churn"
	session.Phase = types.PhaseReviewingIntent
	session.Intent = &types.Intent{Task: &types.TaskSpec{Type: types.TaskClassification}}

	require.NoError(t, store.SaveSession(ctx, session))
	loaded, err := store.LoadSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, session.Prompt, loaded.Prompt)
	assert.Equal(t, types.TaskClassification, loaded.Intent.TaskType())

	ttl, err := store.rdb.TTL(ctx, store.sessionKey(session.ID)).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, store.DeleteSession(ctx, session.ID))
	loaded, err = store.LoadSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestDatasetList_Integration(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, found, err := store.GetDatasets(ctx, 9)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetDatasets(ctx, 9, []types.Dataset{{ID: 1, Name: "churn.csv"}}))
	list, found, err := store.GetDatasets(ctx, 9)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []types.Dataset{{ID: 1, Name: "churn.csv"}}, list)

	require.NoError(t, store.SetDatasets(ctx, 10, nil))
	list, found, err = store.GetDatasets(ctx, 10)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, list)
}
