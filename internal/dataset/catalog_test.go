package dataset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/model-builder/internal/types"
)

type fakeLister struct {
	calls atomic.Int32
	delay time.Duration
	pages map[int][]types.DatasetPage
	err   error
}

func (f *fakeLister) ListDatasets(ctx context.Context, projectID, page int) (*types.DatasetPage, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	pages := f.pages[projectID]
	if page-1 >= len(pages) {
		return &types.DatasetPage{}, nil
	}
	p := pages[page-1]
	return &p, nil
}

type memoryCache struct {
	mu   sync.Mutex
	data map[int][]types.Dataset
}

func (m *memoryCache) GetDatasets(_ context.Context, projectID int) ([]types.Dataset, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.data[projectID]
	return list, ok, nil
}

func (m *memoryCache) SetDatasets(_ context.Context, projectID int, datasets []types.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[projectID] = datasets
	return nil
}

func strPtr(s string) *string { return &s }

func twoPages() map[int][]types.DatasetPage {
	return map[int][]types.DatasetPage{
		1: {
			{Count: 3, Next: strPtr("http://backend/api/datasets/?page=2"), Results: []types.Dataset{{ID: 1}, {ID: 2}}},
			{Count: 3, Results: []types.Dataset{{ID: 3}}},
		},
		2: {
			{Count: 1, Results: []types.Dataset{{ID: 10}}},
		},
	}
}

func TestCatalog_RefreshFollowsPages(t *testing.T) {
	lister := &fakeLister{pages: twoPages()}
	c := NewCatalog(lister, nil, nil)

	list, err := c.Refresh(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.True(t, c.Contains(1, 3))
	assert.False(t, c.Contains(1, 10))
	assert.Equal(t, int32(2), lister.calls.Load())
}

func TestCatalog_DatasetsUsesMemoryThenCache(t *testing.T) {
	lister := &fakeLister{pages: twoPages()}
	cache := &memoryCache{data: map[int][]types.Dataset{2: {{ID: 99}}}}
	c := NewCatalog(lister, cache, nil)

	list, err := c.Datasets(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []types.Dataset{{ID: 99}}, list)
	assert.Equal(t, int32(0), lister.calls.Load())

	_, err = c.Datasets(context.Background(), 1)
	require.NoError(t, err)
	_, err = c.Datasets(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), lister.calls.Load())
	assert.Len(t, cache.data[1], 3)
}

func TestCatalog_ConcurrentRefreshesCollapse(t *testing.T) {
	lister := &fakeLister{pages: twoPages(), delay: 50 * time.Millisecond}
	c := NewCatalog(lister, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Refresh(context.Background(), 2)
		}()
	}
	wg.Wait()
	assert.Less(t, lister.calls.Load(), int32(5))
}

func TestCatalog_RefreshAsyncSwallowsFailure(t *testing.T) {
	lister := &fakeLister{err: errors.New("backend down")}
	c := NewCatalog(lister, nil, nil)

	c.RefreshAsync(1)
	c.Wait()

	assert.Equal(t, int32(1), lister.calls.Load())
	assert.False(t, c.Contains(1, 1))
}

func TestCatalog_RefreshAsyncMakesUploadVisible(t *testing.T) {
	lister := &fakeLister{pages: twoPages()}
	c := NewCatalog(lister, nil, nil)

	c.RefreshAsync(2)
	c.Wait()
	assert.True(t, c.Contains(2, 10))
}

// gatedLister holds its first call until gate is closed. Each call sees the
// datasets present when it started.
type gatedLister struct {
	mu      sync.Mutex
	list    []types.Dataset
	calls   int
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedLister) add(d types.Dataset) {
	g.mu.Lock()
	g.list = append(g.list, d)
	g.mu.Unlock()
}

func (g *gatedLister) ListDatasets(_ context.Context, _, _ int) (*types.DatasetPage, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	snapshot := append([]types.Dataset(nil), g.list...)
	g.mu.Unlock()
	if first {
		close(g.entered)
		<-g.gate
	}
	return &types.DatasetPage{Count: len(snapshot), Results: snapshot}, nil
}

func TestCatalog_RefreshAsyncDoesNotJoinEarlierFetch(t *testing.T) {
	lister := &gatedLister{
		list:    []types.Dataset{{ID: 1}},
		entered: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	cache := &memoryCache{data: map[int][]types.Dataset{}}
	c := NewCatalog(lister, cache, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Refresh(ctx, 1)
	}()
	<-lister.entered

	lister.add(types.Dataset{ID: 2})
	c.RefreshAsync(1)

	waited := make(chan struct{})
	go func() {
		c.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		close(lister.gate)
		t.Fatal("background refresh waited on the earlier fetch")
	}
	assert.True(t, c.Contains(1, 2))

	close(lister.gate)
	<-done
	assert.True(t, c.Contains(1, 2), "earlier fetch must not overwrite the newer list")
	cache.mu.Lock()
	defer cache.mu.Unlock()
	assert.Equal(t, []types.Dataset{{ID: 1}, {ID: 2}}, cache.data[1])
}

func TestCatalog_DatasetsForProjects(t *testing.T) {
	c := NewCatalog(&fakeLister{pages: twoPages()}, nil, nil)

	got, err := c.DatasetsForProjects(context.Background(), []int{1, 2})
	require.NoError(t, err)
	assert.Len(t, got[1], 3)
	assert.Len(t, got[2], 1)

	failing := NewCatalog(&fakeLister{err: errors.New("boom")}, nil, nil)
	_, err = failing.DatasetsForProjects(context.Background(), []int{1, 2})
	assert.Error(t, err)
}

func TestCatalog_Describe(t *testing.T) {
	rows, cols := 150, 5
	lister := &fakeLister{pages: map[int][]types.DatasetPage{
		1: {{Results: []types.Dataset{{ID: 4, Rows: &rows, Columns: &cols}}}},
	}}
	c := NewCatalog(lister, nil, nil)

	info, err := c.Describe(context.Background(), 4)
	require.NoError(t, err)
	assert.Nil(t, info)

	_, err = c.Refresh(context.Background(), 1)
	require.NoError(t, err)

	info, err = c.Describe(context.Background(), 4)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, []int{150, 5}, info.Shape)
	assert.Equal(t, 4, *info.DatasetID)
}
