package dataset

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jonathan/model-builder/internal/logger"
	"github.com/jonathan/model-builder/internal/types"
)

const (
	maxPages       = 50
	refreshTimeout = 30 * time.Second
)

// Lister reads pages of a project's datasets
type Lister interface {
	ListDatasets(ctx context.Context, projectID, page int) (*types.DatasetPage, error)
}

// Cache is an optional shared store for dataset lists
type Cache interface {
	GetDatasets(ctx context.Context, projectID int) ([]types.Dataset, bool, error)
	SetDatasets(ctx context.Context, projectID int, datasets []types.Dataset) error
}

// Catalog keeps the known datasets per project
type Catalog struct {
	lister Lister
	cache  Cache
	log    *logger.Logger

	group singleflight.Group
	wg    sync.WaitGroup

	mu        sync.RWMutex
	byProject map[int][]types.Dataset
	// generation of the fetch each stored list came from
	gens map[int]uint64
	seq  uint64
}

// NewCatalog creates a catalog. cache may be nil.
func NewCatalog(lister Lister, cache Cache, log *logger.Logger) *Catalog {
	if log == nil {
		log = logger.Nop()
	}
	return &Catalog{
		lister:    lister,
		cache:     cache,
		log:       log,
		byProject: make(map[int][]types.Dataset),
		gens:      make(map[int]uint64),
	}
}

// Datasets returns the known datasets, loading them on first use
func (c *Catalog) Datasets(ctx context.Context, projectID int) ([]types.Dataset, error) {
	c.mu.RLock()
	list, ok := c.byProject[projectID]
	c.mu.RUnlock()
	if ok {
		return list, nil
	}

	if c.cache != nil {
		gen := c.nextGen()
		cached, found, err := c.cache.GetDatasets(ctx, projectID)
		if err != nil {
			c.log.Warn("dataset cache read failed", "project_id", projectID, "error", err)
		} else if found {
			c.store(projectID, gen, cached)
			return cached, nil
		}
	}
	return c.Refresh(ctx, projectID)
}

// Refresh reloads every page from the backend. Concurrent refreshes of the
// same project share one request.
func (c *Catalog) Refresh(ctx context.Context, projectID int) ([]types.Dataset, error) {
	v, err, _ := c.group.Do(strconv.Itoa(projectID), func() (interface{}, error) {
		return c.load(ctx, projectID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.Dataset), nil
}

// RefreshAsync refreshes in the background after a change on the backend,
// such as an upload. It never joins a fetch that started before the call.
// Failures are logged and dropped.
func (c *Catalog) RefreshAsync(projectID int) {
	key := strconv.Itoa(projectID)
	c.group.Forget(key)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		_, err, _ := c.group.Do(key, func() (interface{}, error) {
			return c.load(ctx, projectID)
		})
		if err != nil {
			c.log.Warn("dataset list refresh failed", "project_id", projectID, "error", err)
		}
	}()
}

// load fetches every page and stores the result unless a fetch that started
// later has already stored its own.
func (c *Catalog) load(ctx context.Context, projectID int) ([]types.Dataset, error) {
	gen := c.nextGen()
	list, err := c.fetchAll(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !c.store(projectID, gen, list) {
		c.mu.RLock()
		newer := c.byProject[projectID]
		c.mu.RUnlock()
		return newer, nil
	}
	if c.cache != nil {
		if err := c.cache.SetDatasets(ctx, projectID, list); err != nil {
			c.log.Warn("dataset cache write failed", "project_id", projectID, "error", err)
		}
	}
	return list, nil
}

// Wait blocks until background refreshes finish
func (c *Catalog) Wait() {
	c.wg.Wait()
}

// Contains reports whether a dataset id is known for the project
func (c *Catalog) Contains(projectID, datasetID int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.byProject[projectID] {
		if d.ID == datasetID {
			return true
		}
	}
	return false
}

// DatasetsForProjects loads several projects concurrently
func (c *Catalog) DatasetsForProjects(ctx context.Context, projectIDs []int) (map[int][]types.Dataset, error) {
	results := make([][]types.Dataset, len(projectIDs))
	g, gCtx := errgroup.WithContext(ctx)
	for i, id := range projectIDs {
		g.Go(func() error {
			list, err := c.Datasets(gCtx, id)
			if err != nil {
				return err
			}
			results[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int][]types.Dataset, len(projectIDs))
	for i, id := range projectIDs {
		out[id] = results[i]
	}
	return out, nil
}

func (c *Catalog) fetchAll(ctx context.Context, projectID int) ([]types.Dataset, error) {
	var all []types.Dataset
	for page := 1; page <= maxPages; page++ {
		p, err := c.lister.ListDatasets(ctx, projectID, page)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Results...)
		if p.Next == nil || *p.Next == "" || len(p.Results) == 0 {
			break
		}
	}
	if all == nil {
		all = []types.Dataset{}
	}
	return all, nil
}

func (c *Catalog) nextGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// store keeps list unless a later generation is already stored
func (c *Catalog) store(projectID int, gen uint64, list []types.Dataset) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen < c.gens[projectID] {
		return false
	}
	c.byProject[projectID] = list
	c.gens[projectID] = gen
	return true
}

// Describe returns what the catalog knows about a dataset, or nil when the
// dataset has not been listed yet.
func (c *Catalog) Describe(_ context.Context, datasetID int) (*types.DatasetInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, list := range c.byProject {
		for _, d := range list {
			if d.ID != datasetID {
				continue
			}
			id := d.ID
			info := &types.DatasetInfo{DatasetID: &id}
			if d.Rows != nil && d.Columns != nil {
				info.Shape = []int{*d.Rows, *d.Columns}
			}
			return info, nil
		}
	}
	return nil, nil
}
