// Package catalog owns the process-wide episode cache: it loads the snapshot
// from disk, falls back to the media API, and derives the newest and next
// episodes.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"episode-desk/internal/broadcast"
	"episode-desk/internal/metadata"
	"episode-desk/internal/models"
	"episode-desk/internal/watch"
)

// CacheFileName is the snapshot file written inside the cache directory.
const CacheFileName = "episodes.json"

var (
	// ErrNotFound is returned when an episode reference matches nothing.
	ErrNotFound = errors.New("episode not found")
	// ErrNoEpisodes is returned when no published episode exists yet.
	ErrNoEpisodes = errors.New("no published episodes")
)

// Fetcher loads every episode from the remote source.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]models.Episode, error)
}

// Options configures a Catalog.
type Options struct {
	// CacheDir holds the snapshot file. Empty disables the disk cache.
	CacheDir string
	// WriteCache persists fetched snapshots.
	WriteCache bool
	// MediaDir is an optional local mirror of episode audio.
	MediaDir string
	// Watch reloads the snapshot when the cache file changes on disk.
	Watch    bool
	Debounce time.Duration
}

// NextInfo describes the upcoming episode and its broadcast state.
type NextInfo struct {
	ID      int             `json:"id"`
	Number  string          `json:"number"`
	State   broadcast.State `json:"state"`
	Live    string          `json:"live"`
	Episode *models.Episode `json:"episode,omitempty"`
}

type cacheFile struct {
	FetchedAt time.Time        `json:"fetched_at"`
	Newest    string           `json:"newest"`
	Next      string           `json:"next"`
	Episodes  []models.Episode `json:"episodes"`
}

type snapshot struct {
	fetchedAt time.Time
	episodes  []models.Episode
	newest    int
	next      int
}

// Catalog is the episode cache shared by the HTTP API and the CLI.
type Catalog struct {
	fetcher  Fetcher
	resolver *broadcast.Resolver
	opts     Options
	logger   zerolog.Logger
	watcher  *watch.FileWatcher

	mu   sync.RWMutex
	snap snapshot
}

// New creates an empty Catalog. Call Load before reading from it.
func New(fetcher Fetcher, resolver *broadcast.Resolver, opts Options, logger zerolog.Logger) *Catalog {
	if resolver == nil {
		resolver = broadcast.NewResolver(nil, broadcast.German, nil)
	}
	return &Catalog{
		fetcher:  fetcher,
		resolver: resolver,
		opts:     opts,
		logger:   logger,
		snap:     snapshot{newest: -1, next: -1},
	}
}

// CachePath is the location of the snapshot file, or "" without a cache
// directory.
func (c *Catalog) CachePath() string {
	if c.opts.CacheDir == "" {
		return ""
	}
	return filepath.Join(c.opts.CacheDir, CacheFileName)
}

// Load reads the disk snapshot. A missing or unreadable snapshot is replaced by
// a fresh fetch from the media API.
func (c *Catalog) Load(ctx context.Context) error {
	if err := c.readCache(); err != nil {
		c.logger.Info().Err(err).Msg("episode cache unavailable; fetching from media api")
		if err := c.Refresh(ctx); err != nil {
			return err
		}
	}

	if c.opts.Watch && c.opts.CacheDir != "" && c.watcher == nil {
		watcher, err := watch.NewFileWatcher(c.CachePath(), c.opts.Debounce, c.reloadFromDisk, c.logger)
		if err != nil {
			return fmt.Errorf("watch episode cache: %w", err)
		}
		c.watcher = watcher
	}
	return nil
}

// Refresh fetches every episode from the media API, replaces the snapshot and
// writes it to disk when enabled.
func (c *Catalog) Refresh(ctx context.Context) error {
	episodes, err := c.fetcher.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("refresh episodes: %w", err)
	}

	if c.opts.MediaDir != "" {
		for i := range episodes {
			enriched, err := metadata.Enrich(episodes[i], c.opts.MediaDir)
			if err != nil {
				c.logger.Warn().Err(err).Str("episode", episodes[i].Slug).Msg("local media probe failed")
				continue
			}
			episodes[i] = enriched
		}
	}

	snap := buildSnapshot(episodes, time.Now().UTC())
	c.swap(snap)

	if c.opts.WriteCache && c.opts.CacheDir != "" {
		if err := c.writeCache(snap); err != nil {
			return fmt.Errorf("write episode cache: %w", err)
		}
	}
	return nil
}

// Close stops watching the cache file.
func (c *Catalog) Close() error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.Close()
}

// Episodes returns every cached episode ordered by id.
func (c *Catalog) Episodes() []models.Episode {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]models.Episode, len(c.snap.episodes))
	for i, ep := range c.snap.episodes {
		result[i] = ep.Clone()
	}
	return result
}

// FetchedAt reports when the current snapshot was fetched from the API.
func (c *Catalog) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.fetchedAt
}

// Episode looks an episode up by slug ("007") or by number ("7").
func (c *Catalog) Episode(ref string) (models.Episode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, ep := range c.snap.episodes {
		if ep.Slug == ref {
			return ep.Clone(), nil
		}
	}

	id, err := strconv.Atoi(ref)
	if err != nil {
		return models.Episode{}, ErrNotFound
	}
	for _, ep := range c.snap.episodes {
		if ep.ID == id {
			return ep.Clone(), nil
		}
	}
	return models.Episode{}, ErrNotFound
}

// Newest returns the most recent published episode.
func (c *Catalog) Newest() (models.Episode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snap.newest < 0 {
		return models.Episode{}, ErrNoEpisodes
	}
	return c.snap.episodes[c.snap.newest].Clone(), nil
}

// Next describes the episode after the newest published one. Without such an
// episode the id is still newest+1 and the state is None.
func (c *Catalog) Next() NextInfo {
	c.mu.RLock()
	newestID := 0
	if c.snap.newest >= 0 {
		newestID = c.snap.episodes[c.snap.newest].ID
	}
	var next *models.Episode
	if c.snap.next >= 0 {
		ep := c.snap.episodes[c.snap.next].Clone()
		next = &ep
	}
	c.mu.RUnlock()

	info := NextInfo{ID: newestID + 1, State: broadcast.None}
	if next != nil {
		info.ID = next.ID
		info.Episode = next
		info.State, info.Live = c.resolver.Resolve(next.Live)
	}
	info.Number = "#" + strconv.Itoa(info.ID)
	return info
}

// State resolves the broadcast state of ep against the catalog's clock.
func (c *Catalog) State(ep models.Episode) (broadcast.State, string) {
	return c.resolver.Resolve(ep.Live)
}

func (c *Catalog) swap(snap snapshot) {
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	ev := c.logger.Info().Int("episodes", len(snap.episodes))
	if snap.newest >= 0 {
		ev = ev.Str("newest", snap.episodes[snap.newest].Slug)
	}
	ev.Msg("episode catalog updated")
}

func (c *Catalog) reloadFromDisk() {
	if err := c.readCache(); err != nil {
		c.logger.Warn().Err(err).Msg("episode cache reload failed; keeping current snapshot")
	}
}

func (c *Catalog) readCache() error {
	path := c.CachePath()
	if path == "" {
		return errors.New("no cache directory configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if file.Episodes == nil {
		return fmt.Errorf("decode %s: no episodes", path)
	}

	c.swap(buildSnapshot(file.Episodes, file.FetchedAt))
	return nil
}

func (c *Catalog) writeCache(snap snapshot) error {
	file := cacheFile{FetchedAt: snap.fetchedAt, Episodes: snap.episodes}
	if snap.newest >= 0 {
		file.Newest = snap.episodes[snap.newest].Slug
	}
	if snap.next >= 0 {
		file.Next = snap.episodes[snap.next].Slug
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.opts.CacheDir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.opts.CacheDir, ".episodes-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.CachePath())
}

func buildSnapshot(episodes []models.Episode, fetchedAt time.Time) snapshot {
	sorted := make([]models.Episode, len(episodes))
	copy(sorted, episodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ID == sorted[j].ID {
			return sorted[i].Slug < sorted[j].Slug
		}
		return sorted[i].ID < sorted[j].ID
	})

	snap := snapshot{fetchedAt: fetchedAt, episodes: sorted, newest: -1, next: -1}
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].Published() {
			snap.newest = i
			break
		}
	}

	start := snap.newest + 1
	for i := start; i < len(sorted); i++ {
		if snap.newest < 0 || sorted[i].ID > sorted[snap.newest].ID {
			snap.next = i
			break
		}
	}
	return snap
}
