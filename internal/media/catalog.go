package media

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amadeodlp/canalradionov-service/internal/models"
)

// ErrNotFound is returned for unknown show or episode ids.
var ErrNotFound = errors.New("media item not found")

// Catalog is the volatile radio show and episode catalog.
type Catalog struct {
	mu       sync.RWMutex
	shows    map[string]models.RadioShow
	episodes map[string]map[string]models.Episode // showID -> episodeID -> episode
	logger   *zap.Logger
}

// NewCatalog creates an empty catalog.
func NewCatalog(logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		shows:    make(map[string]models.RadioShow),
		episodes: make(map[string]map[string]models.Episode),
		logger:   logger,
	}
}

// AddShow stores a show and its episodes, allocating ids when absent.
func (c *Catalog) AddShow(show models.RadioShow) models.RadioShow {
	if show.ID == "" {
		show.ID = uuid.New().String()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	eps := make(map[string]models.Episode, len(show.Episodes))
	for i := range show.Episodes {
		if show.Episodes[i].ID == "" {
			show.Episodes[i].ID = uuid.New().String()
		}
		eps[show.Episodes[i].ID] = show.Episodes[i]
	}
	c.shows[show.ID] = show
	c.episodes[show.ID] = eps
	return show
}

// AddEpisode appends an episode to an existing show, allocating an id when
// absent.
func (c *Catalog) AddEpisode(showID string, ep models.Episode) (models.Episode, error) {
	if ep.ID == "" {
		ep.ID = uuid.New().String()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	show, ok := c.shows[showID]
	if !ok {
		return models.Episode{}, ErrNotFound
	}
	c.episodes[showID][ep.ID] = ep
	show.Episodes = append(show.Episodes, ep)
	c.shows[showID] = show
	return ep, nil
}

// RemoveEpisode deletes an episode and returns the removed value.
func (c *Catalog) RemoveEpisode(episodeID string) (models.Episode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for showID, eps := range c.episodes {
		e, ok := eps[episodeID]
		if !ok {
			continue
		}
		delete(eps, episodeID)
		show := c.shows[showID]
		kept := make([]models.Episode, 0, len(show.Episodes))
		for _, se := range show.Episodes {
			if se.ID != episodeID {
				kept = append(kept, se)
			}
		}
		show.Episodes = kept
		c.shows[showID] = show
		return e, nil
	}
	return models.Episode{}, ErrNotFound
}

// AllShows returns every show, sorted by scheduled time descending.
func (c *Catalog) AllShows() []models.RadioShow {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.RadioShow, 0, len(c.shows))
	for _, s := range c.shows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.After(out[j].ScheduledTime) })
	return out
}

// ShowByID returns one show.
func (c *Catalog) ShowByID(id string) (models.RadioShow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.shows[id]
	if !ok {
		return models.RadioShow{}, ErrNotFound
	}
	return s, nil
}

// LiveShows returns shows that are marked live and within their slot now.
func (c *Catalog) LiveShows() []models.RadioShow {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.RadioShow
	for _, s := range c.shows {
		if s.IsLive && s.ScheduledTime.Before(now) && s.EndTime.After(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out
}

// UpcomingShows returns shows scheduled in the future, soonest first.
func (c *Catalog) UpcomingShows() []models.RadioShow {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.RadioShow
	for _, s := range c.shows {
		if s.ScheduledTime.After(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out
}

// EpisodesByShow returns a show's episodes, newest first.
func (c *Catalog) EpisodesByShow(showID string) ([]models.Episode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	eps, ok := c.episodes[showID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]models.Episode, 0, len(eps))
	for _, e := range eps {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishDate.After(out[j].PublishDate) })
	return out, nil
}

// EpisodeByID finds one episode across shows.
func (c *Catalog) EpisodeByID(episodeID string) (models.Episode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, eps := range c.episodes {
		if e, ok := eps[episodeID]; ok {
			return e, nil
		}
	}
	return models.Episode{}, ErrNotFound
}

// RecordPlay increments an episode's play count and returns the new value.
func (c *Catalog) RecordPlay(episodeID string) (models.Episode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for showID, eps := range c.episodes {
		if e, ok := eps[episodeID]; ok {
			e.PlayCount++
			eps[episodeID] = e
			show := c.shows[showID]
			for i := range show.Episodes {
				if show.Episodes[i].ID == episodeID {
					show.Episodes[i].PlayCount = e.PlayCount
				}
			}
			c.shows[showID] = show
			return e, nil
		}
	}
	return models.Episode{}, ErrNotFound
}
