package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amadeodlp/canalradionov-service/internal/models"
)

func TestAddShowAllocatesIDs(t *testing.T) {
	c := NewCatalog(nil)
	show := c.AddShow(models.RadioShow{
		Title: "Noche de Tango",
		Episodes: []models.Episode{
			{Title: "Episode 1", AudioURL: "episodes/tango/ep1.mp3"},
		},
	})

	require.NotEmpty(t, show.ID)
	require.Len(t, show.Episodes, 1)
	assert.NotEmpty(t, show.Episodes[0].ID)

	got, err := c.ShowByID(show.ID)
	require.NoError(t, err)
	assert.Equal(t, "Noche de Tango", got.Title)

	_, err = c.ShowByID("unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddEpisodeToExistingShow(t *testing.T) {
	c := NewCatalog(nil)
	show := c.AddShow(models.RadioShow{Title: "Mananas"})

	ep, err := c.AddEpisode(show.ID, models.Episode{
		Title:    "lunes",
		AudioURL: "episodes/" + show.ID + "/lunes.mp3",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ep.ID)

	got, err := c.EpisodeByID(ep.ID)
	require.NoError(t, err)
	assert.Equal(t, "lunes", got.Title)

	fromShow, err := c.ShowByID(show.ID)
	require.NoError(t, err)
	require.Len(t, fromShow.Episodes, 1)
	assert.Equal(t, ep.ID, fromShow.Episodes[0].ID)

	_, err = c.AddEpisode("unknown", models.Episode{Title: "orphan"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveEpisode(t *testing.T) {
	c := NewCatalog(nil)
	show := c.AddShow(models.RadioShow{
		Title: "Archivo",
		Episodes: []models.Episode{
			{Title: "keep"},
			{Title: "drop", AudioURL: "episodes/x/drop.mp3"},
		},
	})
	dropID := show.Episodes[1].ID

	removed, err := c.RemoveEpisode(dropID)
	require.NoError(t, err)
	assert.Equal(t, "drop", removed.Title)
	assert.Equal(t, "episodes/x/drop.mp3", removed.AudioURL)

	_, err = c.EpisodeByID(dropID)
	assert.ErrorIs(t, err, ErrNotFound)

	fromShow, err := c.ShowByID(show.ID)
	require.NoError(t, err)
	require.Len(t, fromShow.Episodes, 1)
	assert.Equal(t, "keep", fromShow.Episodes[0].Title)

	_, err = c.RemoveEpisode(dropID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLiveAndUpcomingFilters(t *testing.T) {
	c := NewCatalog(nil)
	now := time.Now()

	live := c.AddShow(models.RadioShow{
		Title: "On Air", IsLive: true,
		ScheduledTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour),
	})
	c.AddShow(models.RadioShow{
		Title: "Finished", IsLive: true,
		ScheduledTime: now.Add(-3 * time.Hour), EndTime: now.Add(-time.Hour),
	})
	upcoming := c.AddShow(models.RadioShow{
		Title:         "Tonight",
		ScheduledTime: now.Add(2 * time.Hour), EndTime: now.Add(4 * time.Hour),
	})

	liveShows := c.LiveShows()
	require.Len(t, liveShows, 1)
	assert.Equal(t, live.ID, liveShows[0].ID)

	upcomingShows := c.UpcomingShows()
	require.Len(t, upcomingShows, 1)
	assert.Equal(t, upcoming.ID, upcomingShows[0].ID)

	assert.Len(t, c.AllShows(), 3)
}

func TestEpisodesNewestFirst(t *testing.T) {
	c := NewCatalog(nil)
	now := time.Now()
	show := c.AddShow(models.RadioShow{
		Title: "Archive",
		Episodes: []models.Episode{
			{Title: "old", PublishDate: now.Add(-48 * time.Hour)},
			{Title: "new", PublishDate: now.Add(-1 * time.Hour)},
		},
	})

	eps, err := c.EpisodesByShow(show.ID)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, "new", eps[0].Title)

	_, err = c.EpisodesByShow("unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPlayIncrementsEverywhere(t *testing.T) {
	c := NewCatalog(nil)
	show := c.AddShow(models.RadioShow{
		Title:    "Counts",
		Episodes: []models.Episode{{Title: "only"}},
	})
	epID := show.Episodes[0].ID

	got, err := c.RecordPlay(epID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PlayCount)

	got, err = c.RecordPlay(epID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.PlayCount)

	// the count is visible on the show's embedded episode list too
	fromShow, err := c.ShowByID(show.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fromShow.Episodes[0].PlayCount)

	_, err = c.RecordPlay("unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}
