package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amadeodlp/canalradionov-service/internal/models"
)

type fakeDirectory struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeDirectory(users ...*models.User) *fakeDirectory {
	d := &fakeDirectory{users: make(map[string]*models.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) GetUserByID(_ context.Context, id string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users[id], nil
}

func newTestRegistry(dir Directory) *Registry {
	return NewRegistry(
		dir,
		StreamAllocator("wss://stream.test/broadcast"),
		RecordingAllocator("https://storage.test/recordings"),
		2*time.Hour,
		nil,
	)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestStartAndStopLifecycle(t *testing.T) {
	dir := newFakeDirectory(
		&models.User{ID: "host-1", Name: "Nova"},
		&models.User{ID: "cohost-1", Name: "Rio"},
	)
	r := newTestRegistry(dir)

	session, err := r.Start(context.Background(), "host-1", models.BroadcastRequest{
		Title:     strPtr("Morning Drive"),
		Tags:      []string{"music", "talk"},
		CoHostIDs: []string{"cohost-1", "ghost"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, models.StatusLive, session.Status)
	assert.Equal(t, "Nova", session.HostName)
	assert.Equal(t, "wss://stream.test/broadcast/"+session.ID, session.StreamURL)
	assert.Empty(t, session.RecordingURL)

	// the unresolvable co-host is dropped, the resolvable one kept inactive
	require.Len(t, session.CoHosts, 1)
	assert.Equal(t, "cohost-1", session.CoHosts[0].UserID)
	assert.False(t, session.CoHosts[0].IsActive)

	r.ListenerJoined(session.ID, "l1")
	r.ListenerJoined(session.ID, "l2")

	final, err := r.Stop(session.ID, "host-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnded, final.Status)
	assert.Equal(t, 2, final.ListenerCount)
	assert.Equal(t, "https://storage.test/recordings/"+session.ID+".mp3", final.RecordingURL)

	// the session is evicted; every later operation observes not-found
	_, err = r.Stop(session.ID, "host-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.GetByID(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, r.ListenerCount(session.ID))
}

func TestStartUnknownHost(t *testing.T) {
	r := newTestRegistry(newFakeDirectory())
	_, err := r.Start(context.Background(), "nobody", models.BroadcastRequest{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStopRequiresHost(t *testing.T) {
	dir := newFakeDirectory(&models.User{ID: "host-1", Name: "Nova"})
	r := newTestRegistry(dir)
	session, err := r.Start(context.Background(), "host-1", models.BroadcastRequest{})
	require.NoError(t, err)

	_, err = r.Stop(session.ID, "intruder")
	assert.ErrorIs(t, err, ErrNotHost)

	// the failed stop left the session live
	got, err := r.GetByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLive, got.Status)
}

func TestAddCoHost(t *testing.T) {
	dir := newFakeDirectory(
		&models.User{ID: "host-1", Name: "Nova"},
		&models.User{ID: "cohost-1", Name: "Rio"},
	)
	r := newTestRegistry(dir)
	session, err := r.Start(context.Background(), "host-1", models.BroadcastRequest{})
	require.NoError(t, err)

	updated, err := r.AddCoHost(context.Background(), session.ID, "host-1", "cohost-1")
	require.NoError(t, err)
	require.Len(t, updated.CoHosts, 1)

	// adding again is a no-op, not a duplicate
	again, err := r.AddCoHost(context.Background(), session.ID, "host-1", "cohost-1")
	require.NoError(t, err)
	assert.Len(t, again.CoHosts, 1)

	_, err = r.AddCoHost(context.Background(), session.ID, "host-1", "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = r.AddCoHost(context.Background(), session.ID, "cohost-1", "host-1")
	assert.ErrorIs(t, err, ErrNotHost)

	// the rejected call changed nothing
	after, err := r.Update(context.Background(), session.ID, "host-1", models.BroadcastRequest{})
	require.NoError(t, err)
	require.Len(t, after.CoHosts, 1)
	assert.Equal(t, "cohost-1", after.CoHosts[0].UserID)
}

func TestRemoveCoHostNoopForNonMember(t *testing.T) {
	dir := newFakeDirectory(
		&models.User{ID: "host-1", Name: "Nova"},
		&models.User{ID: "cohost-1", Name: "Rio"},
	)
	r := newTestRegistry(dir)
	session, err := r.Start(context.Background(), "host-1", models.BroadcastRequest{CoHostIDs: []string{"cohost-1"}})
	require.NoError(t, err)

	updated, err := r.RemoveCoHost(session.ID, "host-1", "stranger")
	require.NoError(t, err)
	assert.Len(t, updated.CoHosts, 1)

	updated, err = r.RemoveCoHost(session.ID, "host-1", "cohost-1")
	require.NoError(t, err)
	assert.Empty(t, updated.CoHosts)
}

func TestUpdateReconcilesCoHosts(t *testing.T) {
	dir := newFakeDirectory(
		&models.User{ID: "host-1", Name: "Nova"},
		&models.User{ID: "a", Name: "A"},
		&models.User{ID: "b", Name: "B"},
	)
	r := newTestRegistry(dir)
	session, err := r.Start(context.Background(), "host-1", models.BroadcastRequest{
		Title:     strPtr("Before"),
		CoHostIDs: []string{"a"},
	})
	require.NoError(t, err)

	updated, err := r.Update(context.Background(), session.ID, "host-1", models.BroadcastRequest{
		Title:     strPtr("After"),
		IsPrivate: boolPtr(true),
		CoHostIDs: []string{"b", "ghost"},
	})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Title)
	assert.True(t, updated.IsPrivate)
	require.Len(t, updated.CoHosts, 1)
	assert.Equal(t, "b", updated.CoHosts[0].UserID)

	// nil fields leave current values alone
	unchanged, err := r.Update(context.Background(), session.ID, "host-1", models.BroadcastRequest{})
	require.NoError(t, err)
	assert.Equal(t, "After", unchanged.Title)
	assert.Len(t, unchanged.CoHosts, 1)

	// only the host may update; a rejected update changes nothing
	_, err = r.Update(context.Background(), session.ID, "b", models.BroadcastRequest{Title: strPtr("Hijacked")})
	assert.ErrorIs(t, err, ErrNotHost)

	after, err := r.Update(context.Background(), session.ID, "host-1", models.BroadcastRequest{})
	require.NoError(t, err)
	assert.Equal(t, "After", after.Title)
	require.Len(t, after.CoHosts, 1)
	assert.Equal(t, "b", after.CoHosts[0].UserID)
}

func TestListActiveFiltersPrivate(t *testing.T) {
	dir := newFakeDirectory(&models.User{ID: "host-1", Name: "Nova"})
	r := newTestRegistry(dir)

	public, err := r.Start(context.Background(), "host-1", models.BroadcastRequest{Title: strPtr("Open")})
	require.NoError(t, err)
	private, err := r.Start(context.Background(), "host-1", models.BroadcastRequest{Title: strPtr("Closed"), IsPrivate: boolPtr(true)})
	require.NoError(t, err)

	active := r.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, public.ID, active[0].ID)
	assert.Equal(t, public.StartTime.Add(2*time.Hour), active[0].EstimatedEndTime)

	// a direct lookup still reveals the private session
	got, err := r.GetByID(private.ID)
	require.NoError(t, err)
	assert.Equal(t, "Closed", got.Title)
}

func TestProjectionShowsOnlyActiveCoHosts(t *testing.T) {
	dir := newFakeDirectory(
		&models.User{ID: "host-1", Name: "Nova"},
		&models.User{ID: "a", Name: "A"},
		&models.User{ID: "b", Name: "B"},
	)
	r := newTestRegistry(dir)
	session, err := r.Start(context.Background(), "host-1", models.BroadcastRequest{CoHostIDs: []string{"a", "b"}})
	require.NoError(t, err)

	r.MarkCoHostPresence(session.ID, "a", true)

	got, err := r.GetByID(session.ID)
	require.NoError(t, err)
	require.Len(t, got.CoHosts, 1)
	assert.Equal(t, "a", got.CoHosts[0].UserID)
	assert.Equal(t, AvatarURL("a"), got.CoHosts[0].UserImageURL)
}

func TestListenerTracking(t *testing.T) {
	dir := newFakeDirectory(&models.User{ID: "host-1", Name: "Nova"})
	r := newTestRegistry(dir)
	session, err := r.Start(context.Background(), "host-1", models.BroadcastRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, r.ListenerJoined(session.ID, "l1"))
	assert.Equal(t, 2, r.ListenerJoined(session.ID, "l2"))
	// a repeat join refreshes, never double-counts
	assert.Equal(t, 2, r.ListenerJoined(session.ID, "l1"))
	assert.Equal(t, 1, r.ListenerLeft(session.ID, "l2"))
	assert.Equal(t, 1, r.ListenerLeft(session.ID, "l2"))
	assert.Equal(t, 1, r.ListenerCount(session.ID))

	assert.Equal(t, 0, r.ListenerJoined("unknown", "l1"))
	assert.Equal(t, 0, r.ListenerLeft("unknown", "l1"))
}

func TestConcurrentStopAndAddCoHost(t *testing.T) {
	dir := newFakeDirectory(
		&models.User{ID: "host-1", Name: "Nova"},
		&models.User{ID: "cohost-1", Name: "Rio"},
	)
	r := newTestRegistry(dir)
	session, err := r.Start(context.Background(), "host-1", models.BroadcastRequest{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var stopErr, addErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, stopErr = r.Stop(session.ID, "host-1")
	}()
	go func() {
		defer wg.Done()
		_, addErr = r.AddCoHost(context.Background(), session.ID, "host-1", "cohost-1")
	}()
	wg.Wait()

	require.NoError(t, stopErr)
	if addErr != nil {
		assert.ErrorIs(t, addErr, ErrSessionNotFound)
	}
	_, err = r.GetByID(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
