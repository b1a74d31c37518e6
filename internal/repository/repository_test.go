package repository_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/gift-exchange/internal/derange"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/model"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/repository"
)

func newEventWith(t *testing.T, store *repository.EventStore, names ...string) model.Event {
	t.Helper()
	event, err := store.Create("Winter swap")
	require.NoError(t, err)
	for _, name := range names {
		_, err := store.AddParticipant(event.ID, name)
		require.NoError(t, err)
	}
	event, err = store.Get(event.ID)
	require.NoError(t, err)
	return event
}

// sequence returns a code generator that yields codes in order, repeating
// the last one forever.
func sequence(codes ...string) func() string {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		code := codes[min(i, len(codes)-1)]
		i++
		return code
	}
}

func TestEventStore_Create(t *testing.T) {
	fixed := time.Date(2026, 11, 30, 9, 0, 0, 0, time.UTC)
	store := repository.NewEventStore(repository.WithClock(func() time.Time { return fixed }))

	event, err := store.Create("Winter swap")
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "Winter swap", event.Name)
	assert.Equal(t, model.StatusOpen, event.Status)
	assert.Len(t, event.InviteCode, 6)
	assert.NotEmpty(t, event.OrganizerToken)
	assert.NotEqual(t, event.ID, event.OrganizerToken)
	assert.NotContains(t, event.OrganizerToken, event.InviteCode)
	assert.Equal(t, fixed, event.CreatedAt)
	assert.Equal(t, 1, store.Len())

	byID, err := store.Get(event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, byID.ID)

	byCode, err := store.GetByInviteCode(event.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, event.ID, byCode.ID)
}

func TestEventStore_CreateManyHasNoCollisions(t *testing.T) {
	store := repository.NewEventStore()
	const n = 10_000

	ids := make(map[string]bool, n)
	codes := make(map[string]bool, n)
	tokens := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		event, err := store.Create(fmt.Sprintf("event-%d", i))
		require.NoError(t, err)
		require.False(t, ids[event.ID], "duplicate id %s", event.ID)
		require.False(t, codes[event.InviteCode], "duplicate code %s", event.InviteCode)
		require.False(t, tokens[event.OrganizerToken], "duplicate token")
		ids[event.ID] = true
		codes[event.InviteCode] = true
		tokens[event.OrganizerToken] = true
	}
	assert.Equal(t, n, store.Len())
}

func TestEventStore_CreateRetriesOnCodeCollision(t *testing.T) {
	store := repository.NewEventStore(repository.WithCodeGenerator(sequence("AAAAAA", "AAAAAA", "AAAAAA", "BBBBBB")))

	first, err := store.Create("first")
	require.NoError(t, err)
	second, err := store.Create("second")
	require.NoError(t, err)

	assert.Equal(t, "AAAAAA", first.InviteCode)
	assert.Equal(t, "BBBBBB", second.InviteCode)

	got, err := store.GetByInviteCode("AAAAAA")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestEventStore_CreateCodeSpaceExhausted(t *testing.T) {
	store := repository.NewEventStore(repository.WithCodeGenerator(sequence("AAAAAA")))

	_, err := store.Create("first")
	require.NoError(t, err)

	_, err = store.Create("second")
	assert.ErrorIs(t, err, repository.ErrCodeSpaceExhausted)
	assert.Equal(t, 1, store.Len())
}

func TestEventStore_NotFound(t *testing.T) {
	store := repository.NewEventStore()

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.GetByInviteCode("ZZZZZZ")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.AddParticipant("missing", "Ana")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.Close("missing", "token")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.VerifyOrganizer("missing", "token")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.AssignmentFor("missing", "p")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEventStore_SnapshotsAreIndependent(t *testing.T) {
	store := repository.NewEventStore()
	event := newEventWith(t, store, "Ana")

	event.Participants["forged"] = model.Participant{ID: "forged"}
	event.Status = model.StatusClosed

	fresh, err := store.Get(event.ID)
	require.NoError(t, err)
	assert.Len(t, fresh.Participants, 1)
	assert.Equal(t, model.StatusOpen, fresh.Status)
}

func TestEventStore_CloseAssignsDerangement(t *testing.T) {
	store := repository.NewEventStore()
	event := newEventWith(t, store, "Ana", "Ben", "Cleo", "Dev", "Eli", "Fay")

	res, err := store.Close(event.ID, event.OrganizerToken)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, res.Event.Status)
	assert.GreaterOrEqual(t, res.Attempts, 1)
	assert.False(t, res.Event.ClosedAt.IsZero())

	received := make(map[string]int)
	for id := range event.Participants {
		recipient, err := store.AssignmentFor(event.ID, id)
		require.NoError(t, err)
		assert.NotEqual(t, id, recipient.ID)
		received[recipient.ID]++
	}
	require.Len(t, received, len(event.Participants))
	for id, n := range received {
		assert.Equal(t, 1, n, "%s received %d gifts", id, n)
	}
}

func TestEventStore_ClosePairIsDeterministic(t *testing.T) {
	for i := 0; i < 50; i++ {
		store := repository.NewEventStore()
		event := newEventWith(t, store, "Ana", "Ben")

		res, err := store.Close(event.ID, event.OrganizerToken)
		require.NoError(t, err)

		var a, b string
		for id := range res.Event.Participants {
			if a == "" {
				a = id
			} else {
				b = id
			}
		}
		assert.Equal(t, b, res.Event.Participants[a].AssignedTo)
		assert.Equal(t, a, res.Event.Participants[b].AssignedTo)
	}
}

func TestEventStore_CloseTwiceKeepsAssignment(t *testing.T) {
	store := repository.NewEventStore()
	event := newEventWith(t, store, "Ana", "Ben", "Cleo", "Dev")

	first, err := store.Close(event.ID, event.OrganizerToken)
	require.NoError(t, err)

	_, err = store.Close(event.ID, event.OrganizerToken)
	assert.ErrorIs(t, err, model.ErrAlreadyClosed)

	after, err := store.Get(event.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Event.Participants, after.Participants)
	assert.Equal(t, first.Event.ClosedAt, after.ClosedAt)
}

func TestEventStore_CloseInsufficient(t *testing.T) {
	store := repository.NewEventStore()
	event := newEventWith(t, store, "Ana")

	_, err := store.Close(event.ID, event.OrganizerToken)
	assert.ErrorIs(t, err, model.ErrInsufficientParticipants)

	after, err := store.Get(event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, after.Status)
}

func TestEventStore_CloseInvalidToken(t *testing.T) {
	store := repository.NewEventStore()
	event := newEventWith(t, store, "Ana", "Ben", "Cleo")

	token := []byte(event.OrganizerToken)
	if token[0] == 'x' {
		token[0] = 'y'
	} else {
		token[0] = 'x'
	}

	for name, bad := range map[string]string{
		"one character off": string(token),
		"truncated":         event.OrganizerToken[:len(event.OrganizerToken)-1],
		"empty":             "",
		"event id":          event.ID,
		"invite code":       event.InviteCode,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := store.Close(event.ID, bad)
			assert.ErrorIs(t, err, repository.ErrInvalidToken)

			_, err = store.VerifyOrganizer(event.ID, bad)
			assert.ErrorIs(t, err, repository.ErrInvalidToken)
		})
	}

	after, err := store.Get(event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, after.Status)
	for _, p := range after.Participants {
		assert.Empty(t, p.AssignedTo)
	}
}

func TestEventStore_TokenOnlyAuthorizesItsEvent(t *testing.T) {
	store := repository.NewEventStore()
	a := newEventWith(t, store, "Ana", "Ben")
	b := newEventWith(t, store, "Cleo", "Dev")

	_, err := store.Close(b.ID, a.OrganizerToken)
	assert.ErrorIs(t, err, repository.ErrInvalidToken)
}

func TestEventStore_JoinAfterClose(t *testing.T) {
	store := repository.NewEventStore()
	event := newEventWith(t, store, "Ana", "Ben")
	_, err := store.Close(event.ID, event.OrganizerToken)
	require.NoError(t, err)

	_, err = store.AddParticipant(event.ID, "Late")
	assert.ErrorIs(t, err, model.ErrEventClosed)

	byCode, err := store.GetByInviteCode(event.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, byCode.Status)
	assert.Len(t, byCode.Participants, 2)
}

func TestEventStore_AssignmentForOpenEvent(t *testing.T) {
	store := repository.NewEventStore()
	event := newEventWith(t, store, "Ana", "Ben")

	for id := range event.Participants {
		_, err := store.AssignmentFor(event.ID, id)
		assert.ErrorIs(t, err, repository.ErrNoAssignment)
	}
}

func TestEventStore_ConcurrentJoins(t *testing.T) {
	store := repository.NewEventStore()
	event, err := store.Create("Crowd")
	require.NoError(t, err)

	const n = 500
	var g errgroup.Group
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			id, err := store.AddParticipant(event.ID, fmt.Sprintf("guest-%d", i))
			ids[i] = id
			return err
		})
	}
	require.NoError(t, g.Wait())

	after, err := store.Get(event.ID)
	require.NoError(t, err)
	assert.Len(t, after.Participants, n)
	for _, id := range ids {
		assert.Contains(t, after.Participants, id)
	}
}

func TestEventStore_CloseRacingJoins(t *testing.T) {
	for round := 0; round < 20; round++ {
		store := repository.NewEventStore()
		event := newEventWith(t, store, "Ana", "Ben")

		const joiners = 50
		var (
			mu       sync.Mutex
			accepted []string
			rejected int
			wg       sync.WaitGroup
		)
		start := make(chan struct{})
		for i := 0; i < joiners; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				id, err := store.AddParticipant(event.ID, fmt.Sprintf("late-%d", i))
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					assert.ErrorIs(t, err, model.ErrEventClosed)
					rejected++
					return
				}
				accepted = append(accepted, id)
			}()
		}

		var closed repository.CloseResult
		var closeErr error
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			closed, closeErr = store.Close(event.ID, event.OrganizerToken)
		}()

		close(start)
		wg.Wait()
		require.NoError(t, closeErr)

		assert.Equal(t, joiners, len(accepted)+rejected)
		assert.Len(t, closed.Event.Participants, 2+len(accepted))
		for _, id := range accepted {
			p, ok := closed.Event.Participants[id]
			require.True(t, ok, "accepted join %s missing from draw", id)
			assert.NotEmpty(t, p.AssignedTo)
		}
	}
}

func TestEventStore_ParallelEventsAreIndependent(t *testing.T) {
	store := repository.NewEventStore()

	const events = 40
	var g errgroup.Group
	for i := 0; i < events; i++ {
		g.Go(func() error {
			event, err := store.Create(fmt.Sprintf("event-%d", i))
			if err != nil {
				return err
			}
			for j := 0; j < 5; j++ {
				if _, err := store.AddParticipant(event.ID, fmt.Sprintf("p-%d", j)); err != nil {
					return err
				}
			}
			_, err = store.Close(event.ID, event.OrganizerToken)
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, events, store.Len())
}

// rendezvousDeranger holds each draw until two draws are in flight at once.
type rendezvousDeranger struct {
	engine   *derange.Engine
	arrived  atomic.Int32
	both     chan struct{}
	timedOut atomic.Bool
}

func (d *rendezvousDeranger) Derange(ids []string) (derange.Result, error) {
	if d.arrived.Add(1) == 2 {
		close(d.both)
	}
	select {
	case <-d.both:
	case <-time.After(2 * time.Second):
		d.timedOut.Store(true)
	}
	return d.engine.Derange(ids)
}

func TestEventStore_ClosesOfDifferentEventsRunInParallel(t *testing.T) {
	deranger := &rendezvousDeranger{engine: derange.New(), both: make(chan struct{})}
	store := repository.NewEventStore(repository.WithDeranger(deranger))

	first := newEventWith(t, store, "Alice", "Bob")
	second := newEventWith(t, store, "Carol", "Dave", "Erin")

	var g errgroup.Group
	for _, e := range []model.Event{first, second} {
		g.Go(func() error {
			_, err := store.Close(e.ID, e.OrganizerToken)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.False(t, deranger.timedOut.Load(), "closes of different events were serialised")
}

func TestEventStore_SharedEngineClosesInParallel(t *testing.T) {
	store := repository.NewEventStore(repository.WithDeranger(derange.New()))

	const events = 20
	created := make([]model.Event, events)
	for i := range created {
		created[i] = newEventWith(t, store, "Alice", "Bob", "Carol", "Dave")
	}

	var g errgroup.Group
	for _, e := range created {
		g.Go(func() error {
			_, err := store.Close(e.ID, e.OrganizerToken)
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, e := range created {
		got, err := store.Get(e.ID)
		require.NoError(t, err)
		assert.True(t, got.IsClosed())
	}
}
