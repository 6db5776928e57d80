package relay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinIsBidirectionalAndIdempotent(t *testing.T) {
	obs := &recorder{}
	r := New(WithObserver(obs))
	c := r.Connect(&fakeSink{})

	require.NoError(t, r.Join(c, "lobby"))
	require.NoError(t, r.Join(c, "lobby"))

	assert.Equal(t, []ConnID{c}, r.Members("lobby"))
	rooms, ok := r.RoomsOf(c)
	require.True(t, ok)
	assert.Equal(t, []string{"lobby"}, rooms)
	assert.Equal(t, []LifecycleKind{Opened, Joined}, obs.kinds())
}

func TestJoinRejectsBadInput(t *testing.T) {
	r := New()
	c := r.Connect(&fakeSink{})

	assert.ErrorIs(t, r.Join(c, "  "), ErrInvalidRoom)
	assert.ErrorIs(t, r.Join("ghost", "lobby"), ErrUnknownConnection)
	assert.Empty(t, r.Rooms())
}

func TestMultipleRooms(t *testing.T) {
	r := New()
	c := r.Connect(&fakeSink{})
	require.NoError(t, r.Join(c, "b"))
	require.NoError(t, r.Join(c, "a"))

	rooms, _ := r.RoomsOf(c)
	assert.Equal(t, []string{"a", "b"}, rooms)
	assert.Equal(t, []RoomInfo{{Name: "a", Members: 1}, {Name: "b", Members: 1}}, r.Rooms())
}

func TestLeaveDropsEmptyRoom(t *testing.T) {
	r := New()
	a := r.Connect(&fakeSink{})
	b := r.Connect(&fakeSink{})
	require.NoError(t, r.Join(a, "x"))
	require.NoError(t, r.Join(b, "x"))

	r.Leave(a, "x")
	assert.Equal(t, []ConnID{b}, r.Members("x"))

	r.Leave(a, "x")
	r.Leave(b, "x")
	assert.Nil(t, r.Members("x"))
	assert.Empty(t, r.Rooms())
}

func TestCleanupConnection(t *testing.T) {
	r := New()
	a := r.Connect(&fakeSink{})
	b := r.Connect(&fakeSink{})
	for _, room := range []string{"x", "y", "z"} {
		require.NoError(t, r.Join(a, room))
	}
	require.NoError(t, r.Join(b, "y"))

	r.CleanupConnection(a)

	rooms, ok := r.RoomsOf(a)
	assert.True(t, ok, "cleanup keeps the connection registered")
	assert.Empty(t, rooms)
	assert.Nil(t, r.Members("x"))
	assert.Equal(t, []ConnID{b}, r.Members("y"))
	assert.Nil(t, r.Members("z"))
}

func TestRouteToRoomExcludesSender(t *testing.T) {
	r := New()
	sa, sb, sc := &fakeSink{}, &fakeSink{}, &fakeSink{}
	a := r.Connect(sa)
	b := r.Connect(sb)
	r.Connect(sc)
	require.NoError(t, r.Join(a, "lobby"))
	require.NoError(t, r.Join(b, "lobby"))

	n := r.RouteToRoom(a, "lobby", "hi")

	assert.Equal(t, 1, n)
	assert.Empty(t, sa.named(EventReceiveMessage))
	assert.Equal(t, []any{"hi"}, sb.named(EventReceiveMessage))
	assert.Empty(t, sc.named(EventReceiveMessage))
}

func TestRouteToRoomFromNonMember(t *testing.T) {
	r := New()
	sa, sb, sc := &fakeSink{}, &fakeSink{}, &fakeSink{}
	a := r.Connect(sa)
	b := r.Connect(sb)
	c := r.Connect(sc)
	require.NoError(t, r.Join(a, "lobby"))
	require.NoError(t, r.Join(b, "lobby"))

	n := r.RouteToRoom(c, "lobby", "hi")

	assert.Equal(t, 2, n)
	assert.Equal(t, []any{"hi"}, sa.named(EventReceiveMessage))
	assert.Equal(t, []any{"hi"}, sb.named(EventReceiveMessage))
	assert.Empty(t, sc.named(EventReceiveMessage))
	assert.Nil(t, r.Members("other"))
}

func TestRouteAfterMemberDisconnected(t *testing.T) {
	r := New()
	sa, sb := &fakeSink{}, &fakeSink{}
	a := r.Connect(sa)
	require.NoError(t, r.Join(a, "x"))
	r.Disconnect(a)

	b := r.Connect(sb)
	require.NoError(t, r.Join(b, "x"))

	assert.Zero(t, r.RouteToRoom(b, "x", "anyone?"))
	assert.Empty(t, sa.named(EventReceiveMessage))
	assert.Empty(t, sb.named(EventReceiveMessage))
}

func TestRouteToMissingRoom(t *testing.T) {
	r := New()
	a := r.Connect(&fakeSink{})
	assert.Zero(t, r.RouteToRoom(a, "void", "hello"))
}

func TestRouteGlobal(t *testing.T) {
	r := New()
	sa, sb, sc := &fakeSink{}, &fakeSink{}, &fakeSink{}
	a := r.Connect(sa)
	b := r.Connect(sb)
	r.Connect(sc)
	require.NoError(t, r.Join(b, "x"))

	n := r.RouteGlobal(a, "news")

	assert.Equal(t, 2, n)
	assert.NotContains(t, sa.named(EventWelcome), "news")
	assert.Contains(t, sb.named(EventWelcome), "news")
	assert.Contains(t, sc.named(EventWelcome), "news")
}

// Concurrent joins and disconnects must leave both sides of the membership
// mapping consistent.
func TestConcurrentJoinDisconnectConsistency(t *testing.T) {
	r := New()
	rooms := []string{"a", "b", "c", "d"}
	const workers = 32

	var wg sync.WaitGroup
	survivors := make(chan ConnID, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := r.Connect(&fakeSink{})
			for _, room := range rooms {
				_ = r.Join(id, room)
				r.RouteToRoom(id, room, "x")
			}
			if i%2 == 0 {
				r.Disconnect(id)
				return
			}
			survivors <- id
		}(i)
	}
	wg.Wait()
	close(survivors)

	live := map[ConnID]struct{}{}
	for id := range survivors {
		live[id] = struct{}{}
	}
	for _, room := range rooms {
		members := r.Members(room)
		assert.Len(t, members, len(live))
		for _, id := range members {
			_, ok := live[id]
			assert.True(t, ok, "stale member %s in %s", id, room)
			mine, _ := r.RoomsOf(id)
			assert.Contains(t, mine, room)
		}
	}
}
