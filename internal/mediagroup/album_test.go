package mediagroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ReleasesAlbumInOrder(t *testing.T) {
	released := make(chan Album, 1)
	c := New(Options{Quiet: 20 * time.Millisecond, OnAlbum: func(a Album) { released <- a }})

	c.Add(Photo{ChatID: 7, GroupID: "g", FileID: "a"})
	c.Add(Photo{ChatID: 7, GroupID: "g", FileID: "b", Caption: "add the lamp"})
	c.Add(Photo{ChatID: 7, GroupID: "g", FileID: "c", Caption: "ignored"})
	assert.Equal(t, 1, c.Pending())

	select {
	case a := <-released:
		assert.Equal(t, int64(7), a.ChatID)
		assert.Equal(t, []string{"a", "b", "c"}, a.FileIDs)
		assert.Equal(t, "add the lamp", a.Caption)
	case <-time.After(2 * time.Second):
		t.Fatal("album was not released")
	}
	assert.Equal(t, 0, c.Pending())
}

func TestCollector_SeparatesChatsAndGroups(t *testing.T) {
	released := make(chan Album, 4)
	c := New(Options{Quiet: 10 * time.Millisecond, OnAlbum: func(a Album) { released <- a }})

	c.Add(Photo{ChatID: 1, GroupID: "g", FileID: "a"})
	c.Add(Photo{ChatID: 2, GroupID: "g", FileID: "b"})
	c.Add(Photo{ChatID: 1, GroupID: "h", FileID: "c"})
	assert.Equal(t, 3, c.Pending())

	got := map[string][]string{}
	for i := 0; i < 3; i++ {
		select {
		case a := <-released:
			got[albumKey(a.ChatID, a.GroupID)] = a.FileIDs
		case <-time.After(2 * time.Second):
			t.Fatal("album was not released")
		}
	}
	assert.Equal(t, []string{"a"}, got["1:g"])
	assert.Equal(t, []string{"b"}, got["2:g"])
	assert.Equal(t, []string{"c"}, got["1:h"])
}

func TestCollector_IgnoresIncompletePhotos(t *testing.T) {
	c := New(Options{})
	c.Add(Photo{ChatID: 1, FileID: "a"})
	c.Add(Photo{ChatID: 1, GroupID: "g"})
	assert.Equal(t, 0, c.Pending())
}

func TestCollector_StopDropsPending(t *testing.T) {
	released := make(chan Album, 1)
	c := New(Options{Quiet: 20 * time.Millisecond, OnAlbum: func(a Album) { released <- a }})

	c.Add(Photo{ChatID: 1, GroupID: "g", FileID: "a"})
	c.Stop()
	c.Add(Photo{ChatID: 1, GroupID: "g", FileID: "b"})
	require.Equal(t, 0, c.Pending())

	select {
	case <-released:
		t.Fatal("album released after stop")
	case <-time.After(80 * time.Millisecond):
	}
}
