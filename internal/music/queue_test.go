package music

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTracks(titles ...string) []Track {
	tracks := make([]Track, 0, len(titles))
	for _, title := range titles {
		tracks = append(tracks, Track{ID: title, Title: title, URL: "https://example.com/" + title})
	}
	return tracks
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue()

	n := q.Enqueue(makeTracks("a", "b")...)
	assert.Equal(t, 2, n)
	n = q.Enqueue(makeTracks("c")...)
	assert.Equal(t, 3, n)

	listed := q.List(0)
	require.Len(t, listed, 3)
	assert.Equal(t, "a", listed[0].Title)
	assert.Equal(t, "b", listed[1].Title)
	assert.Equal(t, "c", listed[2].Title)

	for _, want := range []string{"a", "b", "c"} {
		track, ok := q.PopNext()
		require.True(t, ok)
		assert.Equal(t, want, track.Title)

		current, ok := q.Current()
		require.True(t, ok)
		assert.Equal(t, want, current.Title)
	}
}

func TestQueuePopNextEmptyLeavesCurrent(t *testing.T) {
	q := NewQueue()
	q.Enqueue(makeTracks("only")...)

	_, ok := q.PopNext()
	require.True(t, ok)

	_, ok = q.PopNext()
	assert.False(t, ok)

	current, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "only", current.Title)
}

func TestQueueShuffleCoversAllPermutations(t *testing.T) {
	seen := make(map[string]bool)

	const trials = 600
	for i := 0; i < trials; i++ {
		q := NewQueue()
		q.Enqueue(makeTracks("current", "a", "b", "c")...)
		_, ok := q.PopNext()
		require.True(t, ok)

		q.Shuffle()

		current, ok := q.Current()
		require.True(t, ok)
		assert.Equal(t, "current", current.Title)

		order := ""
		for _, track := range q.List(0) {
			order += track.Title
		}
		seen[order] = true
	}

	// A Fisher-Yates shuffle must be able to produce every ordering of
	// the three upcoming tracks.
	for _, perm := range []string{"abc", "acb", "bac", "bca", "cab", "cba"} {
		assert.True(t, seen[perm], fmt.Sprintf("permutation %s never produced in %d trials", perm, trials))
	}
}

func TestQueueShuffleSingleTrackNoop(t *testing.T) {
	q := NewQueue()
	q.Enqueue(makeTracks("solo")...)
	q.Shuffle()

	listed := q.List(0)
	require.Len(t, listed, 1)
	assert.Equal(t, "solo", listed[0].Title)
}

func TestQueueListLimitDoesNotMutate(t *testing.T) {
	q := NewQueue()
	q.Enqueue(makeTracks("a", "b", "c", "d")...)

	listed := q.List(2)
	require.Len(t, listed, 2)
	assert.Equal(t, "a", listed[0].Title)
	assert.Equal(t, "b", listed[1].Title)

	// Listing is restartable and non-destructive.
	again := q.List(2)
	assert.Equal(t, listed, again)
	assert.Equal(t, 4, q.Len())
}

func TestQueueClear(t *testing.T) {
	q := NewQueue()
	q.Enqueue(makeTracks("a", "b")...)
	_, ok := q.PopNext()
	require.True(t, ok)

	q.Clear()

	assert.Equal(t, 0, q.Len())
	_, ok = q.Current()
	assert.False(t, ok)
}
