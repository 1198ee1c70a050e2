package music

import (
	"math/rand"
	"sync"
)

// Queue is the ordered set of upcoming tracks for one guild, plus the
// "current" slot holding the track that was last popped for playback.
// The current track is not part of the upcoming sequence.
type Queue struct {
	mu      sync.Mutex
	tracks  []Track
	current *Track
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends tracks in order and returns the new queue length.
func (q *Queue) Enqueue(tracks ...Track) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = append(q.tracks, tracks...)
	return len(q.tracks)
}

// PopNext removes the head of the queue and makes it the current track.
// On an empty queue it reports false and leaves current untouched.
func (q *Queue) PopNext() (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return Track{}, false
	}

	track := q.tracks[0]
	q.tracks = q.tracks[1:]
	q.current = &track
	return track, true
}

// Current returns the track in the current slot, if any.
func (q *Queue) Current() (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == nil {
		return Track{}, false
	}
	return *q.current, true
}

// ClearCurrent empties the current slot without touching the queue.
func (q *Queue) ClearCurrent() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = nil
}

// Shuffle uniformly permutes the upcoming tracks. The current track is
// not part of the sequence and is never moved. No-op for <=1 track.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) <= 1 {
		return
	}
	rand.Shuffle(len(q.tracks), func(i, j int) {
		q.tracks[i], q.tracks[j] = q.tracks[j], q.tracks[i]
	})
}

// List returns a snapshot of up to limit upcoming tracks in order.
// limit <= 0 means no limit. The queue is not mutated.
func (q *Queue) List(limit int) []Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.tracks)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Track, n)
	copy(out, q.tracks[:n])
	return out
}

// Clear drops all upcoming tracks and the current slot.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = nil
	q.current = nil
}

// Len reports the number of upcoming tracks, excluding current.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}
