package playback

import (
	"log/slog"
	"sync"
)

// job is one segment waiting for synthesis.
type job struct {
	StoryID string
	Index   int
	Text    string
	Voice   string
}

// Queue orders pending render jobs. Segments normally render in index
// order; the one the listener is about to hear can jump the line.
type Queue struct {
	mu    sync.RWMutex
	queue []job
}

// NewQueue creates an empty render queue.
func NewQueue() *Queue {
	return &Queue{queue: make([]job, 0)}
}

// Enqueue adds a job. Duplicate (story, index) pairs are ignored.
func (q *Queue) Enqueue(j job, priority bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, existing := range q.queue {
		if existing.StoryID == j.StoryID && existing.Index == j.Index {
			return
		}
	}
	if priority {
		q.queue = append([]job{j}, q.queue...)
	} else {
		q.queue = append(q.queue, j)
	}
	slog.Debug("RenderQueue: Enqueued segment", "story_id", j.StoryID, "index", j.Index, "priority", priority, "queue_len", len(q.queue))
}

// Pop retrieves and removes the next job.
func (q *Queue) Pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return job{}, false
	}
	j := q.queue[0]
	q.queue = q.queue[1:]
	return j, true
}

// Count returns the number of pending jobs.
func (q *Queue) Count() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.queue)
}

// Clear drops every pending job.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = make([]job, 0)
}

// Promote moves the job for the given segment to the front.
// Returns true if it was pending.
func (q *Queue) Promote(storyID string, index int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, j := range q.queue {
		if j.StoryID == storyID && j.Index == index {
			if i == 0 {
				return true
			}
			q.queue = append(q.queue[:i], q.queue[i+1:]...)
			q.queue = append([]job{j}, q.queue...)
			return true
		}
	}
	return false
}
