package relay

import "github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"

// changeQueue is a fixed-capacity ring buffer of change messages. When full, pushing drops the oldest entry.
type changeQueue struct {
	items []domain.ChangeMessage
	start int
	size  int
}

func newChangeQueue(capacity int) *changeQueue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	return &changeQueue{items: make([]domain.ChangeMessage, capacity)}
}

// push appends msg and reports whether the oldest message was evicted to make room.
func (q *changeQueue) push(msg domain.ChangeMessage) bool {
	if q.size < len(q.items) {
		q.items[(q.start+q.size)%len(q.items)] = msg
		q.size++
		return false
	}

	q.items[q.start] = msg
	q.start = (q.start + 1) % len(q.items)
	return true
}

// recent returns up to limit of the newest messages, oldest first and most recent last.
func (q *changeQueue) recent(limit int) []domain.ChangeMessage {
	if limit <= 0 {
		return []domain.ChangeMessage{}
	}
	if limit > q.size {
		limit = q.size
	}

	out := make([]domain.ChangeMessage, 0, limit)
	for i := q.size - limit; i < q.size; i++ {
		out = append(out, q.items[(q.start+i)%len(q.items)])
	}
	return out
}

func (q *changeQueue) len() int { return q.size }
