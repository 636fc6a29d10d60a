package server

import (
	"sync"

	"diffraxia-go/internal/progress"
	"diffraxia-go/internal/types"
)

// Hub is a progress observer that keeps the latest run state and queues every
// event for websocket broadcast. Events are dropped when the queue is full so a
// slow client never stalls a batch.
type Hub struct {
	mu       sync.Mutex
	snapshot types.UISnapshot
	messages chan types.UIMessage
	dropped  int
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 256
	}
	return &Hub{
		snapshot: types.UISnapshot{Type: "snapshot"},
		messages: make(chan types.UIMessage, buffer),
	}
}

func (h *Hub) Observe(e progress.Event) {
	msg := types.UIMessage{
		Type:    "progress",
		Stage:   e.Stage,
		Index:   e.Index,
		Total:   e.Total,
		Source:  e.Source,
		Output:  e.Output,
		Elapsed: e.Elapsed.String(),
	}
	if e.Finished {
		msg.Type = "done"
	}
	if e.Err != nil {
		msg.Error = e.Err.Error()
	}

	h.mu.Lock()
	if h.snapshot.Stage != e.Stage || h.snapshot.Finished {
		h.snapshot = types.UISnapshot{Type: "snapshot", Stage: e.Stage}
	}
	switch {
	case e.Finished:
		h.snapshot.Finished = true
	case e.Err != nil:
		h.snapshot.Failed++
	default:
		h.snapshot.Done++
	}
	h.snapshot.Total = e.Total
	last := msg
	h.snapshot.Last = &last
	h.mu.Unlock()

	select {
	case h.messages <- msg:
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
	}
}

// Snapshot returns a copy of the current run state.
func (h *Hub) Snapshot() types.UISnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.snapshot
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	return s
}

func (h *Hub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

var _ progress.Observer = (*Hub)(nil)
