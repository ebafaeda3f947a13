package server

import "sync"

// Event はSSEで配信するイベント
type Event struct {
	Type string
	Data any
}

// hub はイベントを購読者へ配る
// 遅い購読者にはイベントを落として送る
type hub struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	closed      bool
}

func newHub() *hub {
	return &hub{subscribers: make(map[int]chan Event)}
}

// subscribe はイベントを購読する。hubが閉じられるとチャンネルも閉じる
func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 16)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subscribers[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subscribers[id]; ok {
			close(c)
			delete(h.subscribers, id)
		}
	}
}

func (h *hub) publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}
