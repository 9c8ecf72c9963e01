package view

import "sync"

// Frame is one emission of a live view
type Frame struct {
	Epoch uint64 `json:"epoch"`
	Rows  []Row  `json:"rows"`
}

// Live combines the latest item list with the latest sort. Every input
// change starts a new epoch and produces exactly one frame; a frame computed
// for an epoch that has since been superseded is dropped, and an unread
// frame is replaced by its successor.
type Live struct {
	mu      sync.Mutex
	items   []Item
	sort    Sort
	epoch   uint64
	current Frame
	frames  chan Frame
}

func NewLive(s Sort) *Live {
	return &Live{
		sort:   s,
		frames: make(chan Frame, 1),
	}
}

// Frames delivers fresh frames. At most one frame is buffered.
func (l *Live) Frames() <-chan Frame { return l.frames }

// Current returns the last published frame
func (l *Live) Current() Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Live) Sort() Sort {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sort
}

func (l *Live) SetRecords(items []Item) {
	l.update(func() { l.items = items })
}

func (l *Live) SetSort(s Sort) {
	l.update(func() { l.sort = s })
}

func (l *Live) update(apply func()) {
	l.mu.Lock()
	apply()
	l.epoch++
	epoch, items, s := l.epoch, l.items, l.sort
	l.mu.Unlock()

	// Arranging reads totals, which may wait on the tree; do it unlocked
	l.publish(Frame{Epoch: epoch, Rows: Arrange(items, s)})
}

func (l *Live) publish(f Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if f.Epoch != l.epoch {
		return
	}
	l.current = f
	select {
	case <-l.frames:
	default:
	}
	l.frames <- f
}
