// This file implements FIFO eviction.

package eviction

import "container/list"

// fifo keeps keys in insertion order. The front of order is the oldest key;
// index gives O(1) removal of arbitrary keys on delete or invalidation.
type fifo struct {
	order *list.List
	index map[string]*list.Element
}

func newFIFO() *fifo {
	return &fifo{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// OnGet is ignored, FIFO only cares about insertion.
func (f *fifo) OnGet(string) {}

// OnPut appends a new key. Overwriting a tracked key keeps its original slot.
func (f *fifo) OnPut(k string) {
	if _, ok := f.index[k]; ok {
		return
	}
	f.index[k] = f.order.PushBack(k)
}

// Evict pops the oldest key.
func (f *fifo) Evict() string {
	front := f.order.Front()
	if front == nil {
		return ""
	}
	k := f.order.Remove(front).(string)
	delete(f.index, k)
	return k
}

func (f *fifo) Remove(k string) {
	if el, ok := f.index[k]; ok {
		f.order.Remove(el)
		delete(f.index, k)
	}
}

func (f *fifo) Reset() {
	f.order.Init()
	f.index = make(map[string]*list.Element)
}
