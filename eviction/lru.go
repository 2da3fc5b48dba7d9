// This file implements LRU eviction.

package eviction

import "container/list"

// lru keeps the most recently used key at the front and evicts from the back.
type lru struct {
	order *list.List
	index map[string]*list.Element
}

func newLRU() *lru {
	return &lru{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// OnGet marks a key as most recently used.
func (l *lru) OnGet(k string) {
	if el, ok := l.index[k]; ok {
		l.order.MoveToFront(el)
	}
}

// OnPut tracks a new key at the front; a rewrite counts as a use.
func (l *lru) OnPut(k string) {
	if el, ok := l.index[k]; ok {
		l.order.MoveToFront(el)
		return
	}
	l.index[k] = l.order.PushFront(k)
}

// Evict removes the least recently used key.
func (l *lru) Evict() string {
	back := l.order.Back()
	if back == nil {
		return ""
	}
	k := l.order.Remove(back).(string)
	delete(l.index, k)
	return k
}

func (l *lru) Remove(k string) {
	if el, ok := l.index[k]; ok {
		l.order.Remove(el)
		delete(l.index, k)
	}
}

func (l *lru) Reset() {
	l.order.Init()
	l.index = make(map[string]*list.Element)
}
