package lockfree

import "sync/atomic"

// IntrusiveStack is a lock-free (non-blocking, not wait-free)
// multi-producer/multi-consumer Treiber stack of Node[T]. Push and Pop
// operate on caller-owned, unlinked nodes; the stack itself never
// allocates.
//
// Following next from head always reaches nil in a finite number of
// steps, and every node on the chain belongs to this stack alone - it is
// the caller's job to keep a node off more than one stack at a time.
type IntrusiveStack[T any] struct {
	head    TaggedPointer[T]
	retries atomic.Uint64
}

// Push links node onto the top of the stack. node must be unlinked and
// unique to the caller.
func (s *IntrusiveStack[T]) Push(node *Node[T]) {
	for {
		h := s.head.LoadRaw()
		node.next.StoreRaw(h)
		desired := pack(addrOf(node), unpackTag(IncrementTag(h)))
		if s.head.CompareAndSet(h, desired) {
			return
		}
		s.retries.Add(1)
	}
}

// Pop unlinks and returns the top node, or reports false if the stack is
// empty.
func (s *IntrusiveStack[T]) Pop() (*Node[T], bool) {
	for {
		h := s.head.LoadRaw()
		hAddr := unpackAddr(h)
		if hAddr == 0 {
			return nil, false
		}
		top := nodeAt[T](hAddr)
		n := top.next.LoadRaw()
		desired := pack(unpackAddr(n), unpackTag(IncrementTag(h)))
		if s.head.CompareAndSet(h, desired) {
			return top, true
		}
		s.retries.Add(1)
	}
}

// IsEmpty reports whether the stack currently has no nodes. The result is
// only a snapshot under concurrent modification.
func (s *IntrusiveStack[T]) IsEmpty() bool {
	return unpackAddr(s.head.LoadRaw()) == 0
}

// Retries returns the number of compare-and-swap attempts this stack has
// observed fail and retry, a measure of contention logged by the ABA
// torture test in check_test.go.
func (s *IntrusiveStack[T]) Retries() uint64 {
	return s.retries.Load()
}
