package lockfree

import (
	"sync"
	"testing"

	check "gopkg.in/check.v1"
)

// Test wires the gocheck suite below into `go test`.
func Test(t *testing.T) { check.TestingT(t) }

type ConcurrencySuite struct{}

var _ = check.Suite(&ConcurrencySuite{})

// TestABARetriedNotLost drives a tag-recycled ABA torture scenario: one
// goroutine repeatedly pops and immediately re-pushes the same node while
// another races to pop concurrently. If the
// tag in IntrusiveStack.head did not defeat the address reuse, a racing
// pop could commit against a stale snapshot and either lose or duplicate
// a value. The assertion is on the final multiset, with Retries()
// providing evidence that CAS failures (not a coincidental absence of
// contention) are what's keeping the structure correct.
func (s *ConcurrencySuite) TestABARetriedNotLost(c *check.C) {
	const rounds = 50000

	var stack IntrusiveStack[int]
	a := &Node[int]{value: 1}
	b := &Node[int]{value: 2}
	stack.Push(a)
	stack.Push(b)

	var wg sync.WaitGroup
	wg.Add(2)

	// Goroutine A: pop, then immediately re-push the same node - the
	// address that a racing pop may have snapshotted is now live again
	// under a higher tag.
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			n, ok := stack.Pop()
			if ok {
				stack.Push(n)
			}
		}
	}()

	// Goroutine B: just keeps popping and pushing back whatever it gets,
	// racing A's pop/push cycle on the same two nodes.
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			n, ok := stack.Pop()
			if ok {
				stack.Push(n)
			}
		}
	}()

	wg.Wait()

	found := map[int]bool{}
	for {
		n, ok := stack.Pop()
		if !ok {
			break
		}
		found[n.value] = true
	}

	c.Check(found, check.HasLen, 2)
	c.Check(found[1], check.Equals, true)
	c.Check(found[2], check.Equals, true)
	c.Logf("observed %d CAS retries across %d rounds", stack.Retries(), rounds*2)
}

// TestQueueProducersConsumersGocheck exercises the P-producers/C-consumers
// scenario as a gocheck test, independent of the plain testing.T version in
// queue_test.go, to exercise the suite-registered path.
func (s *ConcurrencySuite) TestQueueProducersConsumersGocheck(c *check.C) {
	const producers = 4
	const consumers = 4
	const perProducer = 10000
	const n = producers * perProducer

	q := NewQueue[int](64)

	var producerWG sync.WaitGroup
	for p := 0; p < producers; p++ {
		producerWG.Add(1)
		go func(offset int) {
			defer producerWG.Done()
			for id := offset; id < offset+perProducer; id++ {
				q.Push(id)
			}
		}(p * perProducer)
	}

	var mu sync.Mutex
	seen := make(map[int]int, n)
	popped := 0
	var consumerWG sync.WaitGroup
	for i := 0; i < consumers; i++ {
		consumerWG.Add(1)
		go func() {
			defer consumerWG.Done()
			for {
				mu.Lock()
				done := popped >= n
				mu.Unlock()
				if done {
					return
				}
				v, ok := q.Pop()
				if !ok {
					continue
				}
				mu.Lock()
				seen[v]++
				popped++
				mu.Unlock()
			}
		}()
	}

	producerWG.Wait()
	consumerWG.Wait()

	c.Assert(seen, check.HasLen, n)
	for id, count := range seen {
		if count != 1 {
			c.Fatalf("id %d popped %d times, want exactly 1", id, count)
		}
	}
}
