package tensornetwork

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDispatchQueueRunsInFIFOOrder(t *testing.T) {
	q := newDispatchQueue()
	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		q.submit(func() {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
	}
	<-done
	q.Finish()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestDispatchQueueFinishBlocksUntilDrained(t *testing.T) {
	q := newDispatchQueue()
	var ran atomic.Bool
	q.submit(func() {
		time.Sleep(10 * time.Millisecond)
		ran.Store(true)
	})
	q.Finish()
	assert.True(t, ran.Load())
	assert.True(t, q.IsFinished())
}

func TestDispatchQueueDumpDiscardsQueuedWork(t *testing.T) {
	q := newDispatchQueue()
	block := make(chan struct{})
	started := make(chan struct{})
	var ranCount atomic.Int32

	q.submit(func() {
		close(started)
		<-block
		ranCount.Add(1)
	})
	for i := 0; i < 10; i++ {
		q.submit(func() { ranCount.Add(1) })
	}

	<-started
	q.Dump()
	close(block)
	q.Finish()

	assert.Equal(t, int32(1), ranCount.Load(), "only the in-flight closure should have run")
}
