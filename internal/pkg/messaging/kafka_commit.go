package messaging

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

type offsetCommitter interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// kafkaCommitter lets workers settle messages in any order while the group
// offset only moves forward over a gap-free prefix of each partition. A
// crash can then redeliver settled messages but never skip unsettled ones.
type kafkaCommitter struct {
	reader offsetCommitter

	mu         sync.Mutex
	partitions map[int]*partitionOffsets
}

type partitionOffsets struct {
	pending []int64 // fetched and not yet committed, in fetch order
	settled map[int64]kafka.Message
}

func newKafkaCommitter(reader offsetCommitter) *kafkaCommitter {
	return &kafkaCommitter{reader: reader, partitions: map[int]*partitionOffsets{}}
}

// track registers m before it is handed to a worker.
func (c *kafkaCommitter) track(m kafka.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.partitions[m.Partition]
	if !ok {
		p = &partitionOffsets{settled: map[int64]kafka.Message{}}
		c.partitions[m.Partition] = p
	}
	p.pending = append(p.pending, m.Offset)
}

// commit marks m settled and commits the highest offset of its partition
// whose predecessors are all settled. Commits are serialised so the group
// offset never moves backwards.
func (c *kafkaCommitter) commit(ctx context.Context, m kafka.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.partitions[m.Partition]
	if !ok {
		return c.reader.CommitMessages(ctx, m)
	}
	p.settled[m.Offset] = m

	var (
		last  kafka.Message
		ready bool
	)
	for len(p.pending) > 0 {
		sm, ok := p.settled[p.pending[0]]
		if !ok {
			break
		}
		delete(p.settled, p.pending[0])
		p.pending = p.pending[1:]
		last, ready = sm, true
	}
	if !ready {
		return nil
	}
	return c.reader.CommitMessages(ctx, last)
}
