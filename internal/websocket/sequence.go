package websocket

import (
	"sync"
	"sync/atomic"
)

// sequencer hands out per-topic message numbers starting at 1.
type sequencer struct {
	seqs sync.Map // map[string]*uint64
}

func (s *sequencer) next(topic string) uint64 {
	v, _ := s.seqs.LoadOrStore(topic, new(uint64))
	ptr := v.(*uint64)
	return atomic.AddUint64(ptr, 1)
}
