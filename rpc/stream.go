package rpc

import (
	"sync"

	"hubswap/core/events"
	"hubswap/core/types"
)

const streamBacklogLimit = 256

// EventEnvelope wraps an emitted event with a monotonically increasing
// sequence number so stream consumers can resume after a disconnect.
type EventEnvelope struct {
	Seq   uint64       `json:"seq"`
	Event *types.Event `json:"event"`
}

type eventCarrier interface {
	Event() *types.Event
}

// EventStream retains a bounded backlog of engine events and fans them out to
// websocket subscribers. It implements events.Emitter.
type EventStream struct {
	mu          sync.Mutex
	nextSeq     uint64
	backlog     []EventEnvelope
	subscribers map[chan EventEnvelope]struct{}
}

func NewEventStream() *EventStream {
	return &EventStream{
		subscribers: make(map[chan EventEnvelope]struct{}),
	}
}

var _ events.Emitter = (*EventStream)(nil)

// Emit records the event and delivers it to all current subscribers. Slow
// subscribers are skipped rather than blocking the engine.
func (s *EventStream) Emit(evt events.Event) {
	carrier, ok := evt.(eventCarrier)
	if !ok {
		return
	}
	payload := carrier.Event()
	if payload == nil {
		return
	}
	s.mu.Lock()
	s.nextSeq++
	envelope := EventEnvelope{Seq: s.nextSeq, Event: payload}
	s.backlog = append(s.backlog, envelope)
	if len(s.backlog) > streamBacklogLimit {
		s.backlog = s.backlog[len(s.backlog)-streamBacklogLimit:]
	}
	for ch := range s.subscribers {
		select {
		case ch <- envelope:
		default:
		}
	}
	s.mu.Unlock()
}

// bufferedEmitter queues engine events for the duration of one operation so
// they can be released only after the operation's state changes are
// committed. A rolled-back operation must never reach stream subscribers.
type bufferedEmitter struct {
	pending []events.Event
}

func (b *bufferedEmitter) Emit(evt events.Event) {
	b.pending = append(b.pending, evt)
}

func (b *bufferedEmitter) flush(target events.Emitter) {
	for _, evt := range b.pending {
		target.Emit(evt)
	}
	b.pending = nil
}

// Subscribe registers a new consumer. Events with sequence numbers greater
// than afterSeq that are still in the backlog are returned for replay. The
// returned cancel function must be called when the consumer goes away.
func (s *EventStream) Subscribe(afterSeq uint64) (<-chan EventEnvelope, []EventEnvelope, func()) {
	ch := make(chan EventEnvelope, 64)
	s.mu.Lock()
	var replay []EventEnvelope
	for _, envelope := range s.backlog {
		if envelope.Seq > afterSeq {
			replay = append(replay, envelope)
		}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, replay, cancel
}
