package rpc

import (
	"testing"

	"hubswap/native/distribution"
)

func emitClaims(stream *EventStream, count int) {
	for i := 0; i < count; i++ {
		stream.Emit(distribution.RewardClaimed{Reward: uint64(i + 1)})
	}
}

func TestEventStreamSequencesEvents(t *testing.T) {
	stream := NewEventStream()
	ch, replay, cancel := stream.Subscribe(0)
	defer cancel()
	if len(replay) != 0 {
		t.Fatalf("expected empty replay, got %d", len(replay))
	}

	emitClaims(stream, 3)
	for want := uint64(1); want <= 3; want++ {
		envelope := <-ch
		if envelope.Seq != want {
			t.Fatalf("expected seq %d, got %d", want, envelope.Seq)
		}
		if envelope.Event.Type != distribution.TypeRewardClaimed {
			t.Fatalf("unexpected event type %s", envelope.Event.Type)
		}
	}
}

func TestEventStreamReplayAfterCursor(t *testing.T) {
	stream := NewEventStream()
	emitClaims(stream, 5)

	_, replay, cancel := stream.Subscribe(3)
	defer cancel()
	if len(replay) != 2 {
		t.Fatalf("expected 2 replayed events, got %d", len(replay))
	}
	if replay[0].Seq != 4 || replay[1].Seq != 5 {
		t.Fatalf("unexpected replay sequence: %d, %d", replay[0].Seq, replay[1].Seq)
	}
}

func TestEventStreamBoundedBacklog(t *testing.T) {
	stream := NewEventStream()
	emitClaims(stream, streamBacklogLimit+10)

	_, replay, cancel := stream.Subscribe(0)
	defer cancel()
	if len(replay) != streamBacklogLimit {
		t.Fatalf("expected backlog capped at %d, got %d", streamBacklogLimit, len(replay))
	}
	if replay[0].Seq != 11 {
		t.Fatalf("expected oldest retained seq 11, got %d", replay[0].Seq)
	}
}

func TestEventStreamSkipsSlowSubscribers(t *testing.T) {
	stream := NewEventStream()
	ch, _, cancel := stream.Subscribe(0)
	defer cancel()

	// Fill the subscriber channel beyond capacity; Emit must not block.
	emitClaims(stream, 100)
	drained := 0
	for {
		select {
		case <-ch:
			drained++
		default:
			if drained == 0 {
				t.Fatal("expected at least one delivered event")
			}
			return
		}
	}
}
