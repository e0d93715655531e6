package sim

import (
	"testing"

	"fightarena/server/internal/telemetry"
)

func fire(actor string) Command {
	return Command{ActorID: actor, Type: CommandFire, Fire: &FireCommand{}}
}

func TestCommandBufferKeepsPerSenderOrderAcrossWrap(t *testing.T) {
	buffer := NewCommandBuffer(3, 0, nil)
	for _, actor := range []string{"player-1", "player-2", "player-1"} {
		if _, reason := buffer.Push(fire(actor)); reason != "" {
			t.Fatalf("expected push to succeed for %s, got %q", actor, reason)
		}
	}
	if _, reason := buffer.Push(fire("player-3")); reason != CommandRejectQueueFull {
		t.Fatalf("expected %q when buffer full, got %q", CommandRejectQueueFull, reason)
	}
	drained := buffer.Drain()
	if len(drained) != 3 || drained[0].ActorID != "player-1" || drained[1].ActorID != "player-2" {
		t.Fatalf("unexpected drain order: %+v", drained)
	}

	buffer.Push(fire("player-2"))
	buffer.Push(Command{ActorID: "player-2", Type: CommandMove, Move: &MoveCommand{}})
	wrapped := buffer.Drain()
	if len(wrapped) != 2 || wrapped[0].Type != CommandFire || wrapped[1].Type != CommandMove {
		t.Fatalf("unexpected order after wraparound: %+v", wrapped)
	}
	if buffer.Drain() != nil {
		t.Fatalf("expected an empty buffer to drain nil")
	}
}

func TestCommandBufferStampsArrivalPerSender(t *testing.T) {
	buffer := NewCommandBuffer(8, 0, nil)
	buffer.Push(fire("player-1"))
	buffer.Push(fire("player-2"))
	staged, _ := buffer.Push(fire("player-1"))
	if staged.Arrival != 2 {
		t.Fatalf("expected push to return arrival 2, got %d", staged.Arrival)
	}
	buffer.Push(Command{Type: CommandHeartbeat})

	drained := buffer.Drain()
	want := []uint64{1, 1, 2, 0}
	for i, cmd := range drained {
		if cmd.Arrival != want[i] {
			t.Fatalf("expected arrival %d at %d, got %d", want[i], i, cmd.Arrival)
		}
	}

	t.Run("continues across drains", func(t *testing.T) {
		next, _ := buffer.Push(fire("player-1"))
		if next.Arrival != 3 {
			t.Fatalf("expected arrival 3 after drain, got %d", next.Arrival)
		}
	})

	t.Run("restarts after forget", func(t *testing.T) {
		buffer.Drain()
		buffer.Forget("player-1")
		next, _ := buffer.Push(fire("player-1"))
		if next.Arrival != 1 {
			t.Fatalf("expected arrival 1 after forget, got %d", next.Arrival)
		}
	})

	t.Run("rejected commands are not numbered", func(t *testing.T) {
		limited := NewCommandBuffer(8, 1, nil)
		limited.Push(fire("player-1"))
		rejected, reason := limited.Push(fire("player-1"))
		if reason != CommandRejectQueueLimit || rejected.Arrival != 0 {
			t.Fatalf("expected unnumbered queue_limit reject, got %q arrival=%d", reason, rejected.Arrival)
		}
		limited.Drain()
		next, _ := limited.Push(fire("player-1"))
		if next.Arrival != 2 {
			t.Fatalf("expected arrival 2 after reject, got %d", next.Arrival)
		}
	})
}

func TestCommandBufferPerSenderBudget(t *testing.T) {
	metrics := telemetry.NewCounters()
	buffer := NewCommandBuffer(8, 2, metrics)

	buffer.Push(fire("player-1"))
	buffer.Push(fire("player-1"))
	if _, reason := buffer.Push(fire("player-1")); reason != CommandRejectQueueLimit {
		t.Fatalf("expected %q, got %q", CommandRejectQueueLimit, reason)
	}
	if _, reason := buffer.Push(fire("player-2")); reason != "" {
		t.Fatalf("expected another sender to keep its budget, got %q", reason)
	}
	if _, reason := buffer.Push(Command{Type: CommandHeartbeat}); reason != "" {
		t.Fatalf("expected anonymous commands to skip the budget, got %q", reason)
	}
	if got := metrics.Get(commandBufferThrottledMetricKey); got != 1 {
		t.Fatalf("expected one throttled command, got %d", got)
	}

	buffer.Drain()
	if _, reason := buffer.Push(fire("player-1")); reason != "" {
		t.Fatalf("expected budget to reset after drain, got %q", reason)
	}
}

func TestCommandBufferReportsOccupancyAndOverflow(t *testing.T) {
	metrics := telemetry.NewCounters()
	buffer := NewCommandBuffer(2, 0, metrics)

	buffer.Push(fire("player-1"))
	buffer.Push(fire("player-1"))
	buffer.Push(fire("player-1"))
	if got := metrics.Get(commandBufferOccupancyMetricKey); got != 2 {
		t.Fatalf("expected occupancy 2, got %d", got)
	}
	if got := metrics.Get(commandBufferOverflowMetricKey); got != 1 {
		t.Fatalf("expected one overflow, got %d", got)
	}

	buffer.Drain()
	if got := metrics.Get(commandBufferOccupancyMetricKey); got != 0 {
		t.Fatalf("expected occupancy to reset after drain, got %d", got)
	}
}

func TestCommandBufferNilSafe(t *testing.T) {
	var buffer *CommandBuffer
	if _, reason := buffer.Push(fire("player-1")); reason != CommandRejectQueueFull {
		t.Fatalf("expected nil buffer to reject, got %q", reason)
	}
	buffer.Forget("player-1")
	if buffer.Len() != 0 || buffer.Capacity() != 0 || buffer.Drain() != nil {
		t.Fatalf("expected nil buffer to be inert")
	}
	if NewCommandBuffer(0, 0, nil).Capacity() != 1 {
		t.Fatalf("expected capacity to be clamped to 1")
	}
}
