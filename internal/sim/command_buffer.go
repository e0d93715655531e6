package sim

import (
	"sync"

	"fightarena/server/internal/telemetry"
)

const (
	commandBufferOccupancyMetricKey = "arena_command_buffer_occupancy"
	commandBufferOverflowMetricKey  = "arena_command_buffer_overflow_total"
	commandBufferThrottledMetricKey = "arena_command_buffer_throttled_total"
)

// CommandBuffer queues client commands between ticks. Network goroutines
// push and the loop drains once per tick. Each command is stamped with its
// sender's arrival number; the drain keeps every sender's commands in that
// order and interleaves senders in push order.
type CommandBuffer struct {
	mu        sync.Mutex
	ring      []Command
	head      int
	count     int
	perSender int
	staged    map[string]int
	arrivals  map[string]uint64
	metrics   telemetry.Metrics
}

// NewCommandBuffer constructs a buffer holding capacity commands in total
// and at most perSender per sender between drains. perSender <= 0 disables
// the per-sender budget.
func NewCommandBuffer(capacity, perSender int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandBuffer{
		ring:      make([]Command, capacity),
		perSender: perSender,
		staged:    make(map[string]int),
		arrivals:  make(map[string]uint64),
		metrics:   metrics,
	}
}

// Capacity reports the maximum number of commands the buffer can hold.
func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// Push stages cmd and returns it stamped with its arrival number. A non-empty
// reason means the command was refused: CommandRejectQueueLimit when the
// sender spent its budget for this tick, CommandRejectQueueFull when the
// buffer is full. Refused commands do not consume an arrival number.
func (b *CommandBuffer) Push(cmd Command) (Command, string) {
	if b == nil {
		return cmd, CommandRejectQueueFull
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	sender := cmd.ActorID
	if sender != "" && b.perSender > 0 && b.staged[sender] >= b.perSender {
		b.add(commandBufferThrottledMetricKey)
		return cmd, CommandRejectQueueLimit
	}
	if b.count == len(b.ring) {
		b.add(commandBufferOverflowMetricKey)
		return cmd, CommandRejectQueueFull
	}
	if sender != "" {
		b.staged[sender]++
		b.arrivals[sender]++
		cmd.Arrival = b.arrivals[sender]
	}
	b.ring[(b.head+b.count)%len(b.ring)] = cmd
	b.count++
	b.storeOccupancyLocked()
	return cmd, ""
}

// Drain returns every staged command in push order and resets the
// per-sender budgets. Arrival numbers keep counting across drains.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	commands := make([]Command, b.count)
	for i := range commands {
		idx := (b.head + i) % len(b.ring)
		commands[i] = b.ring[idx]
		b.ring[idx] = Command{}
	}
	b.head = 0
	b.count = 0
	clear(b.staged)
	b.storeOccupancyLocked()
	return commands
}

// Forget drops the arrival counter of a sender that left.
func (b *CommandBuffer) Forget(sender string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	delete(b.arrivals, sender)
	b.mu.Unlock()
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *CommandBuffer) add(key string) {
	if b.metrics != nil {
		b.metrics.Add(key, 1)
	}
}

func (b *CommandBuffer) storeOccupancyLocked() {
	if b.metrics == nil {
		return
	}
	b.metrics.Store(commandBufferOccupancyMetricKey, uint64(b.count))
}
