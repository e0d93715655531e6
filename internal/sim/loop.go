package sim

import (
	"context"
	"sync"
	"time"

	"fightarena/server/internal/replication"
	"fightarena/server/internal/telemetry"
	"fightarena/server/logging"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
)

const (
	tickDurationMetricKey = "arena_tick_duration_us"
	tickClampedMetricKey  = "arena_tick_clamped_total"
	ticksMetricKey        = "arena_ticks_total"
)

// Engine is the simulation the loop drives. Apply and Step run on the loop's
// goroutine only.
type Engine interface {
	Apply([]Command) error
	Step(dt time.Duration)
	Drain() replication.Batch
	Snapshot() replication.Batch
}

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int `json:"tickRate" yaml:"tick_rate" toml:"tick_rate" jsonschema:"minimum=1"`
	CatchupMaxTicks int `json:"catchupMaxTicks" yaml:"catchup_max_ticks" toml:"catchup_max_ticks"`
	CommandCapacity int `json:"commandCapacity" yaml:"command_capacity" toml:"command_capacity" jsonschema:"minimum=1"`
	PerActorLimit   int `json:"perActorLimit" yaml:"per_actor_limit" toml:"per_actor_limit"`
	WarningStep     int `json:"warningStep" yaml:"warning_step" toml:"warning_step"`
}

// DefaultLoopConfig returns a 30 Hz loop.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{TickRate: 30, CatchupMaxTicks: 3, CommandCapacity: 1024, PerActorLimit: 32, WarningStep: 256}
}

// LoopTickContext describes the tick about to run.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta time.Duration
}

// LoopStepResult reports what a tick consumed and produced.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        time.Duration
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	Commands     []Command
	Batch        replication.Batch
	ApplyErr     error
}

// LoopHooks lets the owner observe the loop without reaching into it.
type LoopHooks struct {
	NextTick       func() uint64
	Prepare        func(LoopTickContext)
	AfterStep      func(LoopStepResult)
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// Loop coordinates command ingestion and the fixed-timestep simulation runner.
type Loop struct {
	engine  Engine
	buffer  *CommandBuffer
	hooks   LoopHooks
	config  LoopConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics
	clock   logging.Clock

	queueMu    sync.Mutex
	dropCounts map[string]uint64
	tick       uint64
}

// NewLoop wraps engine with a ring-buffer queue and a tick loop.
func NewLoop(engine Engine, cfg LoopConfig, deps Deps, hooks LoopHooks) *Loop {
	if engine == nil {
		return nil
	}
	clock := deps.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	return &Loop{
		engine:     engine,
		buffer:     NewCommandBuffer(cfg.CommandCapacity, cfg.PerActorLimit, deps.Metrics),
		hooks:      hooks,
		config:     cfg,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		clock:      clock,
		dropCounts: make(map[string]uint64),
	}
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages a command. The buffer enforces the per-actor budget and
// capacity; rejected commands are counted per actor and reported.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	staged, reason := l.buffer.Push(cmd)
	if reason != "" {
		l.queueMu.Lock()
		dropCount := l.incrementDropLocked(cmd.ActorID)
		l.queueMu.Unlock()
		l.reportDrop(reason, staged, dropCount)
		return false, reason
	}
	if step := l.config.WarningStep; step > 0 {
		if length := l.buffer.Len(); length >= step && length%step == 0 {
			l.warnQueue(length)
		}
	}
	return true, ""
}

// Forget releases the bookkeeping kept for an actor that left.
func (l *Loop) Forget(actorID string) {
	if l == nil {
		return
	}
	l.buffer.Forget(actorID)
	l.queueMu.Lock()
	delete(l.dropCounts, actorID)
	l.queueMu.Unlock()
}

// Advance executes a single simulation step using the staged commands.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.drainCommands()
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(ctx)
	}
	err := l.engine.Apply(commands)
	l.engine.Step(ctx.Delta)
	return LoopStepResult{
		Tick:     ctx.Tick,
		Now:      ctx.Now,
		Delta:    ctx.Delta,
		Commands: commands,
		Batch:    l.engine.Drain(),
		ApplyErr: err,
	}
}

// Snapshot returns the full state for a late joiner.
func (l *Loop) Snapshot() replication.Batch {
	if l == nil {
		return replication.Batch{}
	}
	return l.engine.Snapshot()
}

// Run drives the fixed-timestep loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil {
		return nil
	}
	tickRate := l.config.TickRate
	if tickRate <= 0 {
		tickRate = 30
	}
	budget := time.Second / time.Duration(tickRate)
	maxDelta := budget
	if l.config.CatchupMaxTicks > 1 {
		maxDelta = budget * time.Duration(l.config.CatchupMaxTicks)
	}
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	last := l.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := l.clock.Now()
			dt := now.Sub(last)
			clamped := false
			if dt <= 0 {
				dt = budget
			} else if dt > maxDelta {
				dt = maxDelta
				clamped = true
			}
			last = now

			start := l.clock.Now()
			result := l.Advance(LoopTickContext{Tick: l.nextTick(), Now: now, Delta: dt})
			result.Duration = l.clock.Now().Sub(start)
			result.Budget = budget
			result.ClampedDelta = clamped
			l.record(result)

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) nextTick() uint64 {
	if l.hooks.NextTick != nil {
		return l.hooks.NextTick()
	}
	l.tick++
	return l.tick
}

func (l *Loop) record(result LoopStepResult) {
	if l.metrics == nil {
		return
	}
	l.metrics.Add(ticksMetricKey, 1)
	l.metrics.Store(tickDurationMetricKey, uint64(result.Duration.Microseconds()))
	if result.ClampedDelta {
		l.metrics.Add(tickClampedMetricKey, 1)
	}
	if result.Duration > result.Budget && l.logger != nil {
		l.logger.Printf("[tick] tick=%d took %s, budget %s", result.Tick, result.Duration, result.Budget)
	}
}

func (l *Loop) drainCommands() []Command {
	return l.buffer.Drain()
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if count > 0 && count&(count-1) == 0 && l.logger != nil {
		l.logger.Printf(
			"[backpressure] dropping command actor=%s type=%s count=%d limit=%d reason=%s",
			cmd.ActorID,
			cmd.Type,
			count,
			l.config.PerActorLimit,
			reason,
		)
	}
}
