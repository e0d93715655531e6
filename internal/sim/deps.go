package sim

import (
	"fightarena/server/internal/telemetry"
	"fightarena/server/logging"
)

// Deps carries shared infrastructure dependencies required by the tick loop.
type Deps struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Clock   logging.Clock
}
