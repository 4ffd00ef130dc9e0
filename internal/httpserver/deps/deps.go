package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/hasu/internal/logger"
	"github.com/MrSnakeDoc/hasu/internal/scheduler"
)

// StatusProvider exposes the scheduler state to handlers.
type StatusProvider interface {
	Status() scheduler.Status
}

type Deps struct {
	Logger      logger.Logger
	StartTime   time.Time
	Version     string
	Commit      string
	BuildDate   string
	GoVersion   string
	TimeNow     func() time.Time // for testing, defaults to time.Now
	Scheduler   StatusProvider   // last pass results and render
	RedisClient *redis.Client    // nil when the render publisher is disabled
}
