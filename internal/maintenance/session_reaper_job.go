package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/thevault/register/pkg/logger"
)

const defaultSessionIdleTTL = 12 * time.Hour

type sessionReaper interface {
	ReapIdle(ctx context.Context, maxIdle time.Duration) ([]string, error)
}

type SessionReaperJobParams struct {
	Logger   *logger.Logger
	Sessions sessionReaper
	IdleTTL  time.Duration
}

func NewSessionReaperJob(params SessionReaperJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	ttl := params.IdleTTL
	if ttl <= 0 {
		ttl = defaultSessionIdleTTL
	}
	return &sessionReaperJob{logg: params.Logger, sessions: params.Sessions, ttl: ttl}, nil
}

type sessionReaperJob struct {
	logg     *logger.Logger
	sessions sessionReaper
	ttl      time.Duration
}

func (j *sessionReaperJob) Name() string { return "register-session-reaper" }

func (j *sessionReaperJob) Run(ctx context.Context) error {
	reaped, err := j.sessions.ReapIdle(ctx, j.ttl)
	if err != nil {
		return fmt.Errorf("reap idle sessions: %w", err)
	}
	if len(reaped) > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"idle_ttl":       j.ttl.String(),
			"sessions_freed": len(reaped),
		}), "idle register sessions reaped")
	}
	return nil
}
