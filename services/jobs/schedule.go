package jobs

import (
	"context"
	"time"

	"github.com/trezcool/escola/core"
)

const (
	ClassReminders = "class-reminders"
	ExpireInvites  = "expire-invites"
)

type (
	ReminderSender interface {
		SendDue(ctx context.Context, window time.Duration) (int, error)
	}

	InviteExpirer interface {
		ExpireStale(ctx context.Context) (int64, error)
	}
)

// Schedule registers the application's periodic jobs on r.
func Schedule(r *Runner, conf core.JobsConfig, reminders ReminderSender, invites InviteExpirer, logger core.Logger) {
	r.Every(conf.ReminderInterval, ClassReminders, func(ctx context.Context) error {
		n, err := reminders.SendDue(ctx, conf.ReminderWindow)
		if n > 0 {
			logger.Info("class reminders sent", map[string]interface{}{"aulas": n})
		}
		return err
	})

	r.Every(conf.InviteSweepInterval, ExpireInvites, func(ctx context.Context) error {
		n, err := invites.ExpireStale(ctx)
		if n > 0 {
			logger.Info("invites expired", map[string]interface{}{"count": n})
		}
		return err
	})
}
