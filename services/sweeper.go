package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vastrakart/vastrakart-backend-go/metrics"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"github.com/vastrakart/vastrakart-backend-go/storage"
)

type SweepReport struct {
	TotalCleaned   int      `json:"totalCleaned"`
	UsersProcessed int      `json:"usersProcessed"`
	Errors         []string `json:"errors,omitempty"`
}

// Sweeper permanently discards pending drafts whose TTL has passed. They were
// never paid, so there is nothing to soft-delete. Running it twice in a row
// is a no-op the second time.
type Sweeper struct {
	users storage.UserStore
	now   func() time.Time
	log   *logrus.Entry
}

func NewSweeper(users storage.UserStore) *Sweeper {
	return &Sweeper{
		users: users,
		now:   time.Now,
		log:   logrus.WithField("component", "expiration_sweeper"),
	}
}

// Sweep filters expired pending drafts out of every user's order list,
// persisting only users that actually changed. Per-user failures are
// accumulated so one bad document cannot abort the pass.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepReport, error) {
	ids, err := s.users.UserIDs(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	report := &SweepReport{}
	for _, id := range ids {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("user %s: %v", id.Hex(), err))
			continue
		}
		report.UsersProcessed++

		kept := make([]models.Order, 0, len(user.Orders))
		for _, o := range user.Orders {
			if o.Expired(now) {
				continue
			}
			kept = append(kept, o)
		}
		removed := len(user.Orders) - len(kept)
		if removed == 0 {
			continue
		}

		if err := s.users.ReplaceOrders(ctx, id, kept); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("user %s: %v", id.Hex(), err))
			continue
		}
		report.TotalCleaned += removed
		metrics.PendingOrdersExpired.Add(float64(removed))
		s.log.WithFields(logrus.Fields{
			"user":    id.Hex(),
			"removed": removed,
		}).Info("expired pending orders removed")
	}
	return report, nil
}
