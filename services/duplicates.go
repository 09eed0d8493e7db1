package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vastrakart/vastrakart-backend-go/metrics"
	"github.com/vastrakart/vastrakart-backend-go/models"
	"github.com/vastrakart/vastrakart-backend-go/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DuplicateRecord is one removed (or removable) order, kept in full for
// audit.
type DuplicateRecord struct {
	OrderID   string    `json:"orderId"`
	PaymentID string    `json:"paymentId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Amount    float64   `json:"amount"`
}

type UserDuplicateReport struct {
	UserID        string            `json:"userId"`
	Email         string            `json:"email"`
	OriginalCount int               `json:"originalCount"`
	FinalCount    int               `json:"finalCount"`
	RemovedCount  int               `json:"removedCount"`
	Duplicates    []DuplicateRecord `json:"duplicates"`
}

type DuplicateReport struct {
	UsersProcessed int                   `json:"usersProcessed"`
	TotalRemoved   int                   `json:"totalRemoved"`
	Users          []UserDuplicateReport `json:"users"`
	Errors         []string              `json:"errors,omitempty"`
}

// Reconciler finds and removes orders sharing an orderId or paymentId with
// an earlier order on the same user. The first-seen (earliest-created) order
// is authoritative regardless of which record is more complete.
type Reconciler struct {
	users storage.UserStore
	log   *logrus.Entry
}

func NewReconciler(users storage.UserStore) *Reconciler {
	return &Reconciler{
		users: users,
		log:   logrus.WithField("component", "duplicate_reconciler"),
	}
}

// Scan reports duplicates without touching anything. A nil userID scans
// every user.
func (r *Reconciler) Scan(ctx context.Context, userID *primitive.ObjectID) (*DuplicateReport, error) {
	return r.run(ctx, userID, false)
}

// Clean removes duplicates, replacing each affected user's order list in one
// write. Per-user failures are accumulated, not fatal.
func (r *Reconciler) Clean(ctx context.Context, userID *primitive.ObjectID) (*DuplicateReport, error) {
	return r.run(ctx, userID, true)
}

func (r *Reconciler) run(ctx context.Context, userID *primitive.ObjectID, mutate bool) (*DuplicateReport, error) {
	var ids []primitive.ObjectID
	if userID != nil {
		ids = []primitive.ObjectID{*userID}
	} else {
		var err error
		ids, err = r.users.UserIDs(ctx)
		if err != nil {
			return nil, err
		}
	}

	report := &DuplicateReport{}
	for _, id := range ids {
		user, err := r.users.GetByID(ctx, id)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("user %s: %v", id.Hex(), err))
			continue
		}
		report.UsersProcessed++

		retained, duplicates := splitDuplicates(user.Orders)
		if len(duplicates) == 0 {
			continue
		}

		userReport := UserDuplicateReport{
			UserID:        id.Hex(),
			Email:         user.Email,
			OriginalCount: len(user.Orders),
			FinalCount:    len(retained),
			RemovedCount:  len(duplicates),
		}
		for _, dup := range duplicates {
			userReport.Duplicates = append(userReport.Duplicates, DuplicateRecord{
				OrderID:   dup.OrderID,
				PaymentID: dup.PaymentID,
				Timestamp: dup.CreatedAt,
				Amount:    dup.Amount,
			})
		}

		if mutate {
			if err := r.users.ReplaceOrders(ctx, id, retained); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("user %s: %v", id.Hex(), err))
				continue
			}
			metrics.DuplicateOrdersRemoved.Add(float64(len(duplicates)))
			r.log.WithFields(logrus.Fields{
				"user":    id.Hex(),
				"removed": len(duplicates),
			}).Info("duplicate orders removed")
		}

		report.Users = append(report.Users, userReport)
		report.TotalRemoved += len(duplicates)
	}
	return report, nil
}

// splitDuplicates walks the orders earliest-first, keeping the first
// occurrence of each orderId and paymentId. An order is a duplicate when
// either identifier was already seen; empty identifiers never collide.
func splitDuplicates(orders []models.Order) (retained, duplicates []models.Order) {
	sorted := append([]models.Order(nil), orders...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	seenOrder := map[string]bool{}
	seenPayment := map[string]bool{}
	for _, o := range sorted {
		dup := (o.OrderID != "" && seenOrder[o.OrderID]) ||
			(o.PaymentID != "" && seenPayment[o.PaymentID])
		if dup {
			duplicates = append(duplicates, o)
			continue
		}
		if o.OrderID != "" {
			seenOrder[o.OrderID] = true
		}
		if o.PaymentID != "" {
			seenPayment[o.PaymentID] = true
		}
		retained = append(retained, o)
	}
	return retained, duplicates
}
