package cartstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shopmesh/shopmesh-client/pkg/db"
	"github.com/shopmesh/shopmesh-client/pkg/db/models"
	pkgerrors "github.com/shopmesh/shopmesh-client/pkg/errors"
)

// gormStore persists cart state through the shared GORM client. It is the
// default backend: a sqlite file standing in for profile-local storage, or
// postgres when several replicas share one shopper profile.
type gormStore struct {
	client   *db.Client
	notifier *Notifier
}

// NewGormStore wraps the db client as a Store publishing on notifier.
func NewGormStore(client *db.Client, notifier *Notifier) Store {
	return &gormStore{client: client, notifier: notifier}
}

func (s *gormStore) CartMap(ctx context.Context) ([]models.CartRecord, error) {
	var records []models.CartRecord
	err := s.client.DB().WithContext(ctx).
		Order("position asc").
		Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading cart map")
	}
	return records, nil
}

func (s *gormStore) CartIDForShop(ctx context.Context, domain string) (string, bool, error) {
	var record models.CartRecord
	err := s.client.DB().WithContext(ctx).
		Where("shop_domain = ?", domain).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading cart record")
	}
	return record.CartID, true, nil
}

func (s *gormStore) SetCartIDForShop(ctx context.Context, domain, cartID string) error {
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var record models.CartRecord
		err := tx.Where("shop_domain = ?", domain).First(&record).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			var maxPosition int64
			if err := tx.Model(&models.CartRecord{}).
				Select("COALESCE(MAX(position), 0)").
				Scan(&maxPosition).Error; err != nil {
				return err
			}
			return tx.Create(&models.CartRecord{
				ShopDomain: domain,
				CartID:     cartID,
				Position:   maxPosition + 1,
			}).Error
		case err != nil:
			return err
		default:
			// Keep the original position: replacing a stale cart id must
			// not reshuffle the cart page.
			return tx.Model(&models.CartRecord{}).
				Where("shop_domain = ?", domain).
				Updates(map[string]any{"cart_id": cartID, "updated_at": time.Now().UTC()}).Error
		}
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording cart id")
	}

	s.publish(Event{Kind: EventCartMap, ShopDomain: domain, CartID: cartID})
	return nil
}

func (s *gormStore) ItemCount(ctx context.Context) (int, bool, error) {
	var state models.CounterState
	err := s.client.DB().WithContext(ctx).
		Where("id = ?", models.CounterStateID).
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading item counter")
	}
	return int(state.ItemCount), true, nil
}

func (s *gormStore) SetItemCount(ctx context.Context, count int) error {
	if count < 0 {
		count = 0
	}
	err := s.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"item_count": count,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(&models.CounterState{ID: models.CounterStateID, ItemCount: int64(count)}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing item counter")
	}
	s.publish(Event{Kind: EventItemCount, ItemCount: count})
	return nil
}

func (s *gormStore) IncrementItemCount(ctx context.Context, delta int) error {
	var result int64
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.CounterState{ID: models.CounterStateID}).Error; err != nil {
			return err
		}
		// Single-expression update: the database applies the delta against
		// the committed value under its row lock, so concurrent increments
		// on the postgres backend never lose each other's writes.
		if err := tx.Model(&models.CounterState{}).
			Where("id = ?", models.CounterStateID).
			Updates(map[string]any{
				"item_count": gorm.Expr("CASE WHEN item_count + ? < 0 THEN 0 ELSE item_count + ? END", delta, delta),
				"updated_at": time.Now().UTC(),
			}).Error; err != nil {
			return err
		}
		var state models.CounterState
		if err := tx.Where("id = ?", models.CounterStateID).First(&state).Error; err != nil {
			return err
		}
		result = state.ItemCount
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing item counter")
	}
	s.publish(Event{Kind: EventItemCount, ItemCount: int(result)})
	return nil
}

func (s *gormStore) Subscribe(fn func(Event)) func() {
	return s.notifier.Subscribe(fn)
}

func (s *gormStore) publish(event Event) {
	if s.notifier != nil {
		s.notifier.Publish(event)
	}
}
