// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"tomatomall/internal/pkg/database"
	"tomatomall/internal/service/order/domain"
)

// GormOrderRepository 是 OrderRepository 的 GORM 实现。
// 状态变更全部是 WHERE status = ? 的条件更新，以影响行数判断是否抢到。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)
	// 订单与预占记录一次插入，GORM 会回填外键
	if err := database.Conn(ctx, r.db).Create(model).Error; err != nil {
		return errors.Wrap(err, "create order")
	}
	order.ID = model.ID
	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	for i, l := range model.Lines {
		order.Lines[i].ID = l.ID
		order.Lines[i].OrderID = model.ID
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	var model OrderModel
	err := database.Conn(ctx, r.db).Preload("Lines", linesByID).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, errors.Wrapf(err, "find order %d", id)
	}
	return toOrderDomain(&model), nil
}

func (r *GormOrderRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	var models []OrderModel
	err := database.Conn(ctx, r.db).Preload("Lines", linesByID).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of user %d", userID)
	}
	return toOrderDomains(models), nil
}

func (r *GormOrderRepository) FindExpiredPending(ctx context.Context, before time.Time, afterID int64, limit int) ([]*domain.Order, error) {
	var models []OrderModel
	err := database.Conn(ctx, r.db).Preload("Lines", linesByID).
		Where("status = ? AND created_at < ? AND id > ?", string(domain.StatusPending), before, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "find expired pending orders")
	}
	return toOrderDomains(models), nil
}

func (r *GormOrderRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.Status) (bool, error) {
	return r.conditionalUpdate(ctx, id, from, map[string]interface{}{
		"status": string(to),
	})
}

func (r *GormOrderRepository) MarkPaid(ctx context.Context, id int64, tradeNo string, paidAt time.Time) (bool, error) {
	return r.conditionalUpdate(ctx, id, domain.StatusPending, map[string]interface{}{
		"status":   string(domain.StatusSuccess),
		"trade_no": tradeNo,
		"paid_at":  paidAt,
	})
}

func (r *GormOrderRepository) conditionalUpdate(ctx context.Context, id int64, from domain.Status, fields map[string]interface{}) (bool, error) {
	res := database.Conn(ctx, r.db).
		Model(&OrderModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(fields)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "update order %d", id)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormOrderRepository) TransitionLine(ctx context.Context, lineID int64, from, to domain.LineStatus) (bool, error) {
	res := database.Conn(ctx, r.db).
		Model(&LineReservationModel{}).
		Where("id = ? AND status = ?", lineID, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "update reservation line %d", lineID)
	}
	return res.RowsAffected == 1, nil
}

func linesByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func toOrderDomains(models []OrderModel) []*domain.Order {
	out := make([]*domain.Order, 0, len(models))
	for i := range models {
		out = append(out, toOrderDomain(&models[i]))
	}
	return out
}
