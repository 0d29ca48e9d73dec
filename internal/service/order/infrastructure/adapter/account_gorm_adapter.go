package adapter

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"tomatomall/internal/pkg/database"
	"tomatomall/internal/service/order/domain"
	"tomatomall/internal/service/order/infrastructure"
)

// GormAccount 读写 accounts 表的番茄币余额
type GormAccount struct {
	db *gorm.DB
}

func NewGormAccount(db *gorm.DB) *GormAccount {
	return &GormAccount{db: db}
}

func (a *GormAccount) DisplayName(ctx context.Context, userID int64) (string, error) {
	var model infrastructure.AccountModel
	err := database.Conn(ctx, a.db).Select("id", "username", "name").Where("id = ?", userID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrAccountNotFound
		}
		return "", errors.Wrapf(err, "find account %d", userID)
	}
	if model.Name != "" {
		return model.Name, nil
	}
	return model.Username, nil
}

// CreditTomato 原子增加余额，不做读改写
func (a *GormAccount) CreditTomato(ctx context.Context, userID int64, cnt int) error {
	res := database.Conn(ctx, a.db).
		Model(&infrastructure.AccountModel{}).
		Where("id = ?", userID).
		Update("tomato", gorm.Expr("tomato + ?", cnt))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "credit tomato to account %d", userID)
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
