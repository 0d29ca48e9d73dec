package domain

import (
	"context"
	"time"
)

// CouponRepository 定义了用户优惠券的持久化契约
type CouponRepository interface {
	// FindByID 返回优惠券及其模板
	FindByID(ctx context.Context, id int64) (*Coupon, error)
	ListByUser(ctx context.Context, userID int64) ([]*Coupon, error)
	Create(ctx context.Context, coupon *Coupon) error
	// Delete 删除优惠券；已被删除时返回 ErrCouponNotFound，用于防止同一张券被并发使用两次
	Delete(ctx context.Context, id int64) error
	DeleteByTemplate(ctx context.Context, templateID int64) (int64, error)
}

// TemplateRepository 定义了优惠券模板的持久化契约
type TemplateRepository interface {
	Create(ctx context.Context, tpl *CouponTemplate) error
	FindByID(ctx context.Context, id int64) (*CouponTemplate, error)
	ListInUse(ctx context.Context) ([]*CouponTemplate, error)
	// DecrementRest 条件扣减剩余数量，已为 0 时返回 ErrCouponUsedUp
	DecrementRest(ctx context.Context, id int64) error
	FindExpiredInUse(ctx context.Context, now time.Time) ([]*CouponTemplate, error)
	Deactivate(ctx context.Context, id int64) error
}

// Fact 是规则引擎评估时可见的事实
type Fact struct {
	UserID int64
	Total  float64
}

// RuleEngine 评估模板上的 RuleDefinition
type RuleEngine interface {
	Compile(ruleDefinition string) error
	Evaluate(ruleDefinition string, fact Fact) (bool, error)
}
