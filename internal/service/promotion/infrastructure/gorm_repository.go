package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"tomatomall/internal/pkg/database"
	"tomatomall/internal/service/promotion/domain"
)

// GormCouponRepository 是 CouponRepository 的 GORM 实现
type GormCouponRepository struct {
	db *gorm.DB
}

func NewGormCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// FindByID 使用 Preload 预加载关联的模板信息
func (r *GormCouponRepository) FindByID(ctx context.Context, id int64) (*domain.Coupon, error) {
	var model CouponModel
	err := database.Conn(ctx, r.db).Preload("Template").Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %d", id)
	}
	return toDomainCoupon(&model), nil
}

func (r *GormCouponRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Coupon, error) {
	var models []CouponModel
	err := database.Conn(ctx, r.db).Preload("Template").Where("user_id = ?", userID).Order("id").Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list coupons of user %d", userID)
	}
	out := make([]*domain.Coupon, 0, len(models))
	for i := range models {
		out = append(out, toDomainCoupon(&models[i]))
	}
	return out, nil
}

func (r *GormCouponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	model := CouponModel{UserID: coupon.UserID, TemplateID: coupon.TemplateID}
	if err := database.Conn(ctx, r.db).Omit("Template").Create(&model).Error; err != nil {
		return errors.Wrap(err, "create coupon")
	}
	coupon.ID = model.ID
	coupon.CreatedAt = model.CreatedAt
	return nil
}

func (r *GormCouponRepository) Delete(ctx context.Context, id int64) error {
	res := database.Conn(ctx, r.db).Where("id = ?", id).Delete(&CouponModel{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete coupon %d", id)
	}
	if res.RowsAffected == 0 {
		return domain.ErrCouponNotFound
	}
	return nil
}

func (r *GormCouponRepository) DeleteByTemplate(ctx context.Context, templateID int64) (int64, error) {
	res := database.Conn(ctx, r.db).Where("template_id = ?", templateID).Delete(&CouponModel{})
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "delete coupons of template %d", templateID)
	}
	return res.RowsAffected, nil
}

// GormTemplateRepository 是 TemplateRepository 的 GORM 实现
type GormTemplateRepository struct {
	db *gorm.DB
}

func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db}
}

func (r *GormTemplateRepository) Create(ctx context.Context, tpl *domain.CouponTemplate) error {
	model := toTemplateModel(tpl)
	if err := database.Conn(ctx, r.db).Create(model).Error; err != nil {
		return errors.Wrap(err, "create coupon template")
	}
	tpl.ID = model.ID
	tpl.CreatedAt = model.CreatedAt
	return nil
}

func (r *GormTemplateRepository) FindByID(ctx context.Context, id int64) (*domain.CouponTemplate, error) {
	var model CouponTemplateModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, errors.Wrapf(err, "find coupon template %d", id)
	}
	return toDomainTemplate(&model), nil
}

func (r *GormTemplateRepository) ListInUse(ctx context.Context) ([]*domain.CouponTemplate, error) {
	var models []CouponTemplateModel
	if err := database.Conn(ctx, r.db).Where("in_use = ?", true).Order("id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list coupon templates")
	}
	out := make([]*domain.CouponTemplate, 0, len(models))
	for i := range models {
		out = append(out, toDomainTemplate(&models[i]))
	}
	return out, nil
}

func (r *GormTemplateRepository) DecrementRest(ctx context.Context, id int64) error {
	res := database.Conn(ctx, r.db).Model(&CouponTemplateModel{}).
		Where("id = ? AND rest_cnt > 0", id).
		Update("rest_cnt", gorm.Expr("rest_cnt - 1"))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "decrement rest of template %d", id)
	}
	if res.RowsAffected == 0 {
		return domain.ErrCouponUsedUp
	}
	return nil
}

func (r *GormTemplateRepository) FindExpiredInUse(ctx context.Context, now time.Time) ([]*domain.CouponTemplate, error) {
	var models []CouponTemplateModel
	err := database.Conn(ctx, r.db).
		Where("in_use = ? AND expire_at <= ?", true, now.UTC()).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "find expired coupon templates")
	}
	out := make([]*domain.CouponTemplate, 0, len(models))
	for i := range models {
		out = append(out, toDomainTemplate(&models[i]))
	}
	return out, nil
}

func (r *GormTemplateRepository) Deactivate(ctx context.Context, id int64) error {
	err := database.Conn(ctx, r.db).Model(&CouponTemplateModel{}).Where("id = ?", id).Update("in_use", false).Error
	return errors.Wrapf(err, "deactivate template %d", id)
}
