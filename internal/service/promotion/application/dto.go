package application

import (
	"time"

	"github.com/shopspring/decimal"

	"tomatomall/internal/service/promotion/domain"
)

// CreateTemplateRequest 是创建优惠券模板的请求体
type CreateTemplateRequest struct {
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Type           domain.CouponType `json:"type"`
	Threshold      decimal.Decimal   `json:"threshold"`
	Reduce         decimal.Decimal   `json:"reduce"`
	RestCnt        int               `json:"restCnt"`
	ExpireAt       time.Time         `json:"expireAt"`
	RuleDefinition string            `json:"ruleDefinition,omitempty"`
}

// TemplateResponse 是模板的对外表示
type TemplateResponse struct {
	ID             int64             `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Type           domain.CouponType `json:"type"`
	Threshold      decimal.Decimal   `json:"threshold"`
	Reduce         decimal.Decimal   `json:"reduce"`
	InUse          bool              `json:"inUse"`
	RestCnt        int               `json:"restCnt"`
	ExpireAt       time.Time         `json:"expireAt"`
	RuleDefinition string            `json:"ruleDefinition,omitempty"`
}

// CouponResponse 是用户优惠券的对外表示
type CouponResponse struct {
	ID         int64             `json:"id"`
	UserID     int64             `json:"userId"`
	TemplateID int64             `json:"templateId"`
	Template   *TemplateResponse `json:"template,omitempty"`
}

func toTemplateResponse(t *domain.CouponTemplate) *TemplateResponse {
	if t == nil {
		return nil
	}
	return &TemplateResponse{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Type:           t.Type,
		Threshold:      t.Threshold,
		Reduce:         t.Reduce,
		InUse:          t.InUse,
		RestCnt:        t.RestCnt,
		ExpireAt:       t.ExpireAt,
		RuleDefinition: t.RuleDefinition,
	}
}

func toCouponResponse(c *domain.Coupon) *CouponResponse {
	return &CouponResponse{
		ID:         c.ID,
		UserID:     c.UserID,
		TemplateID: c.TemplateID,
		Template:   toTemplateResponse(c.Template),
	}
}
