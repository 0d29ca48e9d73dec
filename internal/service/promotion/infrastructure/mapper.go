package infrastructure

import "tomatomall/internal/service/promotion/domain"

func toDomainTemplate(m *CouponTemplateModel) *domain.CouponTemplate {
	return &domain.CouponTemplate{
		ID:             m.ID,
		Title:          m.Title,
		Description:    m.Description,
		Type:           m.Type,
		Threshold:      m.Threshold,
		Reduce:         m.Reduce,
		InUse:          m.InUse,
		RestCnt:        m.RestCnt,
		ExpireAt:       m.ExpireAt,
		RuleDefinition: m.RuleDefinition,
		CreatedAt:      m.CreatedAt,
	}
}

func toTemplateModel(t *domain.CouponTemplate) *CouponTemplateModel {
	return &CouponTemplateModel{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Type:           t.Type,
		Threshold:      t.Threshold,
		Reduce:         t.Reduce,
		InUse:          t.InUse,
		RestCnt:        t.RestCnt,
		ExpireAt:       t.ExpireAt.UTC(),
		RuleDefinition: t.RuleDefinition,
	}
}

func toDomainCoupon(m *CouponModel) *domain.Coupon {
	c := &domain.Coupon{
		ID:         m.ID,
		UserID:     m.UserID,
		TemplateID: m.TemplateID,
		CreatedAt:  m.CreatedAt,
	}
	if m.Template.ID != 0 {
		c.Template = toDomainTemplate(&m.Template)
	}
	return c
}
