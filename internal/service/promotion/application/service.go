// internal/service/promotion/application/service.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/pkg/metrics"
	"tomatomall/internal/service/promotion/domain"
)

// Transactor 在一个本地事务中执行 fn
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PromotionService 定义了优惠服务提供的所有业务用例
type PromotionService struct {
	coupons   domain.CouponRepository
	templates domain.TemplateRepository
	rules     domain.RuleEngine
	tx        Transactor
	tracer    trace.Tracer
	now       func() time.Time
}

func NewPromotionService(coupons domain.CouponRepository, templates domain.TemplateRepository, rules domain.RuleEngine, tx Transactor, tracer trace.Tracer) *PromotionService {
	return &PromotionService{
		coupons:   coupons,
		templates: templates,
		rules:     rules,
		tx:        tx,
		tracer:    tracer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ApplyCoupon 校验并消耗一张优惠券，返回使用后的金额拆分。
// 优惠券在此刻即被删除，订单之后失败或超时也不会退还。
// 调用方若在事务中调用，删除会随事务一起提交或回滚。
func (s *PromotionService) ApplyCoupon(ctx context.Context, userID, couponID int64, candidateTotal decimal.Decimal) (domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "app.ApplyCoupon", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("coupon.id", couponID),
		attribute.String("amount.candidate", candidateTotal.String()),
	))
	defer span.End()

	quote, err := s.applyCoupon(ctx, userID, couponID, candidateTotal)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply coupon failed")
		return domain.Quote{}, err
	}
	span.SetAttributes(attribute.String("amount.reduced", quote.ReducedAmount.String()))
	logger.Ctx(ctx).Info().Int64("user_id", userID).Int64("coupon_id", couponID).
		Str("reduced", quote.ReducedAmount.String()).Msg("coupon consumed")
	return quote, nil
}

func (s *PromotionService) applyCoupon(ctx context.Context, userID, couponID int64, candidateTotal decimal.Decimal) (domain.Quote, error) {
	// 1. 券必须存在且属于当前用户，不区分两种情况以免泄露他人券信息
	coupon, err := s.coupons.FindByID(ctx, couponID)
	if err != nil {
		return domain.Quote{}, err
	}
	if coupon.UserID != userID {
		return domain.Quote{}, domain.ErrCouponNotFound
	}
	tpl := coupon.Template
	if tpl == nil {
		return domain.Quote{}, errors.Wrap(domain.ErrCouponInvalid, "template missing")
	}
	if !tpl.InUse || tpl.Expired(s.now()) {
		return domain.Quote{}, errors.Wrap(domain.ErrCouponInvalid, "template expired")
	}

	// 2. 计算优惠
	quote, err := tpl.Quote(candidateTotal)
	if err != nil {
		return domain.Quote{}, err
	}

	// 3. 额外适用规则
	ok, err := s.rules.Evaluate(tpl.RuleDefinition, domain.Fact{UserID: userID, Total: candidateTotal.InexactFloat64()})
	if err != nil {
		return domain.Quote{}, err
	}
	if !ok {
		return domain.Quote{}, errors.Wrap(domain.ErrCouponInvalid, "rule not satisfied")
	}

	// 4. 消耗优惠券；并发使用同一张券时只有一个请求能删除成功
	if err := s.coupons.Delete(ctx, couponID); err != nil {
		return domain.Quote{}, err
	}
	return quote, nil
}

// CreateTemplate 创建并启用一个优惠券模板
func (s *PromotionService) CreateTemplate(ctx context.Context, req *CreateTemplateRequest) (*TemplateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateTemplate")
	defer span.End()

	tpl := &domain.CouponTemplate{
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		Threshold:      req.Threshold,
		Reduce:         req.Reduce,
		InUse:          true,
		RestCnt:        req.RestCnt,
		ExpireAt:       req.ExpireAt.UTC(),
		RuleDefinition: req.RuleDefinition,
	}
	if err := tpl.Validate(s.now()); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if tpl.RuleDefinition != "" {
		if err := s.rules.Compile(tpl.RuleDefinition); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	if err := s.templates.Create(ctx, tpl); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create template failed")
		return nil, err
	}
	logger.Ctx(ctx).Info().Int64("template_id", tpl.ID).Str("title", tpl.Title).Msg("coupon template created")
	return toTemplateResponse(tpl), nil
}

// ListTemplates 返回所有启用中的模板
func (s *PromotionService) ListTemplates(ctx context.Context) ([]*TemplateResponse, error) {
	tpls, err := s.templates.ListInUse(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*TemplateResponse, 0, len(tpls))
	for _, t := range tpls {
		out = append(out, toTemplateResponse(t))
	}
	return out, nil
}

// IssueCoupon 从模板给用户发放一张券，扣减模板剩余数量
func (s *PromotionService) IssueCoupon(ctx context.Context, userID, templateID int64) (*CouponResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.IssueCoupon", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("template.id", templateID),
	))
	defer span.End()

	var coupon *domain.Coupon
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		tpl, err := s.templates.FindByID(ctx, templateID)
		if err != nil {
			return err
		}
		if !tpl.InUse || tpl.Expired(s.now()) {
			return errors.Wrap(domain.ErrCouponInvalid, "template not in use")
		}
		if err := s.templates.DecrementRest(ctx, templateID); err != nil {
			return err
		}
		coupon = &domain.Coupon{UserID: userID, TemplateID: templateID}
		if err := s.coupons.Create(ctx, coupon); err != nil {
			return err
		}
		tpl.RestCnt--
		coupon.Template = tpl
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue coupon failed")
		return nil, err
	}
	return toCouponResponse(coupon), nil
}

// ListCoupons 返回用户持有的全部优惠券
func (s *PromotionService) ListCoupons(ctx context.Context, userID int64) ([]*CouponResponse, error) {
	coupons, err := s.coupons.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*CouponResponse, 0, len(coupons))
	for _, c := range coupons {
		out = append(out, toCouponResponse(c))
	}
	return out, nil
}

// ExpireTemplates 停用所有已过期的模板，并删除由其发放的券。
// 单个模板失败不影响其它模板，返回成功处理的数量。
func (s *PromotionService) ExpireTemplates(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "app.ExpireTemplates")
	defer span.End()

	expired, err := s.templates.FindExpiredInUse(ctx, s.now())
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	done := 0
	for _, tpl := range expired {
		var removed int64
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.templates.Deactivate(ctx, tpl.ID); err != nil {
				return err
			}
			removed, err = s.coupons.DeleteByTemplate(ctx, tpl.ID)
			return err
		})
		if err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Error().Err(err).Int64("template_id", tpl.ID).Msg("failed to expire coupon template")
			continue
		}
		done++
		metrics.CouponTemplatesExpired.Inc()
		logger.Ctx(ctx).Info().Int64("template_id", tpl.ID).Int64("coupons_removed", removed).Msg("coupon template expired")
	}
	span.SetAttributes(attribute.Int("templates.expired", done))
	return done, nil
}
