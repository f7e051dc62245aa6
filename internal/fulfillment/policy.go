package fulfillment

import (
	"errors"
	"fmt"

	"github.com/pasaph/internal/constants"

	"github.com/shopspring/decimal"
)

// ErrPolicyInvalid 计算参数非法
var ErrPolicyInvalid = errors.New("fulfillment policy invalid")

var hundred = decimal.NewFromInt(100)

// Policy 交付汇总使用的计算参数，统一由配置注入
type Policy struct {
	ServiceFeeRate        decimal.Decimal
	DeMinimisThreshold    decimal.Decimal
	NearThresholdPercent  decimal.Decimal
	DefaultDeliveryMethod string
	DefaultWeightKG       decimal.Decimal
	DefaultQuantity       int
}

// DefaultPolicy 返回默认计算参数
func DefaultPolicy() Policy {
	return Policy{
		ServiceFeeRate:        decimal.RequireFromString(constants.DefaultServiceFeeRate),
		DeMinimisThreshold:    decimal.NewFromInt(constants.DefaultDeMinimisThreshold),
		NearThresholdPercent:  decimal.NewFromInt(constants.DefaultNearThresholdPercent),
		DefaultDeliveryMethod: constants.DeliveryMethodMeetup,
		DefaultWeightKG:       decimal.RequireFromString(constants.DefaultWeightKG),
		DefaultQuantity:       1,
	}
}

// Validate 校验计算参数
func (p Policy) Validate() error {
	if p.ServiceFeeRate.IsNegative() || p.ServiceFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: service_fee_rate must be in [0,1)", ErrPolicyInvalid)
	}
	if !p.DeMinimisThreshold.IsPositive() {
		return fmt.Errorf("%w: de_minimis_threshold must be positive", ErrPolicyInvalid)
	}
	if !p.NearThresholdPercent.IsPositive() || p.NearThresholdPercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: near_threshold_percent must be in (0,100]", ErrPolicyInvalid)
	}
	if !constants.IsDeliveryMethod(p.DefaultDeliveryMethod) {
		return fmt.Errorf("%w: unknown default delivery method %q", ErrPolicyInvalid, p.DefaultDeliveryMethod)
	}
	if p.DefaultWeightKG.IsNegative() {
		return fmt.Errorf("%w: default_weight_kg must not be negative", ErrPolicyInvalid)
	}
	return nil
}

func (p Policy) defaultQuantity() int {
	if p.DefaultQuantity > 0 {
		return p.DefaultQuantity
	}
	return 1
}

func (p Policy) defaultDeliveryMethod() string {
	if constants.IsDeliveryMethod(p.DefaultDeliveryMethod) {
		return p.DefaultDeliveryMethod
	}
	return constants.DeliveryMethodMeetup
}

// ServiceFeeFor 按费率计算服务费（向下取整到整数货币单位）
func (p Policy) ServiceFeeFor(price decimal.Decimal) decimal.Decimal {
	return price.Mul(p.ServiceFeeRate).Floor()
}
