package router

import (
	"strings"
	"sync"

	"github.com/pasaph/internal/constants"
	"github.com/pasaph/internal/fulfillment"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerValidatorsOnce sync.Once

// RegisterValidators 在 gin 默认校验器上注册业务校验规则
func RegisterValidators() error {
	var err error
	registerValidatorsOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		rules := map[string]validator.Func{
			"fulfillment_status": validateFulfillmentStatus,
			"delivery_method":    validateDeliveryMethod,
			"checkout_mode":      validateCheckoutMode,
		}
		for tag, fn := range rules {
			if err = engine.RegisterValidation(tag, fn); err != nil {
				return
			}
		}
	})
	return err
}

// validateFulfillmentStatus 接受四种状态、旧写法 to-buy 以及列表筛选用的 all
func validateFulfillmentStatus(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if strings.EqualFold(value, constants.FulfillmentStatusAll) {
		return true
	}
	return fulfillment.NormalizeStatus(value) != ""
}

func validateDeliveryMethod(fl validator.FieldLevel) bool {
	return fulfillment.NormalizeDeliveryMethod(fl.Field().String()) != ""
}

func validateCheckoutMode(fl validator.FieldLevel) bool {
	return constants.IsCheckoutMode(strings.ToLower(strings.TrimSpace(fl.Field().String())))
}
