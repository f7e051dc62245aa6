package public

import (
	handlershared "github.com/pasaph/internal/http/handlers/shared"
	"github.com/pasaph/internal/http/response"
	"github.com/pasaph/internal/service"
)

var checkoutCreateErrorRules = []handlershared.MappedError{
	{Target: service.ErrBuyerRequired, Code: response.CodeUnauthorized, Msg: "buyer required"},
	{Target: service.ErrCheckoutItemsInvalid, Code: response.CodeBadRequest, Msg: "checkout items invalid"},
	{Target: service.ErrCheckoutModeInvalid, Code: response.CodeBadRequest, Msg: "checkout mode invalid"},
	{Target: service.ErrCheckoutModeUnavailable, Code: response.CodeBadRequest, Msg: "checkout mode unavailable"},
	{Target: service.ErrCheckoutGatewayFailed, Code: response.CodeUnavailable, Msg: "payment gateway request failed"},
}

var checkoutQueryErrorRules = []handlershared.MappedError{
	{Target: service.ErrCheckoutSessionNotFound, Code: response.CodeNotFound, Msg: "checkout session not found"},
}
