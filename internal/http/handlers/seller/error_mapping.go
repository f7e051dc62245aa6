package seller

import (
	handlershared "github.com/pasaph/internal/http/handlers/shared"
	"github.com/pasaph/internal/http/response"
	"github.com/pasaph/internal/service"

	"github.com/gin-gonic/gin"
)

var recordReadErrorRules = []handlershared.MappedError{
	{Target: service.ErrSellerRequired, Code: response.CodeUnauthorized, Msg: "seller required"},
	{Target: service.ErrExportFormatInvalid, Code: response.CodeBadRequest, Msg: "export format invalid"},
	{Target: service.ErrStatusInvalid, Code: response.CodeBadRequest, Msg: "status invalid"},
}

var recordWriteErrorRules = []handlershared.MappedError{
	{Target: service.ErrSellerRequired, Code: response.CodeUnauthorized, Msg: "seller required"},
	{Target: service.ErrRecordNotFound, Code: response.CodeNotFound, Msg: "record not found"},
	{Target: service.ErrStatusInvalid, Code: response.CodeBadRequest, Msg: "status invalid"},
	{Target: service.ErrStatusTransitionInvalid, Code: response.CodeConflict, Msg: "status can only move forward"},
	{Target: service.ErrRecordClosed, Code: response.CodeConflict, Msg: "record is already delivered or cancelled"},
	{Target: service.ErrCancelReasonRequired, Code: response.CodeBadRequest, Msg: "cancel reason required"},
	{Target: service.ErrBuyerRequired, Code: response.CodeBadRequest, Msg: "buyer_id required"},
}

func respondRecordReadError(c *gin.Context, err error) {
	handlershared.RespondMappedError(c, err, recordReadErrorRules, response.CodeInternal, "failed to load records")
}

func respondRecordWriteError(c *gin.Context, err error) {
	handlershared.RespondMappedError(c, err, recordWriteErrorRules, response.CodeInternal, "failed to update record")
}
