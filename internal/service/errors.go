package service

import (
	"errors"
	"fmt"
)

// 代购记录相关错误
var (
	ErrSellerRequired          = errors.New("seller id is required")
	ErrBuyerRequired           = errors.New("buyer id is required")
	ErrRecordNotFound          = errors.New("fulfillment record not found")
	ErrRecordFetchFailed       = errors.New("fulfillment record fetch failed")
	ErrRecordUpdateFailed      = errors.New("fulfillment record update failed")
	ErrStatusInvalid           = errors.New("fulfillment status invalid")
	ErrStatusTransitionInvalid = errors.New("fulfillment status transition invalid")
	ErrRecordClosed            = errors.New("fulfillment record is closed")
	ErrCancelReasonRequired    = errors.New("cancel reason is required")
	ErrExportFormatInvalid     = errors.New("export format invalid")
	ErrBulkUpdateFailed        = errors.New("bulk update failed")
)

// 结账相关错误
var (
	ErrCheckoutItemsInvalid    = errors.New("checkout items invalid")
	ErrCheckoutModeInvalid     = errors.New("checkout mode invalid")
	ErrCheckoutModeUnavailable = errors.New("checkout mode unavailable")
	ErrCheckoutCreateFailed    = errors.New("checkout session create failed")
	ErrCheckoutGatewayFailed   = errors.New("checkout gateway request failed")
	ErrCheckoutSessionNotFound = errors.New("checkout session not found")
	ErrWebhookInvalid          = errors.New("webhook payload invalid")
)

// 认证相关错误
var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrRoleInvalid  = errors.New("role invalid")
)

// BulkUpdateError 批量更新失败，指明首个失败的记录，整批已回滚
type BulkUpdateError struct {
	RecordID string
	Err      error
}

func (e *BulkUpdateError) Error() string {
	return fmt.Sprintf("bulk update failed at record %s: %v", e.RecordID, e.Err)
}

func (e *BulkUpdateError) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrBulkUpdateFailed) 成立
func (e *BulkUpdateError) Is(target error) bool {
	return target == ErrBulkUpdateFailed
}
