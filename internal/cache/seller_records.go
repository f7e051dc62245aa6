package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pasaph/internal/fulfillment"
)

const defaultSellerRecordsTTL = 5 * time.Minute

// SellerEvent 卖家代购记录变更事件
type SellerEvent struct {
	SellerID  string   `json:"seller_id"`
	Action    string   `json:"action"`
	RecordIDs []string `json:"record_ids,omitempty"`
	At        int64    `json:"at"`
}

func sellerRecordsKey(sellerID string) string {
	return fmt.Sprintf("fulfillment:seller:%s", sellerID)
}

func sellerEventsChannel(sellerID string) string {
	return fmt.Sprintf("fulfillment:events:%s", sellerID)
}

// GetSellerRecords 读取卖家原始记录缓存
func GetSellerRecords(ctx context.Context, sellerID string) ([]fulfillment.RawRecord, bool, error) {
	if strings.TrimSpace(sellerID) == "" {
		return nil, false, nil
	}
	var records []fulfillment.RawRecord
	hit, err := GetJSON(ctx, sellerRecordsKey(sellerID), &records)
	if err != nil || !hit {
		return nil, hit, err
	}
	return records, true, nil
}

// SetSellerRecords 写入卖家原始记录缓存
func SetSellerRecords(ctx context.Context, sellerID string, records []fulfillment.RawRecord, ttl time.Duration) error {
	if strings.TrimSpace(sellerID) == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultSellerRecordsTTL
	}
	if records == nil {
		records = []fulfillment.RawRecord{}
	}
	return SetJSON(ctx, sellerRecordsKey(sellerID), records, ttl)
}

// InvalidateSellerRecords 删除卖家记录缓存
func InvalidateSellerRecords(ctx context.Context, sellerID string) error {
	if strings.TrimSpace(sellerID) == "" {
		return nil
	}
	return Del(ctx, sellerRecordsKey(sellerID))
}

// PublishSellerEvent 广播卖家记录变更
func PublishSellerEvent(ctx context.Context, event SellerEvent) error {
	if strings.TrimSpace(event.SellerID) == "" {
		return nil
	}
	if event.At == 0 {
		event.At = time.Now().Unix()
	}
	return Publish(ctx, sellerEventsChannel(event.SellerID), event)
}

// SubscribeSellerEvents 订阅卖家记录变更，ctx 结束时关闭订阅。缓存未启用时返回 nil
func SubscribeSellerEvents(ctx context.Context, sellerID string) (<-chan SellerEvent, error) {
	sub := Subscribe(ctx, sellerEventsChannel(sellerID))
	if sub == nil {
		return nil, nil
	}
	// 等待订阅确认，避免订阅建立前的事件丢失
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan SellerEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event SellerEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
