package models

import (
	"fmt"
	"time"

	"github.com/pasaph/internal/constants"
	"github.com/pasaph/internal/logger"

	"github.com/google/uuid"
)

// SeedDemoRecords 为指定卖家写入演示代购记录，已有记录时跳过
func SeedDemoRecords(sellerID string) (int, error) {
	if sellerID == "" {
		return 0, fmt.Errorf("seller id is required")
	}
	var count int64
	if err := DB.Model(&FulfillmentRecord{}).Where("seller_id = ?", sellerID).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		logger.Warnw("seed_demo_records_skipped", "seller_id", sellerID, "existing", count)
		return 0, nil
	}

	neededBy := time.Now().AddDate(0, 0, 14).Truncate(24 * time.Hour)
	rows := []FulfillmentRecord{
		{
			BuyerID:          "buyer-maria",
			BuyerName:        "Maria Santos",
			ItemTitle:        "Tokyo Banana 8pc",
			Quantity:         2,
			TargetPrice:      MoneyFromFloat(500),
			DeliveryMethod:   constants.DeliveryMethodMeetup,
			DeliveryLocation: "SM Megamall",
			NeededBy:         &neededBy,
			Status:           constants.FulfillmentStatusToBuy,
		},
		{
			BuyerID:        "buyer-maria",
			BuyerName:      "Maria Santos",
			ItemTitle:      "Royce Nama Chocolate",
			TargetPrice:    MoneyFromFloat(800),
			DeliveryMethod: constants.DeliveryMethodMeetup,
			Status:         constants.FulfillmentStatusToBuy,
		},
		{
			BuyerID:        "buyer-juan",
			BuyerName:      "Juan Cruz",
			ItemTitle:      "Uniqlo Airism Tee",
			Color:          "Black",
			Capacity:       "M",
			Price:          MoneyFromFloat(300),
			DeliveryMethod: constants.DeliveryMethodShipping,
			Status:         constants.FulfillmentStatusToBuy,
		},
	}
	for i := range rows {
		rows[i].ID = uuid.NewString()
		rows[i].SellerID = sellerID
		if rows[i].Quantity <= 0 {
			rows[i].Quantity = 1
		}
	}
	if err := DB.Create(&rows).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}
