package fulfillment

import (
	"testing"

	"github.com/pasaph/internal/constants"

	"github.com/shopspring/decimal"
)

func TestCalculateTotalsScenario(t *testing.T) {
	records := NormalizeAll([]RawRecord{
		{ID: "1", BuyerName: "Maria Santos", TargetPrice: decPtr("500"), Status: constants.FulfillmentStatusToBuy},
		{ID: "2", BuyerName: "Maria Santos", TargetPrice: decPtr("800"), Status: constants.FulfillmentStatusToBuy},
		{ID: "3", BuyerName: "Maria Santos", TargetPrice: decPtr("300"), Status: constants.FulfillmentStatusToBuy},
	}, DefaultPolicy())

	totals := CalculateTotals(records)
	if totals.ToBuy != 3 || totals.All != 3 {
		t.Fatalf("unexpected counts: %+v", totals)
	}
	if !totals.Payout.Equal(decimal.NewFromInt(1760)) {
		t.Fatalf("payout want 1760 got %s", totals.Payout)
	}
}

func TestCalculateTotalsExcludesClosedRecords(t *testing.T) {
	records := NormalizeAll([]RawRecord{
		{ID: "1", TargetPrice: decPtr("1000"), Status: constants.FulfillmentStatusToBuy},
		{ID: "2", TargetPrice: decPtr("2000"), Status: constants.FulfillmentStatusPurchased},
		{ID: "3", TargetPrice: decPtr("4000"), Status: constants.FulfillmentStatusDelivered},
		{ID: "4", TargetPrice: decPtr("8000"), Status: constants.FulfillmentStatusCancelled},
		{ID: "5", Status: constants.FulfillmentStatusToBuy},
	}, DefaultPolicy())

	totals := CalculateTotals(records)
	if totals.ToBuy != 2 || totals.Purchased != 1 || totals.Delivered != 1 || totals.Cancelled != 1 || totals.All != 5 {
		t.Fatalf("unexpected counts: %+v", totals)
	}
	// (1000+100) + (2000+200)
	if !totals.Payout.Equal(decimal.NewFromInt(3300)) {
		t.Fatalf("payout want 3300 got %s", totals.Payout)
	}
}

func TestCalculateTotalsEmpty(t *testing.T) {
	totals := CalculateTotals(nil)
	if totals.All != 0 || !totals.Payout.IsZero() {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestAssessTiers(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		name       string
		total      string
		percentage string
		tier       string
	}{
		{name: "over is capped", total: "12000", percentage: "100", tier: constants.CustomsTierOver},
		{name: "near", total: "8000", percentage: "80", tier: constants.CustomsTierNear},
		{name: "near boundary", total: "7500", percentage: "75", tier: constants.CustomsTierNear},
		{name: "exactly threshold is not over", total: "10000", percentage: "100", tier: constants.CustomsTierNear},
		{name: "normal", total: "2500", percentage: "25", tier: constants.CustomsTierNormal},
		{name: "just below near rounds up but stays normal", total: "7499.96", percentage: "75", tier: constants.CustomsTierNormal},
		{name: "zero", total: "0", percentage: "0", tier: constants.CustomsTierNormal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Assess(decimal.RequireFromString(tc.total), p)
			if !got.Percentage.Equal(decimal.RequireFromString(tc.percentage)) {
				t.Fatalf("percentage want %s got %s", tc.percentage, got.Percentage)
			}
			if got.Tier != tc.tier {
				t.Fatalf("tier want %s got %s", tc.tier, got.Tier)
			}
		})
	}
}

func TestAssessRecordsUsesPayout(t *testing.T) {
	records := NormalizeAll([]RawRecord{
		{TargetPrice: decPtr("5000"), ServiceFee: decPtr("0"), Status: constants.FulfillmentStatusToBuy},
		{TargetPrice: decPtr("3000"), ServiceFee: decPtr("0"), Status: constants.FulfillmentStatusPurchased},
		{TargetPrice: decPtr("9000"), Status: constants.FulfillmentStatusDelivered},
	}, DefaultPolicy())
	got := AssessRecords(records, DefaultPolicy())
	if !got.Total.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("total want 8000 got %s", got.Total)
	}
	if got.Tier != constants.CustomsTierNear {
		t.Fatalf("tier want near got %s", got.Tier)
	}
}
