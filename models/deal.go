package models

import (
	"time"
)

type Deal struct {
	ID                  int       `json:"id"`
	ProductID           int       `json:"product_id"`
	StartDate           time.Time `json:"start_date"`
	EndDate             time.Time `json:"end_date"`
	DiscountPercentage  float64   `json:"discount_percentage"`
	SpecialOfferDetails string    `json:"special_offer_details"`
	IsDealOfTheDay      bool      `json:"is_deal_of_the_day"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Expired 截止时间严格早于 now 即视为过期
func (d *Deal) Expired(now time.Time) bool {
	return d.EndDate.Before(now)
}
