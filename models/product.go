package models

import (
	"time"
)

type Product struct {
	ID                     int       `json:"id"`
	Name                   string    `json:"name"`
	Quantity               int       `json:"quantity"`
	OriginalPrice          float64   `json:"original_price"`
	DiscountPercentage     float64   `json:"discount_percentage"`
	DealOfTheDay           bool      `json:"deal_of_the_day"`
	DealDiscountPercentage float64   `json:"deal_discount_percentage"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Price 根据存储字段实时计算售价，不落库
func (p *Product) Price() float64 {
	discount := p.DiscountPercentage
	if p.DealOfTheDay {
		discount += p.DealDiscountPercentage
	}
	if discount > 100 {
		discount = 100
	}

	price := p.OriginalPrice - p.OriginalPrice*discount/100
	if price < 0 {
		return 0
	}
	return price
}

type CartItem struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	ProductID int       `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartLine 购物车行与商品联查的结果
type CartLine struct {
	ProductID   int     `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Available   int     `json:"available"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}
