package models

import "time"

// OrderItem is one line of an order, embedded in the order audit row.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// OrderModel records each order-notification request. The inbound payload
// (including the PDF) is transient; only this audit row survives.
type OrderModel struct {
	Base
	OrderNumber   string      `json:"order_number"   gorm:"uniqueIndex;not null"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email" gorm:"index"`
	Address       string      `json:"address"`
	City          string      `json:"city"`
	PostalCode    string      `json:"postal_code"`
	Phone         string      `json:"phone"`
	Items         []OrderItem `json:"items"          gorm:"type:longtext;serializer:json"`
	Subtotal      float64     `json:"subtotal"`
	Shipping      float64     `json:"shipping"`
	Total         float64     `json:"total"`
	NotifiedAt    time.Time   `json:"notified_at"`
	InternalSent  bool        `json:"internal_sent"`
	CustomerSent  bool        `json:"customer_sent"`
}

func (OrderModel) TableName() string { return "orders" }
