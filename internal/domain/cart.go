package domain

import (
	"encoding/json"
	"fmt"
)

// CartItem — позиция корзины: снимок полей товара на момент первого добавления плюс количество.
type CartItem struct {
	Product
	// Quantity всегда >= 1 для позиций, находящихся в корзине.
	Quantity int `json:"quantity"`
	// Extra хранит неизвестные поля сохранённого снимка, чтобы они переживали повторную запись.
	Extra map[string]json.RawMessage `json:"-"`
}

// cartItemFields перечисляет JSON-поля, которые CartItem разбирает сам.
var cartItemFields = []string{"id", "title", "description", "price", "thumbnail", "images", "quantity"}

// NewCartItem создаёт позицию с количеством 1.
func NewCartItem(p Product) CartItem {
	return CartItem{Product: p, Quantity: 1}
}

// LineTotal возвращает price × quantity.
func (i CartItem) LineTotal() float64 {
	return i.Price * float64(i.Quantity)
}

// MarshalJSON сериализует известные поля и дописывает Extra, не перетирая известные.
func (i CartItem) MarshalJSON() ([]byte, error) {
	type plain CartItem
	known, err := json.Marshal(plain(i))
	if err != nil {
		return nil, err
	}
	if len(i.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(cartItemFields)+len(i.Extra))
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, fmt.Errorf("merge cart item fields: %w", err)
	}
	for k, v := range i.Extra {
		if _, exists := merged[k]; exists {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON разбирает известные поля, остальные складывает в Extra.
func (i *CartItem) UnmarshalJSON(data []byte) error {
	type plain CartItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, field := range cartItemFields {
		delete(raw, field)
	}
	p.Extra = nil
	if len(raw) > 0 {
		p.Extra = raw
	}

	*i = CartItem(p)
	return nil
}
