package persistence

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// CartKey — фиксированный ключ снимка корзины в key-value хранилище.
const CartKey = "minishop_cart_v1"

// DecodeResult описывает итог разбора сохранённого снимка.
type DecodeResult struct {
	Items []domain.CartItem
	// Dropped — число элементов, не прошедших структурную проверку.
	Dropped int
	// Malformed выставляется, если raw не JSON или не массив.
	Malformed bool
}

// DecodeSnapshot разбирает снимок, оставляя только структурно валидные элементы.
// Ошибок не возвращает: повреждённые данные равносильны пустой корзине.
func DecodeSnapshot(raw string) DecodeResult {
	if raw == "" {
		return DecodeResult{Items: []domain.CartItem{}}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elements); err != nil || elements == nil {
		// null, объект, строка или битый JSON
		return DecodeResult{Items: []domain.CartItem{}, Malformed: true}
	}

	result := DecodeResult{Items: make([]domain.CartItem, 0, len(elements))}
	seen := make(map[int64]struct{}, len(elements))
	for _, element := range elements {
		item, ok := decodeCartItem(element)
		if !ok {
			result.Dropped++
			continue
		}
		if _, dup := seen[item.ID]; dup {
			result.Dropped++
			continue
		}
		seen[item.ID] = struct{}{}
		result.Items = append(result.Items, item)
	}
	return result
}

// EncodeSnapshot сериализует позиции корзины в JSON-массив.
func EncodeSnapshot(items []domain.CartItem) (string, error) {
	if items == nil {
		items = []domain.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal cart snapshot: %w", err)
	}
	return string(data), nil
}

// IsValidCartItem проверяет элемент снимка: объект с числовыми id, price, quantity
// и строковым title. id и quantity должны быть целыми, quantity >= 1, price >= 0.
func IsValidCartItem(element json.RawMessage) bool {
	var fields map[string]any
	if err := json.Unmarshal(element, &fields); err != nil || fields == nil {
		return false
	}

	if hasShadowedField(fields) {
		return false
	}

	id, ok := fields["id"].(float64)
	if !ok || !isWhole(id) {
		return false
	}
	if _, ok := fields["title"].(string); !ok {
		return false
	}
	price, ok := fields["price"].(float64)
	if !ok || price < 0 {
		return false
	}
	quantity, ok := fields["quantity"].(float64)
	if !ok || !isWhole(quantity) || quantity < 1 || quantity > math.MaxInt32 {
		return false
	}
	return true
}

func decodeCartItem(element json.RawMessage) (domain.CartItem, bool) {
	if !IsValidCartItem(element) {
		return domain.CartItem{}, false
	}
	var item domain.CartItem
	// Необязательные поля неверного типа (например, images: "x") делают элемент невалидным.
	if err := json.Unmarshal(element, &item); err != nil {
		return domain.CartItem{}, false
	}
	if item.Quantity < 1 || item.Price < 0 {
		return domain.CartItem{}, false
	}
	return item, true
}

// snapshotFields — поля, которые CartItem разбирает сам.
var snapshotFields = []string{"id", "title", "description", "price", "thumbnail", "images", "quantity"}

// hasShadowedField сообщает о ключе, совпадающем с известным полем без учёта регистра,
// но записанном иначе: encoding/json разобрал бы его вместо проверенного значения.
func hasShadowedField(fields map[string]any) bool {
	for key := range fields {
		for _, known := range snapshotFields {
			if key != known && strings.EqualFold(key, known) {
				return true
			}
		}
	}
	return false
}

func isWhole(v float64) bool {
	return !math.IsInf(v, 0) && v == math.Trunc(v) && math.Abs(v) <= 1<<53
}
