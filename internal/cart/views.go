package cart

import (
	"sync"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// TotalItems возвращает сумму количеств по всем позициям.
func TotalItems(items []domain.CartItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// Subtotal возвращает сумму price × quantity по всем позициям.
func Subtotal(items []domain.CartItem) float64 {
	var sum float64
	for _, item := range items {
		sum += item.LineTotal()
	}
	return sum
}

// Summary — производные значения корзины для версии Version.
type Summary struct {
	TotalItems int
	Subtotal   float64
	Version    uint64
}

// Views мемоизирует производные значения по версии корзины:
// пересчёт происходит только если версия изменилась с прошлого чтения.
type Views struct {
	store *Store

	mu             sync.Mutex
	cached         Summary
	valid          bool
	recomputations int
}

// NewViews создаёт мемоизированные представления поверх store.
func NewViews(store *Store) *Views {
	return &Views{store: store}
}

// Summary возвращает актуальные производные значения.
func (v *Views) Summary() Summary {
	return v.summaryFor(v.store.Snapshot())
}

// TotalItems — мемоизированный TotalItems.
func (v *Views) TotalItems() int {
	return v.Summary().TotalItems
}

// Subtotal — мемоизированный Subtotal.
func (v *Views) Subtotal() float64 {
	return v.Summary().Subtotal
}

// Recomputations возвращает число фактических пересчётов.
func (v *Views) Recomputations() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.recomputations
}

// Subscribe вызывает fn, когда меняются TotalItems или Subtotal.
func (v *Views) Subscribe(fn func(Summary)) func() {
	if fn == nil {
		return func() {}
	}

	var (
		mu   sync.Mutex
		last = v.Summary()
	)
	return v.store.Subscribe(func(change Change) {
		next := v.summaryFor(change.Snapshot)

		mu.Lock()
		same := next.TotalItems == last.TotalItems && next.Subtotal == last.Subtotal
		last = next
		mu.Unlock()

		if !same {
			fn(next)
		}
	})
}

func (v *Views) summaryFor(snap Snapshot) Summary {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.valid && v.cached.Version == snap.Version {
		return v.cached
	}
	// Более старый снимок (например, запоздавшее оповещение) не вытесняет кэш.
	if v.valid && snap.Version < v.cached.Version {
		return Summary{TotalItems: TotalItems(snap.Items), Subtotal: Subtotal(snap.Items), Version: snap.Version}
	}

	v.cached = Summary{
		TotalItems: TotalItems(snap.Items),
		Subtotal:   Subtotal(snap.Items),
		Version:    snap.Version,
	}
	v.valid = true
	v.recomputations++
	return v.cached
}
