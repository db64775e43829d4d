package cart

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// Operation называет мутацию, изменившую корзину.
type Operation string

const (
	OpHydrate  Operation = "hydrate"
	OpAdd      Operation = "add"
	OpIncrease Operation = "increase"
	OpDecrease Operation = "decrease"
	OpRemove   Operation = "remove"
)

// Snapshot — неизменяемое состояние корзины на момент версии Version.
// Items разделяется между подписчиками, изменять его нельзя.
type Snapshot struct {
	Items   []domain.CartItem
	Version uint64
}

// Change описывает одну применённую мутацию.
type Change struct {
	Op Operation
	// ProductID равен 0 для OpHydrate.
	ProductID int64
	Snapshot  Snapshot
}

// Listener получает изменения синхронно, в порядке применения мутаций.
// Вызывать мутации Store из Listener нельзя.
type Listener func(Change)

// Store — единственный владелец корзины. Мутации выполняются целиком,
// включая оповещение подписчиков, прежде чем начнётся следующая.
type Store struct {
	writeMu sync.Mutex

	mu      sync.RWMutex
	items   []domain.CartItem
	version uint64

	subsMu    sync.RWMutex
	listeners map[uint64]Listener
	nextSubID uint64
}

// NewStore создаёт пустую корзину.
func NewStore() *Store {
	return &Store{
		items:     []domain.CartItem{},
		listeners: make(map[uint64]Listener),
	}
}

// Snapshot возвращает текущее состояние.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Items: s.items, Version: s.version}
}

// Items возвращает копию позиций корзины.
func (s *Store) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CartItem(nil), s.items...)
}

// Version возвращает номер текущего состояния.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe регистрирует слушателя и возвращает функцию отписки.
func (s *Store) Subscribe(l Listener) func() {
	if l == nil {
		return func() {}
	}

	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.listeners[id] = l
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.listeners, id)
			s.subsMu.Unlock()
		})
	}
}

// Hydrate безусловно заменяет содержимое корзины. Данные должны быть провалидированы заранее.
func (s *Store) Hydrate(items []domain.CartItem) {
	s.apply(OpHydrate, 0, func([]domain.CartItem) ([]domain.CartItem, bool) {
		return append([]domain.CartItem{}, items...), true
	})
}

// AddToCart увеличивает количество существующей позиции или добавляет новую с количеством 1.
// Поля существующей позиции (цена, название) не обновляются.
func (s *Store) AddToCart(p domain.Product) {
	s.apply(OpAdd, p.ID, func(items []domain.CartItem) ([]domain.CartItem, bool) {
		if idx := indexOf(items, p.ID); idx >= 0 {
			next := cloneItems(items)
			next[idx].Quantity++
			return next, true
		}
		next := make([]domain.CartItem, len(items), len(items)+1)
		copy(next, items)
		return append(next, domain.NewCartItem(p)), true
	})
}

// IncreaseQuantity увеличивает количество на 1; для отсутствующего id ничего не делает.
func (s *Store) IncreaseQuantity(id int64) {
	s.apply(OpIncrease, id, func(items []domain.CartItem) ([]domain.CartItem, bool) {
		idx := indexOf(items, id)
		if idx < 0 {
			return items, false
		}
		next := cloneItems(items)
		next[idx].Quantity++
		return next, true
	})
}

// DecreaseQuantity уменьшает количество на 1 и удаляет позицию, если оно стало <= 0.
func (s *Store) DecreaseQuantity(id int64) {
	s.apply(OpDecrease, id, func(items []domain.CartItem) ([]domain.CartItem, bool) {
		idx := indexOf(items, id)
		if idx < 0 {
			return items, false
		}
		if items[idx].Quantity-1 <= 0 {
			return without(items, idx), true
		}
		next := cloneItems(items)
		next[idx].Quantity--
		return next, true
	})
}

// RemoveItem удаляет позицию; для отсутствующего id ничего не делает.
func (s *Store) RemoveItem(id int64) {
	s.apply(OpRemove, id, func(items []domain.CartItem) ([]domain.CartItem, bool) {
		idx := indexOf(items, id)
		if idx < 0 {
			return items, false
		}
		return without(items, idx), true
	})
}

// apply строит новый срез позиций (copy-on-write), публикует его и оповещает слушателей.
func (s *Store) apply(op Operation, id int64, mutate func([]domain.CartItem) ([]domain.CartItem, bool)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next, changed := mutate(s.items)
	if !changed {
		s.mu.Unlock()
		return
	}
	s.items = next
	s.version++
	snap := Snapshot{Items: s.items, Version: s.version}
	s.mu.Unlock()

	s.notify(Change{Op: op, ProductID: id, Snapshot: snap})
}

func (s *Store) notify(change Change) {
	s.subsMu.RLock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	s.subsMu.RUnlock()

	// Подписчики вызываются в порядке регистрации.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s.subsMu.RLock()
		l, ok := s.listeners[id]
		s.subsMu.RUnlock()
		if ok {
			l(change)
		}
	}
}

func indexOf(items []domain.CartItem, id int64) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	return append([]domain.CartItem(nil), items...)
}

func without(items []domain.CartItem, idx int) []domain.CartItem {
	next := make([]domain.CartItem, 0, len(items)-1)
	next = append(next, items[:idx]...)
	return append(next, items[idx+1:]...)
}
