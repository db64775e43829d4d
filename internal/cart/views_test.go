package cart_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/minishop/internal/cart"
	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

func TestTotals_EmptyLedger(t *testing.T) {
	require.Equal(t, 0, cart.TotalItems(nil))
	require.Equal(t, 0.0, cart.Subtotal(nil))
}

func TestTotals_SumOverEntries(t *testing.T) {
	items := []domain.CartItem{
		{Product: domain.Product{ID: 1, Price: 2.5}, Quantity: 4},
		{Product: domain.Product{ID: 2, Price: 10}, Quantity: 1},
	}

	require.Equal(t, 5, cart.TotalItems(items))
	require.Equal(t, 20.0, cart.Subtotal(items))
}

func TestViews_MemoizedOnLedgerVersion(t *testing.T) {
	store := cart.NewStore()
	views := cart.NewViews(store)

	_ = views.Summary()
	_ = views.TotalItems()
	_ = views.Subtotal()
	require.Equal(t, 1, views.Recomputations(), "repeated reads of the same version must hit the cache")

	store.AddToCart(domain.Product{ID: 1, Price: 3})
	require.Equal(t, 1, views.TotalItems())
	require.Equal(t, 3.0, views.Subtotal())
	require.Equal(t, 2, views.Recomputations())

	// no-op мутация не меняет версию
	store.IncreaseQuantity(999)
	_ = views.Summary()
	require.Equal(t, 2, views.Recomputations())
}

func TestViews_SubscribeFiresOnlyWhenTotalsChange(t *testing.T) {
	store := cart.NewStore()
	views := cart.NewViews(store)
	store.AddToCart(domain.Product{ID: 1, Price: 5})

	var got []cart.Summary
	cancel := views.Subscribe(func(s cart.Summary) { got = append(got, s) })
	defer cancel()

	store.IncreaseQuantity(1)
	// та же корзина, новая версия: итоги не меняются
	store.Hydrate(store.Items())
	store.RemoveItem(1)

	require.Len(t, got, 2)
	require.Equal(t, 2, got[0].TotalItems)
	require.Equal(t, 10.0, got[0].Subtotal)
	require.Equal(t, 0, got[1].TotalItems)
	require.Equal(t, 0.0, got[1].Subtotal)
}
