package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vladislavdragonenkov/minishop/internal/catalog"
	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// DescribeCatalogError возвращает сообщение для пользователя; виды ошибок каталога различаются.
func DescribeCatalogError(err error) string {
	var statusErr *catalog.StatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("catalog returned HTTP %d: %s", statusErr.Code, statusErr.Error())
	case errors.Is(err, domain.ErrCatalogTimeout):
		return "catalog did not respond in time, try again"
	case errors.Is(err, domain.ErrCatalogUnavailable):
		return "catalog is unreachable, check your connection"
	case errors.Is(err, domain.ErrProductIDInvalid):
		return "product id must be a positive number"
	case errors.Is(err, context.Canceled):
		return "request canceled"
	default:
		return err.Error()
	}
}

// CatalogError — ошибка каталога, уже переведённая в сообщение для пользователя.
type CatalogError struct {
	Err error
}

func (e *CatalogError) Error() string { return DescribeCatalogError(e.Err) }

func (e *CatalogError) Unwrap() error { return e.Err }

func (a *App) palette(w io.Writer) palette {
	return newPalette(w, a.Theme.Current())
}

// ListProducts печатает страницу каталога.
func (a *App) ListProducts(ctx context.Context, w io.Writer, limit, skip int) error {
	page, err := a.Catalog.ListProducts(ctx, limit, skip)
	if err != nil {
		return &CatalogError{Err: err}
	}
	renderProductsPage(w, a.palette(w), page)
	return nil
}

// SearchProducts печатает результаты поиска.
func (a *App) SearchProducts(ctx context.Context, w io.Writer, query string, limit, skip int) error {
	page, err := a.Catalog.SearchProducts(ctx, query, limit, skip)
	if err != nil {
		return &CatalogError{Err: err}
	}
	renderProductsPage(w, a.palette(w), page)
	return nil
}

// ShowProduct печатает карточку товара и его количество в корзине.
func (a *App) ShowProduct(ctx context.Context, w io.Writer, id int64) error {
	product, err := a.Catalog.GetProduct(ctx, id)
	if err != nil {
		return &CatalogError{Err: err}
	}
	p := a.palette(w)
	renderProduct(w, p, product)
	for _, item := range a.Store.Items() {
		if item.ID == id {
			fmt.Fprintln(w, p.muted.Render(fmt.Sprintf("in cart: %d", item.Quantity)))
			break
		}
	}
	return nil
}

// AddToCart загружает товар из каталога и добавляет его в корзину.
func (a *App) AddToCart(ctx context.Context, w io.Writer, id int64) error {
	product, err := a.Catalog.GetProduct(ctx, id)
	if err != nil {
		return &CatalogError{Err: err}
	}
	a.Store.AddToCart(product)

	p := a.palette(w)
	fmt.Fprintf(w, "added %s\n", p.title.Render(product.Title))
	renderSummary(w, p, a.Views.Summary())
	return nil
}

// IncreaseQuantity увеличивает количество позиции id.
func (a *App) IncreaseQuantity(w io.Writer, id int64) {
	a.mutate(w, id, a.Store.IncreaseQuantity)
}

// DecreaseQuantity уменьшает количество позиции id.
func (a *App) DecreaseQuantity(w io.Writer, id int64) {
	a.mutate(w, id, a.Store.DecreaseQuantity)
}

// RemoveItem удаляет позицию id.
func (a *App) RemoveItem(w io.Writer, id int64) {
	a.mutate(w, id, a.Store.RemoveItem)
}

func (a *App) mutate(w io.Writer, id int64, fn func(int64)) {
	before := a.Store.Version()
	fn(id)

	p := a.palette(w)
	if a.Store.Version() == before {
		fmt.Fprintln(w, p.muted.Render(fmt.Sprintf("product %d is not in the cart", id)))
		return
	}
	renderCart(w, p, a.Store.Items(), a.Views.Summary())
}

// PrintCart печатает содержимое корзины и итоги.
func (a *App) PrintCart(w io.Writer) {
	renderCart(w, a.palette(w), a.Store.Items(), a.Views.Summary())
}

// PrintTheme печатает текущую тему.
func (a *App) PrintTheme(w io.Writer) {
	fmt.Fprintf(w, "theme: %s\n", a.palette(w).accent.Render(string(a.Theme.Current())))
}

// ToggleTheme переключает и сохраняет тему.
func (a *App) ToggleTheme(ctx context.Context, w io.Writer) {
	a.Theme.Toggle(ctx)
	a.PrintTheme(w)
}

// SetTheme устанавливает тему явно.
func (a *App) SetTheme(ctx context.Context, w io.Writer, raw string) error {
	t, ok := domain.ParseTheme(raw)
	if !ok {
		return fmt.Errorf("unknown theme %q (use light or dark)", raw)
	}
	a.Theme.Set(ctx, t)
	a.PrintTheme(w)
	return nil
}
