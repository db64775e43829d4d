package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vladislavdragonenkov/minishop/internal/cart"
	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// palette — стили вывода для текущей темы. Рендерер привязан к writer,
// поэтому при выводе не в терминал цвета отключаются.
type palette struct {
	title  lipgloss.Style
	muted  lipgloss.Style
	accent lipgloss.Style
	errorS lipgloss.Style
}

func newPalette(w io.Writer, t domain.Theme) palette {
	r := lipgloss.NewRenderer(w)
	r.SetHasDarkBackground(t == domain.ThemeDark)

	accent := lipgloss.AdaptiveColor{Light: "#5A3FC0", Dark: "#B9A6FF"}
	muted := lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#9A9A9A"}
	danger := lipgloss.AdaptiveColor{Light: "#B00020", Dark: "#FF6B81"}

	return palette{
		title:  r.NewStyle().Bold(true),
		muted:  r.NewStyle().Foreground(muted),
		accent: r.NewStyle().Foreground(accent).Bold(true),
		errorS: r.NewStyle().Foreground(danger),
	}
}

func formatPrice(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func renderProductsPage(w io.Writer, p palette, page domain.ProductsPage) {
	if len(page.Products) == 0 {
		fmt.Fprintln(w, p.muted.Render("no products found"))
		return
	}
	for _, product := range page.Products {
		fmt.Fprintf(w, "%5d  %s  %s\n",
			product.ID,
			p.title.Render(product.Title),
			p.accent.Render(formatPrice(product.Price)),
		)
	}
	shown := page.Skip + len(page.Products)
	fmt.Fprintln(w, p.muted.Render(fmt.Sprintf("showing %d-%d of %d", page.Skip+1, shown, page.Total)))
}

func renderProduct(w io.Writer, p palette, product domain.Product) {
	fmt.Fprintf(w, "%s  %s\n", p.title.Render(product.Title), p.accent.Render(formatPrice(product.Price)))
	fmt.Fprintln(w, p.muted.Render(fmt.Sprintf("id %d", product.ID)))
	if desc := strings.TrimSpace(product.Description); desc != "" {
		fmt.Fprintln(w, desc)
	}
	if product.Thumbnail != "" {
		fmt.Fprintln(w, p.muted.Render(product.Thumbnail))
	}
}

func renderCart(w io.Writer, p palette, items []domain.CartItem, summary cart.Summary) {
	if len(items) == 0 {
		fmt.Fprintln(w, p.muted.Render("cart is empty"))
		return
	}
	for _, item := range items {
		fmt.Fprintf(w, "%5d  %s  %d x %s = %s\n",
			item.ID,
			p.title.Render(item.Title),
			item.Quantity,
			formatPrice(item.Price),
			p.accent.Render(formatPrice(item.LineTotal())),
		)
	}
	renderSummary(w, p, summary)
}

func renderSummary(w io.Writer, p palette, summary cart.Summary) {
	fmt.Fprintf(w, "%s %d  %s %s\n",
		p.muted.Render("items:"), summary.TotalItems,
		p.muted.Render("subtotal:"), p.accent.Render(formatPrice(summary.Subtotal)),
	)
}
