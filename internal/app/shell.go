package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/minishop/internal/catalog"
)

const shellHelp = `commands:
  products [limit] [skip]      list catalog products
  search <query> [limit] [skip]
  product <id>                 show product details
  add <id>                     add product to cart
  inc <id> | dec <id>          change quantity
  remove <id>                  remove product from cart
  cart                         show cart and totals
  theme [toggle|light|dark]    show or change theme
  help                         show this help
  exit                         save cart and quit`

// Shell — построчный интерактивный интерфейс поверх App.
// Процесс живёт между командами, поэтому сохранение корзины работает с debounce.
type Shell struct {
	app *App
	in  io.Reader
	out io.Writer
	// Prompt выводит приглашение "> " перед каждой командой.
	Prompt bool
}

// NewShell создаёт оболочку, читающую команды из in.
func NewShell(app *App, in io.Reader, out io.Writer) *Shell {
	return &Shell{app: app, in: in, out: out}
}

// Run обрабатывает команды до EOF, "exit" или отмены ctx.
func (s *Shell) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	s.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if quit := s.Execute(ctx, line); quit {
				return nil
			}
			s.prompt()
		}
	}
}

func (s *Shell) prompt() {
	if s.Prompt {
		fmt.Fprint(s.out, "> ")
	}
}

// Execute выполняет одну команду и сообщает, нужно ли завершить оболочку.
// Ошибки выводятся пользователю и не прерывают работу.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "exit", "quit":
		return true
	case "help":
		fmt.Fprintln(s.out, shellHelp)
	case "products", "list":
		var limit, skip int
		if limit, skip, err = pageArgs(args); err == nil {
			err = s.app.ListProducts(ctx, s.out, limit, skip)
		}
	case "search":
		if len(args) == 0 {
			err = fmt.Errorf("usage: search <query> [limit] [skip]")
			break
		}
		query, rest := splitSearchArgs(args)
		var limit, skip int
		if limit, skip, err = pageArgs(rest); err == nil {
			err = s.app.SearchProducts(ctx, s.out, query, limit, skip)
		}
	case "product", "show":
		err = s.withID(args, func(id int64) error { return s.app.ShowProduct(ctx, s.out, id) })
	case "add":
		err = s.withID(args, func(id int64) error { return s.app.AddToCart(ctx, s.out, id) })
	case "inc", "increase":
		err = s.withID(args, func(id int64) error { s.app.IncreaseQuantity(s.out, id); return nil })
	case "dec", "decrease":
		err = s.withID(args, func(id int64) error { s.app.DecreaseQuantity(s.out, id); return nil })
	case "remove", "rm":
		err = s.withID(args, func(id int64) error { s.app.RemoveItem(s.out, id); return nil })
	case "cart":
		s.app.PrintCart(s.out)
	case "theme":
		switch {
		case len(args) == 0:
			s.app.PrintTheme(s.out)
		case strings.EqualFold(args[0], "toggle"):
			s.app.ToggleTheme(ctx, s.out)
		default:
			err = s.app.SetTheme(ctx, s.out, args[0])
		}
	default:
		err = fmt.Errorf("unknown command %q, type help", cmd)
	}

	if err != nil {
		fmt.Fprintln(s.out, s.app.palette(s.out).errorS.Render("error: "+err.Error()))
	}
	return false
}

func (s *Shell) withID(args []string, fn func(int64) error) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one product id")
	}
	id, err := ParseProductID(args[0])
	if err != nil {
		return err
	}
	return fn(id)
}

// ParseProductID разбирает положительный идентификатор товара.
func ParseProductID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", raw)
	}
	return id, nil
}

// pageArgs разбирает необязательные limit и skip.
func pageArgs(args []string) (int, int, error) {
	limit, skip := catalog.DefaultLimit, catalog.DefaultSkip
	if len(args) > 2 {
		return 0, 0, fmt.Errorf("expected at most limit and skip")
	}
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", args[0])
		}
		limit = v
	}
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return 0, 0, fmt.Errorf("invalid skip %q", args[1])
		}
		skip = v
	}
	return limit, skip, nil
}

// splitSearchArgs отделяет числовые limit/skip в конце строки от поискового запроса.
func splitSearchArgs(args []string) (string, []string) {
	end := len(args)
	for end > 1 && len(args)-end < 2 {
		if _, err := strconv.Atoi(args[end-1]); err != nil {
			break
		}
		end--
	}
	return strings.Join(args[:end], " "), args[end:]
}
