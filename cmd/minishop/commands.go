package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/minishop/internal/app"
	"github.com/vladislavdragonenkov/minishop/internal/catalog"
	"github.com/vladislavdragonenkov/minishop/internal/version"
)

const closeTimeout = 5 * time.Second

// cli хранит конфигурацию и фабрику опций App для всех подкоманд.
type cli struct {
	cfg        app.Config
	appOptions func() []app.Option
}

func newRootCmd(cfg app.Config, options ...app.Option) *cobra.Command {
	c := &cli{
		cfg:        cfg,
		appOptions: func() []app.Option { return options },
	}
	return c.rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "minishop",
		Short:         "Browse the DummyJSON catalog and keep a persistent cart",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		c.productsCmd(),
		c.searchCmd(),
		c.productCmd(),
		c.cartCmd(),
		c.themeCmd(),
		c.shellCmd(),
		versionCmd(),
	)
	return root
}

// withApp поднимает App, загружает сохранённое состояние, выполняет fn
// и сохраняет изменения перед выходом.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, out io.Writer) error) error {
	ctx := cmd.Context()
	a, err := app.New(ctx, c.cfg, log.WithField("component", "app"), c.appOptions()...)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		a.Close(closeCtx)
	}()

	a.Start(ctx)
	return fn(ctx, a, cmd.OutOrStdout())
}

func addPageFlags(cmd *cobra.Command, limit, skip *int) {
	cmd.Flags().IntVar(limit, "limit", catalog.DefaultLimit, "page size")
	cmd.Flags().IntVar(skip, "skip", catalog.DefaultSkip, "number of products to skip")
}

func validatePage(limit, skip int) error {
	if limit <= 0 {
		return fmt.Errorf("--limit must be > 0")
	}
	if skip < 0 {
		return fmt.Errorf("--skip must be >= 0")
	}
	return nil
}

func (c *cli) productsCmd() *cobra.Command {
	var limit, skip int
	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"list"},
		Short:   "List catalog products",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validatePage(limit, skip); err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				return a.ListProducts(ctx, out, limit, skip)
			})
		},
	}
	addPageFlags(cmd, &limit, &skip)
	return cmd
}

func (c *cli) searchCmd() *cobra.Command {
	var limit, skip int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search catalog products",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePage(limit, skip); err != nil {
				return err
			}
			query := strings.Join(args, " ")
			return c.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				return a.SearchProducts(ctx, out, query, limit, skip)
			})
		},
	}
	addPageFlags(cmd, &limit, &skip)
	return cmd
}

func (c *cli) productCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "product <id>",
		Short: "Show product details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.ParseProductID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				return a.ShowProduct(ctx, out, id)
			})
		},
	}
}

func (c *cli) cartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show the cart or change it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.App, out io.Writer) error {
				a.PrintCart(out)
				return nil
			})
		},
	}

	byID := func(use, short string, fn func(ctx context.Context, a *app.App, out io.Writer, id int64) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := app.ParseProductID(args[0])
				if err != nil {
					return err
				}
				return c.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
					return fn(ctx, a, out, id)
				})
			},
		}
	}

	cmd.AddCommand(
		byID("add", "Add a product to the cart", func(ctx context.Context, a *app.App, out io.Writer, id int64) error {
			return a.AddToCart(ctx, out, id)
		}),
		byID("inc", "Increase product quantity", func(_ context.Context, a *app.App, out io.Writer, id int64) error {
			a.IncreaseQuantity(out, id)
			return nil
		}),
		byID("dec", "Decrease product quantity", func(_ context.Context, a *app.App, out io.Writer, id int64) error {
			a.DecreaseQuantity(out, id)
			return nil
		}),
		byID("remove", "Remove a product from the cart", func(_ context.Context, a *app.App, out io.Writer, id int64) error {
			a.RemoveItem(out, id)
			return nil
		}),
	)
	return cmd
}

func (c *cli) themeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or change the color theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.App, out io.Writer) error {
				a.PrintTheme(out)
				return nil
			})
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "toggle",
			Short: "Switch between light and dark",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
					a.ToggleTheme(ctx, out)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:       "set <light|dark>",
			Short:     "Set the theme explicitly",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"light", "dark"},
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
					return a.SetTheme(ctx, out, args[0])
				})
			},
		},
	)
	return cmd
}

func (c *cli) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session; cart changes are saved in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), c.cfg, cmd.InOrStdin(), cmd.OutOrStdout(), stdinIsTerminal(), c.appOptions()...)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
