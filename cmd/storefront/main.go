package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/routegate"
	"github.com/vladislavdragonenkov/storefront/internal/version"
	"github.com/vladislavdragonenkov/storefront/internal/view"
)

const usage = `usage: storefront <command> [flags]

commands:
  login     -u USER -p PASSWORD
  signup    -u USER -p PASSWORD -email EMAIL -name FULL_NAME [-address A] [-phone P] [-role R]
  logout
  whoami
  profile
  open      ROUTE
  add       PRODUCT_ID [QUANTITY]
  cart      [update CART_ITEM_ID CHANGE | remove CART_ITEM_ID]
  checkout  -address ADDRESS [-payment METHOD]
  confirm   -order-id ID [-session-id ID]
  serve
  version
`

// errUsage сигнализирует о неверном вызове команды.
var errUsage = errors.New("invalid usage")

// newUI создаёт интерфейс пользователя; тесты подменяют его записывающим.
var newUI = app.ConsoleUI

// setupLogger настраивает формат и уровень логирования для CLI.
func setupLogger(level log.Level) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
}

func main() {
	cfg, err := app.LoadConfig(".env")
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		setupLogger(log.InfoLevel)
		log.WithError(err).Fatal("invalid configuration")
	}
	setupLogger(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, os.Args[1:], os.Stdout)
	stop()

	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, errUsage):
		_, _ = fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	default:
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// run выполняет одну команду. Зависимости собираются только для команд, которым они нужны.
func run(ctx context.Context, cfg app.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "version":
		_, err := fmt.Fprintln(out, version.String())
		return err
	case "help", "-h", "--help":
		_, err := fmt.Fprint(out, usage)
		return err
	}

	logger := log.WithField("component", "storefront")
	deps, err := app.NewDependencies(ctx, cfg, newUI(out, logger), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close dependencies")
		}
	}()

	if cmd != "serve" && deps.JoinPrompt.Due(ctx) {
		_, _ = fmt.Fprintln(out, "New here? Run `storefront signup` to create an account.")
	}

	switch cmd {
	case "login":
		return runLogin(ctx, deps, rest, out)
	case "signup":
		return runSignup(ctx, deps, rest, out)
	case "logout":
		return deps.Session.Logout(ctx)
	case "whoami":
		return runWhoami(deps, out)
	case "profile":
		return runProfile(ctx, deps, out)
	case "open":
		return runOpen(deps, rest, out)
	case "add":
		return runAdd(ctx, deps, rest, out)
	case "cart":
		return runCart(ctx, deps, rest, out)
	case "checkout":
		return runCheckout(ctx, deps, rest, out)
	case "confirm":
		return runConfirm(ctx, deps, rest, out)
	case "serve":
		return app.Serve(ctx, deps)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func runLogin(ctx context.Context, deps *app.Dependencies, args []string, out io.Writer) error {
	fs := newFlagSet("login")
	var creds domain.Credentials
	fs.StringVar(&creds.Username, "u", "", "username")
	fs.StringVar(&creds.Password, "p", "", "password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	sess, err := deps.Session.Login(ctx, creds)
	if err != nil {
		return err
	}
	// Корзина входящего пользователя берётся с сервера.
	if _, err := deps.Cart.Refresh(ctx); err != nil {
		deps.Logger.WithError(err).Debug("cart refresh after login failed")
	}
	_, err = fmt.Fprintf(out, "signed in as %s (%s)\n", sess.User.Username, sess.Role())
	return err
}

func runSignup(ctx context.Context, deps *app.Dependencies, args []string, out io.Writer) error {
	fs := newFlagSet("signup")
	var (
		form domain.SignupForm
		role string
	)
	fs.StringVar(&form.Username, "u", "", "username")
	fs.StringVar(&form.Password, "p", "", "password")
	fs.StringVar(&form.ConfirmPassword, "confirm", "", "password confirmation")
	fs.StringVar(&form.Email, "email", "", "email")
	fs.StringVar(&form.FullName, "name", "", "full name")
	fs.StringVar(&form.Address, "address", "", "address")
	fs.StringVar(&form.Phone, "phone", "", "phone number")
	fs.StringVar(&role, "role", string(domain.RoleCustomer), "customer|admin")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	form.Role = domain.Role(role)

	msg, err := deps.Session.Signup(ctx, form)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, msg)
	return err
}

func runWhoami(deps *app.Dependencies, out io.Writer) error {
	sess := deps.Session.Current()
	if !sess.Authenticated() {
		_, err := fmt.Fprintln(out, "not signed in")
		return err
	}
	name := "unknown user"
	if sess.User != nil {
		name = sess.User.Username
	}
	_, err := fmt.Fprintf(out, "%s (%s), cart: %d\n", name, sess.Role(), deps.Cart.LocalCount())
	return err
}

func runProfile(ctx context.Context, deps *app.Dependencies, out io.Writer) error {
	if deps.Gate.Check(domain.RouteAccount) != routegate.Admitted {
		return domain.ErrAuthRequired
	}
	p, err := deps.Client.Profile(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%s <%s>\norders: %d\n", p.Username, p.Email, p.NumberOfOrders)
	for _, o := range p.Orders {
		_, _ = fmt.Fprintf(out, "  #%d  %-10s  %s\n", o.OrderID, o.Status, o.TotalPrice.StringFixed(2))
	}
	return nil
}

func runOpen(deps *app.Dependencies, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: open expects a route", errUsage)
	}
	route := domain.Route(args[0]).Normalize()
	decision := deps.Gate.Check(route)
	target := route
	if t := decision.Target(); t != "" {
		target = t
	}
	_, err := fmt.Fprintf(out, "%s -> %s (%s)\n", route, target, decision)
	return err
}

func runAdd(ctx context.Context, deps *app.Dependencies, args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: add expects PRODUCT_ID [QUANTITY]", errUsage)
	}
	productID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: product id %q", errUsage, args[0])
	}
	quantity := 1
	if len(args) == 2 {
		if quantity, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("%w: quantity %q", errUsage, args[1])
		}
	}

	if _, err := deps.Cart.AddItem(ctx, productID, quantity); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "cart: %d\n", deps.Cart.LocalCount())
	return err
}

func runCart(ctx context.Context, deps *app.Dependencies, args []string, out io.Writer) error {
	if deps.Gate.Check(domain.RouteCart) != routegate.Admitted {
		return domain.ErrAuthRequired
	}

	if len(args) > 0 {
		var err error
		switch {
		case args[0] == "update" && len(args) == 3:
			var id int64
			var change int
			if id, err = strconv.ParseInt(args[1], 10, 64); err == nil {
				if change, err = strconv.Atoi(args[2]); err == nil {
					_, err = deps.Cart.UpdateQuantity(ctx, id, change)
				}
			}
		case args[0] == "remove" && len(args) == 2:
			var id int64
			if id, err = strconv.ParseInt(args[1], 10, 64); err == nil {
				_, err = deps.Cart.RemoveItem(ctx, id)
			}
		default:
			return fmt.Errorf("%w: cart %s", errUsage, strings.Join(args, " "))
		}
		if err != nil {
			return err
		}
	}

	snap, err := deps.Cart.Refresh(ctx)
	if err != nil {
		return err
	}
	printCart(out, snap)
	return nil
}

func printCart(out io.Writer, snap domain.CartSnapshot) {
	if snap.Empty() {
		_, _ = fmt.Fprintln(out, "cart is empty")
		return
	}
	for _, item := range snap.Items {
		_, _ = fmt.Fprintf(out, "  [%d] %-20s x%d  %s\n", item.CartItemID, item.ProductName, item.Quantity, item.UnitPrice.StringFixed(2))
	}
	_, _ = fmt.Fprintf(out, "items: %d  total: %s\n", snap.ItemCount(), snap.TotalAmount.StringFixed(2))
}

func runCheckout(ctx context.Context, deps *app.Dependencies, args []string, out io.Writer) error {
	fs := newFlagSet("checkout")
	var details domain.ShippingDetails
	fs.StringVar(&details.Address, "address", "", "shipping address")
	fs.StringVar(&details.PaymentMethod, "payment", domain.DefaultPaymentMethod, "payment method")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if deps.Gate.Check(domain.RouteCheckout) != routegate.Admitted {
		return domain.ErrAuthRequired
	}

	attempt, err := deps.Checkout.Begin(ctx)
	if err != nil {
		return err
	}
	printCart(out, attempt.Cart())

	if err := deps.Checkout.Submit(ctx, attempt, details); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "order #%d placed, state: %s\n", attempt.OrderID(), attempt.State())
	return err
}

func runConfirm(ctx context.Context, deps *app.Dependencies, args []string, out io.Writer) error {
	fs := newFlagSet("confirm")
	orderID := fs.String("order-id", "", "order id from the payment return address")
	sessionID := fs.String("session-id", "", "payment session id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	query := url.Values{}
	if *orderID != "" {
		query.Set("order_id", *orderID)
	}
	if *sessionID != "" {
		query.Set("session_id", *sessionID)
	}

	_, result := deps.Checkout.ConfirmReturn(ctx, query)
	return view.RenderOr(out, result)
}
