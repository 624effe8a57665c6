// Command watchctl manages the stored session and watchlist from the
// shell. The TUI and watchctl share the same credential store, so a
// login here is picked up by the dashboard on its next start.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"tradewatch/internal/api"
	"tradewatch/internal/config"
	"tradewatch/internal/credstore"
	"tradewatch/internal/directory"
	"tradewatch/internal/session"
	"tradewatch/internal/util"
	"tradewatch/internal/watchlist"
)

const usage = `usage: watchctl [-config FILE] COMMAND [ARGS]

commands:
  login EMAIL            authenticate and store the session token
  logout                 discard the stored session
  whoami                 show the authenticated user and balance
  signup NAME EMAIL      register a new account (OTP sent by email)
  verify-otp EMAIL OTP   confirm the signup one-time password
  forgot-password EMAIL  start a password reset
  reset-otp EMAIL OTP    confirm the password-reset one-time password
  list                   print the materialized watchlist
  add SYMBOL             add a symbol to the watchlist
  remove SYMBOL          remove a symbol from the watchlist
  history SYMBOL         print historical daily quotes for a symbol
  transactions           print the account transaction history
  news                   print recent market news
`

type app struct {
	cfg    *config.Config
	client *api.Client
	sess   *session.Store
	dir    *directory.Cache
	wl     *watchlist.Synchronizer
}

func main() {
	configPath := flag.String("config", "tradewatch.yaml", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("loading config: %v", err)
	}
	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	client := api.NewClient(cfg.API.BaseURL,
		api.WithLogger(logger),
		api.WithTimeout(time.Duration(cfg.API.TimeoutSeconds)*time.Second),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	creds, err := credstore.Open(cfg.Storage.DBPath)
	if err != nil {
		fatal("opening credential store: %v", err)
	}
	defer creds.Close()

	sess := session.NewStore(creds, client, logger)
	dir := directory.NewCache(client, logger)

	a := &app{
		cfg:    cfg,
		client: client,
		sess:   sess,
		dir:    dir,
		wl:     watchlist.NewSynchronizer(client, sess, dir, logger),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if err := a.run(ctx, cmd, args); err != nil {
		fatal("%s: %v", cmd, err)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		if len(args) != 1 {
			return fmt.Errorf("usage: watchctl login EMAIL")
		}
		return a.login(ctx, args[0])

	case "logout":
		if err := a.sess.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil

	case "whoami":
		if err := a.sess.Initialize(ctx); err != nil {
			return err
		}
		id := a.sess.Identity()
		if id == nil {
			fmt.Println("not logged in")
			return nil
		}
		fmt.Printf("%s <%s> (id %s)\n", id.Name, id.Email, id.ID)
		if balance, err := a.client.GetUserBalance(ctx, id.ID); err == nil {
			fmt.Printf("balance: %.2f\n", balance)
		}
		return nil

	case "signup":
		if len(args) != 2 {
			return fmt.Errorf("usage: watchctl signup NAME EMAIL")
		}
		return a.signup(ctx, args[0], args[1])

	case "verify-otp", "reset-otp":
		if len(args) != 2 {
			return fmt.Errorf("usage: watchctl %s EMAIL OTP", cmd)
		}
		if cmd == "verify-otp" {
			if err := a.client.VerifyOTP(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("account verified; run watchctl login")
		} else {
			if err := a.client.VerifyResetOTP(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("reset confirmed; follow the emailed instructions")
		}
		return nil

	case "forgot-password":
		if len(args) != 1 {
			return fmt.Errorf("usage: watchctl forgot-password EMAIL")
		}
		if err := a.client.ForgotPassword(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("reset OTP sent to %s\n", args[0])
		return nil

	case "list":
		if err := a.loadWatchlist(ctx); err != nil {
			return err
		}
		entries := a.wl.Entries()
		if len(entries) == 0 {
			fmt.Println("watchlist is empty")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-8s %10.2f %+7.2f%%  %s\n", e.Symbol, e.Price, e.ChangePercent, e.Name)
		}
		return nil

	case "add", "remove":
		if len(args) != 1 {
			return fmt.Errorf("usage: watchctl %s SYMBOL", cmd)
		}
		return a.mutate(ctx, cmd, strings.ToUpper(args[0]))

	case "history":
		if len(args) != 1 {
			return fmt.Errorf("usage: watchctl history SYMBOL")
		}
		quotes, err := a.client.GetStockHistory(ctx, strings.ToUpper(args[0]))
		if err != nil {
			return err
		}
		for _, q := range quotes {
			fmt.Printf("%s  o %.2f h %.2f l %.2f c %.2f  v %.0f\n",
				q.Date, q.Open, q.High, q.Low, q.Close, q.Volume)
		}
		return nil

	case "transactions":
		if err := a.sess.Initialize(ctx); err != nil {
			return err
		}
		if !a.sess.Authenticated() {
			return fmt.Errorf("not logged in; run watchctl login first")
		}
		txs, err := a.client.GetTransactions(ctx)
		if err != nil {
			return err
		}
		if len(txs) == 0 {
			fmt.Println("no transactions")
			return nil
		}
		for _, tx := range txs {
			fmt.Printf("%s  %-4s %-8s %8.2f @ %.2f\n", tx.At, tx.Side, tx.Symbol, tx.Qty, tx.Price)
		}
		return nil

	case "news":
		articles, err := a.client.GetNews(ctx, 1, 20)
		if err != nil {
			return err
		}
		for _, art := range articles {
			fmt.Printf("%s  %s (%s)\n", art.PublishedAt.Format("2006-01-02"), art.Title, art.Source)
		}
		return nil

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) login(ctx context.Context, email string) error {
	password, err := promptPassword(email)
	if err != nil {
		return err
	}

	if err := a.sess.LoginWithPassword(ctx, email, password); err != nil {
		return err
	}
	id := a.sess.Identity()
	fmt.Printf("logged in as %s <%s>\n", id.Name, id.Email)
	return nil
}

func (a *app) signup(ctx context.Context, name, email string) error {
	password, err := promptPassword(email)
	if err != nil {
		return err
	}

	if err := a.client.Signup(ctx, name, email, password); err != nil {
		return err
	}
	fmt.Printf("OTP sent to %s; run watchctl verify-otp %s OTP\n", email, email)
	return nil
}

func promptPassword(email string) (string, error) {
	fmt.Fprintf(os.Stderr, "password for %s: ", email)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

// loadWatchlist brings up the session and directory, then reconciles.
func (a *app) loadWatchlist(ctx context.Context) error {
	if err := a.sess.Initialize(ctx); err != nil {
		return err
	}
	if !a.sess.Authenticated() {
		return fmt.Errorf("not logged in; run watchctl login first")
	}
	if err := a.dir.Load(ctx); err != nil {
		return err
	}
	return a.wl.Refresh(ctx)
}

func (a *app) mutate(ctx context.Context, cmd, symbol string) error {
	if err := a.loadWatchlist(ctx); err != nil {
		return err
	}

	if cmd == "remove" {
		if !a.wl.Contains(symbol) {
			return fmt.Errorf("%s is not on the watchlist", symbol)
		}
		if err := a.wl.Remove(ctx, symbol); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", symbol)
		return nil
	}

	inst, ok := a.dir.Get(symbol)
	if !ok {
		return fmt.Errorf("unknown symbol %s", symbol)
	}
	if a.wl.Contains(symbol) {
		fmt.Printf("%s is already on the watchlist\n", symbol)
		return nil
	}
	if err := a.wl.Add(ctx, inst); err != nil {
		return err
	}
	fmt.Printf("added %s\n", symbol)
	return nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
