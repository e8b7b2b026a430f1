package app

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"passport/internal/credstore"
	"passport/internal/gateway"
	"passport/internal/session"
)

const userAgent = "passport/1.0"

// App wires the credential store, gateway, and session manager for the CLI.
type App struct {
	cfg Config
	log *slog.Logger
	mgr *session.Manager
	reg *prometheus.Registry
}

// New builds an App from configuration.
func New(cfg Config, log *slog.Logger) (*App, error) {
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("PASSPORT_API_URL is required")
	}

	deviceID := cfg.DeviceID
	if deviceID == "" {
		id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("device id: %w", err)
		}
		deviceID = id.String()
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.New(gateway.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.HTTPTimeout,
		UserAgent: userAgent,
		DeviceID:  deviceID,
		Platform:  cfg.Platform,
	})
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	mgr, err := session.NewManager(gw, store, session.Options{
		Logger:     log,
		Registerer: reg,
		RefreshTTL: cfg.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	return &App{cfg: cfg, log: log, mgr: mgr, reg: reg}, nil
}

func newStore(cfg Config) (credstore.Store, error) {
	switch cfg.Store {
	case "memory":
		return credstore.NewMemory(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return credstore.NewRedis(client, cfg.RedisKey), nil
	case "file":
		if cfg.Passphrase == "" {
			return nil, fmt.Errorf("PASSPORT_PASSPHRASE is required for the file store")
		}
		return credstore.NewFile(cfg.CredentialsFile, []byte(cfg.Passphrase))
	default:
		return nil, fmt.Errorf("unknown store %q (want file, memory, or redis)", cfg.Store)
	}
}

// Run dispatches a CLI subcommand.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: passport <login|register|whoami|token|logout|logout-all|update-profile|change-password|forgot-password|reset-password>")
	}

	if a.cfg.MetricsAddr != "" {
		go a.serveMetrics()
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.cmdLogin(ctx, rest)
	case "register":
		return a.cmdRegister(ctx, rest)
	case "whoami":
		return a.cmdWhoami(ctx)
	case "token":
		return a.cmdToken(ctx)
	case "logout":
		return a.cmdLogout(ctx)
	case "logout-all":
		return a.cmdLogoutAll(ctx)
	case "update-profile":
		return a.cmdUpdateProfile(ctx, rest)
	case "change-password":
		return a.cmdChangePassword(ctx, rest)
	case "forgot-password":
		return a.cmdForgotPassword(ctx, rest)
	case "reset-password":
		return a.cmdResetPassword(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *App) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.log.Info("metrics listening", "addr", a.cfg.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.log.Error("metrics server", "err", err)
	}
}

func (a *App) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	remember := fs.Bool("remember", true, "request a long-lived session")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.mgr.Login(ctx, *email, *password, *remember)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", user.Email, user.ID)
	return nil
}

func (a *App) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.mgr.Register(ctx, *email, *password, *name)
	if err != nil {
		return err
	}
	fmt.Printf("registered %s (%s)\n", user.Email, user.ID)
	return nil
}

func (a *App) cmdWhoami(ctx context.Context) error {
	if err := a.mgr.Initialize(ctx); err != nil {
		return err
	}
	snap := a.mgr.Session()
	if !snap.Authenticated {
		fmt.Println("not logged in")
		return nil
	}
	fmt.Printf("%s (%s)\n", snap.User.Email, snap.User.ID)
	if snap.User.Name != "" {
		fmt.Printf("name: %s\n", snap.User.Name)
	}
	return nil
}

func (a *App) cmdToken(ctx context.Context) error {
	if err := a.mgr.Initialize(ctx); err != nil {
		return err
	}
	token, err := a.mgr.AccessToken(ctx)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func (a *App) cmdLogout(ctx context.Context) error {
	if err := a.mgr.Initialize(ctx); err != nil {
		return err
	}
	if err := a.mgr.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func (a *App) cmdLogoutAll(ctx context.Context) error {
	if err := a.mgr.Initialize(ctx); err != nil {
		return err
	}
	revoked, err := a.mgr.LogoutAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("revoked %d sessions\n", revoked)
	return nil
}

func (a *App) cmdUpdateProfile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update-profile", flag.ContinueOnError)
	name := fs.String("name", "", "new display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.mgr.Initialize(ctx); err != nil {
		return err
	}

	upd := gateway.ProfileUpdate{}
	if *name != "" {
		upd.Name = name
	}
	user, err := a.mgr.UpdateProfile(ctx, upd)
	if err != nil {
		return err
	}
	fmt.Printf("profile updated: %s\n", user.Name)
	return nil
}

func (a *App) cmdChangePassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("change-password", flag.ContinueOnError)
	current := fs.String("current", "", "current password")
	next := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.mgr.Initialize(ctx); err != nil {
		return err
	}

	msg, err := a.mgr.ChangePassword(ctx, *current, *next)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func (a *App) cmdForgotPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forgot-password", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	msg, err := a.mgr.ForgotPassword(ctx, *email)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func (a *App) cmdResetPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	token := fs.String("token", "", "reset token from the email")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	msg, err := a.mgr.ResetPassword(ctx, *token, *password)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}
