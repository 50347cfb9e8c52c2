package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shibalab/souko/internal/api"
	"github.com/shibalab/souko/internal/clock"
	"github.com/shibalab/souko/internal/config"
	"github.com/shibalab/souko/internal/db"
	"github.com/shibalab/souko/internal/store"
)

// levelRouter sends INFO and WARN records to one handler and ERROR records
// to another.
type levelRouter struct {
	out slog.Handler
	err slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.err.Handle(ctx, r)
	}
	return lr.out.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{out: lr.out.WithAttrs(attrs), err: lr.err.WithAttrs(attrs)}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{out: lr.out.WithGroup(name), err: lr.err.WithGroup(name)}
}

// setupLogger installs the default logger. Production logs are JSON; other
// environments get text. With logPath set, every record is also appended
// to that file. The returned func closes the file.
func setupLogger(environment, logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	outW := io.Writer(os.Stdout)
	errW := io.Writer(os.Stderr)
	cleanup := func() {}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		outW = io.MultiWriter(os.Stdout, f)
		errW = io.MultiWriter(os.Stderr, f)
	}

	newHandler := func(w io.Writer) slog.Handler {
		if environment == "production" {
			return slog.NewJSONHandler(w, opts)
		}
		return slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(&levelRouter{out: newHandler(outW), err: newHandler(errW)}))
	return cleanup, nil
}

type flags struct {
	envFile    string
	dbPath     string
	addr       string
	adminEmail string
	logPath    string
	baseURL    string
}

func parseFlags(args []string) (*flags, error) {
	fs := flag.NewFlagSet("souko", flag.ContinueOnError)
	f := &flags{}

	fs.StringVar(&f.envFile, "config", "", "")
	fs.StringVar(&f.envFile, "c", "", "")
	fs.StringVar(&f.dbPath, "db", "", "")
	fs.StringVar(&f.dbPath, "d", "", "")
	fs.StringVar(&f.addr, "addr", "", "")
	fs.StringVar(&f.addr, "a", "", "")
	fs.StringVar(&f.adminEmail, "email", "", "")
	fs.StringVar(&f.adminEmail, "e", "", "")
	fs.StringVar(&f.logPath, "log", "", "")
	fs.StringVar(&f.logPath, "l", "", "")
	fs.StringVar(&f.baseURL, "base-url", "", "")
	fs.StringVar(&f.baseURL, "b", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: souko [flags]

Flags override SOUKO_* environment variables and the .env file.

  -c, -config <path>      .env file to read (default: ./.env if present)
  -d, -db <path>          SQLite database path (default: souko.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -e, -email <address>    admin email on first run (default: admin@souko.local)
  -l, -log <path>         also append logs to this file
  -b, -base-url <url>     prefix for QR references (default: http://localhost:8080)
  -h, -help               show this help and exit
`)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return f, nil
}

func loadConfig(f *flags) (*config.Config, error) {
	var files []string
	if f.envFile != "" {
		files = append(files, f.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.DBPath, f.dbPath)
	override(&cfg.Addr, f.addr)
	override(&cfg.AdminEmail, f.adminEmail)
	override(&cfg.LogPath, f.logPath)
	override(&cfg.BaseURL, strings.TrimRight(f.baseURL, "/"))
	return cfg, cfg.Validate()
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.Environment, cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	fresh := cfg.DBPath == db.MemoryPath
	if _, err := os.Stat(cfg.DBPath); errors.Is(err, os.ErrNotExist) {
		fresh = true
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	if fresh {
		password, err := createAdmin(ctx, database, cfg.AdminEmail)
		if err != nil {
			return err
		}
		printInitResult(cfg.DBPath, cfg.AdminEmail, password)
	}
	slog.Info("database ready", "path", cfg.DBPath)

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("loading JWT secret: %w", err)
	}

	router := api.NewRouter(api.Options{
		DB:                   database,
		JWTSecret:            jwtSecret,
		Clock:                clock.NewSystem(),
		BaseURL:              cfg.BaseURL,
		DefaultDuePeriod:     cfg.DefaultDuePeriod,
		RentalNoticePeriod:   cfg.RentalNoticePeriod,
		DashboardRentalLimit: cfg.DashboardRentalLimit,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "env", cfg.Environment)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}
