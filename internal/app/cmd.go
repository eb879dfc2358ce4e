package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hitoshi/soiree/internal/filestore"
	"github.com/hitoshi/soiree/internal/logger"
	"github.com/hitoshi/soiree/internal/roulette"
	"github.com/hitoshi/soiree/internal/watch"
)

// watchEnvPrefix はwatchサブコマンドのフラグに対応する環境変数の接頭辞。
const watchEnvPrefix = "SOIREE_WATCH"

// WatchOptions はwatchサブコマンドの設定。
type WatchOptions struct {
	URL       string
	Poll      time.Duration
	Tick      time.Duration
	StateFile string
	Timeout   time.Duration
	LogLevel  string
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。サブコマンドを省略した場合はserveとして起動する。
// SIGINTまたはSIGTERMを受信するとコンテキストをキャンセルする。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand(w)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// NewRootCommand はserve / migrate / healthcheck / watch を持つルートコマンドを返す。
func NewRootCommand(w io.Writer) *cobra.Command {
	serve := newServeCommand(w)

	root := &cobra.Command{
		Use:           "soiree",
		Short:         "Companion site for a private party: RSVP, wall, bring-list, music queue and drink roulette.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          serve.RunE,
	}
	root.SetOut(w)
	root.SetErr(w)

	root.AddCommand(serve, newMigrateCommand(w), newHealthcheckCommand(), newWatchCommand(w))

	root.CompletionOptions.HiddenDefaultCmd = true
	root.SetHelpCommand(&cobra.Command{Hidden: true})

	return root
}

func newServeCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			slog.Info("starting application",
				slog.String("command", "serve"),
				slog.String("port", cfg.ServerPort),
				slog.String("base_url", cfg.BaseURL),
			)
			return runServe(cmd.Context(), cfg)
		},
	}
}

func newMigrateCommand(w io.Writer) *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply RSVP database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if down < 0 {
				return fmt.Errorf("--down must not be negative: %d", down)
			}
			cfg, err := Init(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runMigrate(cfg, down)
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back instead of applying")
	return cmd
}

// newHealthcheckCommand は軽量サブコマンドのため、設定の読み込みを行わない。
func newHealthcheckCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check /healthz of the local server (for container health checks)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = os.Getenv("SERVER_PORT")
			}
			if port == "" {
				port = "8080"
			}
			return runHealthcheck(cmd.Context(), port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "server port (env: SERVER_PORT, default 8080)")
	return cmd
}

func newWatchCommand(w io.Writer) *cobra.Command {
	opts := &WatchOptions{}
	v := viper.New()
	v.SetEnvPrefix(watchEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the live dashboard (music, wall, roulette) in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return runWatch(cmd.Context(), w, opts)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&opts.URL, "url", "u", "http://localhost:8080", "server base URL (env: SOIREE_WATCH_URL)")
	fs.DurationVar(&opts.Poll, "poll", watch.DefaultPollInterval, "dashboard polling interval (env: SOIREE_WATCH_POLL)")
	fs.DurationVar(&opts.Tick, "tick", time.Second, "local progress tick interval (env: SOIREE_WATCH_TICK)")
	fs.StringVar(&opts.StateFile, "state-file", defaultStateFile(), "where the last played spin is remembered; empty keeps it in memory (env: SOIREE_WATCH_STATE_FILE)")
	fs.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "HTTP timeout per poll (env: SOIREE_WATCH_TIMEOUT)")
	fs.StringVar(&opts.LogLevel, "log-level", "warn", "log level written to stderr (env: SOIREE_WATCH_LOG_LEVEL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	return cmd
}

func (o *WatchOptions) validate() error {
	if !strings.HasPrefix(o.URL, "http://") && !strings.HasPrefix(o.URL, "https://") {
		return fmt.Errorf("--url must be an http(s) URL: %q", o.URL)
	}
	if o.Poll <= 0 || o.Tick <= 0 {
		return fmt.Errorf("--poll and --tick must be positive")
	}
	return nil
}

func defaultStateFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "soiree", "watch.json")
}

// runWatch はダッシュボードを端末に表示し続ける。ログは標準エラーに出す。
func runWatch(ctx context.Context, w io.Writer, opts *WatchOptions) error {
	log := logger.SetupWithLevel(os.Stderr, logger.ParseLevel(opts.LogLevel))

	var seen filestore.Store[roulette.SeenState]
	if opts.StateFile != "" {
		seen = filestore.NewJSONFile(filestore.JSONFileOptions[roulette.SeenState]{
			Path:     opts.StateFile,
			Defaults: func() roulette.SeenState { return roulette.SeenState{} },
			Logger:   log,
		})
	}

	client := watch.NewClient(&http.Client{Timeout: opts.Timeout}, log, opts.URL)
	watcher, err := watch.NewWatcher(ctx, client, watch.NewScreen(w), watch.Options{
		PollInterval: opts.Poll,
		TickInterval: opts.Tick,
		Seen:         seen,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	watcher.Start(ctx)
	return nil
}
