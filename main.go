package main

import (
	"calcpad/config"
	"calcpad/core/history"
	"calcpad/core/persistence"
	"calcpad/core/session"
	"calcpad/core/symbols"
	"calcpad/logger"
	"calcpad/ui"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
)

var cfg = config.Load()

var rootCmd = &cobra.Command{
	Use:   "calcpad",
	Short: "Keypad calculator with history",
	Long: `calcpad is a keypad calculator: a browser keypad served over HTTP and WebSocket,
a console keypad, and a one-shot evaluator sharing one persistent history.

Without a subcommand it starts the web server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogFile)
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web keypad",
	RunE:  runServe,
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run the console keypad",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()

		console := ui.NewConsoleInterface(h, os.Stdin, os.Stdout)
		if mode, ok := symbols.ParseMode(cfg.KeypadMode); ok {
			console.SetKeypadMode(mode)
		}
		return console.Run()
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval <expression>",
	Short: "Evaluate an expression typed as keypad glyphs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()

		console := ui.NewConsoleInterface(h, os.Stdin, os.Stdout)
		result, err := console.Eval(strings.Join(args, " "))
		if err != nil {
			logger.Debug("eval failed: %v", err)
			return errors.New("Invalid expression")
		}
		fmt.Println(result)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show history, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()

		entries, err := h.List()
		if err != nil {
			return err
		}
		for i := len(entries) - 1; i >= 0; i-- {
			fmt.Printf("%3d. %s = %s\n", i, entries[i].Expression, color.GreenString(entries[i].Result))
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all history",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()
		return h.Clear()
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <index>",
	Short: "Delete one history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}

		h, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()
		return h.Delete(index)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.Storage, "storage", cfg.Storage, "History storage: file, sqlite or memory")
	flags.StringVar(&cfg.DataFile, "data-file", cfg.DataFile, "JSON file for file storage")
	flags.StringVar(&cfg.DBFile, "db-file", cfg.DBFile, "Database file for sqlite storage")
	flags.IntVar(&cfg.HistoryLimit, "history-limit", cfg.HistoryLimit, "Maximum number of history entries")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error, none")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file (stderr when empty)")
	flags.StringVar(&cfg.KeypadMode, "keypad", cfg.KeypadMode, "Keypad layout: basic or scientific")

	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
		cmd.Flags().BoolVar(&cfg.OpenBrowser, "open", cfg.OpenBrowser, "Open the keypad in a browser")
		cmd.Flags().StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "Serve the page from this directory instead of the built-in one")
	}

	historyCmd.AddCommand(historyClearCmd, historyDeleteCmd)
	rootCmd.AddCommand(serveCmd, replCmd, evalCmd, historyCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	h := history.NewHistoryManagerWithLimit(store, cfg.HistoryLimit)
	sessions := session.NewManager(h, cfg.Secret)

	// Вторая копия или ручная правка файла истории
	if fs, ok := store.(*persistence.FileStore); ok {
		if err := persistence.Watch(ctx, fs.Path(), sessions.NotifyHistoryChanged); err != nil {
			logger.Warn("history file is not watched: %v", err)
		} else {
			sessions.SetHistoryWatched(true)
		}
	}

	web := ui.NewWebInterface(sessions, cfg.StaticDir)

	calcURL := "http://localhost" + cfg.Addr
	if strings.Contains(cfg.Addr, ":") && !strings.HasPrefix(cfg.Addr, ":") {
		calcURL = "http://" + cfg.Addr
	}

	if cfg.OpenBrowser {
		go func() {
			time.Sleep(500 * time.Millisecond)
			if err := open.Run(calcURL); err != nil {
				logger.Warn("failed to open browser: %v", err)
			}
		}()
	}

	fmt.Printf("Calculator is running at %s\n", color.CyanString(calcURL))
	fmt.Println("Press Ctrl+C to exit.")

	if err := web.Start(ctx, cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openStore() (persistence.Store, error) {
	switch cfg.Storage {
	case config.StorageFile:
		return persistence.NewFileStore(cfg.DataFile), nil
	case config.StorageSQLite:
		return persistence.NewSQLiteStore(cfg.DBFile)
	case config.StorageMemory:
		return persistence.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
}

func openHistory() (*history.HistoryManager, func(), error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage: %v", err)
		}
	}
	return history.NewHistoryManagerWithLimit(store, cfg.HistoryLimit), closeStore, nil
}
