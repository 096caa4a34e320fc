package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/rccm-quiz/sessionguard/internal/app"
	"github.com/rccm-quiz/sessionguard/internal/backup"
	"github.com/rccm-quiz/sessionguard/internal/client"
	"github.com/rccm-quiz/sessionguard/internal/config"
	"github.com/rccm-quiz/sessionguard/internal/monitor"
)

var (
	watchServer     string
	watchToken      string
	watchInterval   time.Duration
	watchNoPush     bool
	watchAutoBackup bool
	watchNoExtend   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the quiz session in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := &cfg.Watch
		flags := cmd.Flags()
		if flags.Changed("server") {
			w.ServerURL = watchServer
		}
		if flags.Changed("token") {
			w.Token = watchToken
		}
		if flags.Changed("interval") {
			w.CheckInterval = watchInterval
		}
		if flags.Changed("no-push") {
			w.Push = !watchNoPush
		}
		if flags.Changed("auto-backup") {
			w.AutoBackup = watchAutoBackup
		}
		if flags.Changed("no-auto-extend") {
			w.AutoExtend = !watchNoExtend
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logPath := w.LogFile
		if logPath == "" {
			logPath = filepath.Join(backup.DefaultDir(), "watch.log")
		}
		logFile, err := openLogFile(logPath)
		if err != nil {
			return err
		}
		defer logFile.Close()
		logger, err := newLogger(logFile, w.LogLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		store, err := openBackupStore(*w)
		if err != nil {
			return err
		}
		defer store.Close()

		api := client.NewHTTPClient(w.ServerURL, w.Token, w.RequestTimeout)
		bridge := app.NewBridge()
		mon := monitor.NewMonitor(monitor.Config{
			CheckInterval:     w.CheckInterval,
			WarningThreshold:  w.WarningThreshold,
			CriticalThreshold: w.CriticalThreshold,
			AutoExtend:        w.AutoExtend,
			ShowWarnings:      w.ShowWarnings,
			AutoBackup:        w.AutoBackup,
			ReloadDelay:       w.RestoreReloadDelay,
			Logger:            logger,
		}, api, store, bridge)

		opts := []app.Option{app.WithLogger(logger), app.WithServer(w.ServerURL)}
		if w.Push {
			ws := client.NewWSClient(client.DeriveWSURL(w.ServerURL), w.Token, api.Jar())
			opts = append(opts, app.WithFeed(ws))
		}

		logger.Info("watching session", "server", w.ServerURL, "push", w.Push, "backup_store", w.BackupStore)
		p := tea.NewProgram(app.New(mon, bridge, opts...), tea.WithAltScreen(), tea.WithMouseCellMotion())
		_, err = p.Run()
		mon.Stop()
		if err != nil {
			return fmt.Errorf("running TUI: %w", err)
		}
		return nil
	},
}

// openBackupStore opens the ledger backend named by w.BackupStore.
func openBackupStore(w config.WatchConfig) (backup.Store, error) {
	switch w.BackupStore {
	case "memory":
		return backup.NewMemoryStore(), nil
	case "bolt":
		path := w.BackupPath
		if path == "" {
			path = filepath.Join(backup.DefaultDir(), "backups.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating backup directory: %w", err)
		}
		// Fail fast if another watcher holds the database.
		return backup.OpenBoltStore(path, &bbolt.Options{Timeout: time.Second})
	default:
		return backup.NewFileStore(w.BackupPath), nil
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&watchServer, "server", "s", "", "Base URL of the session backend")
	watchCmd.Flags().StringVar(&watchToken, "token", "", "Auth token (if the backend requires it)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Status check interval")
	watchCmd.Flags().BoolVar(&watchNoPush, "no-push", false, "Poll only, without the WebSocket status feed")
	watchCmd.Flags().BoolVar(&watchAutoBackup, "auto-backup", false, "Save progress when the warning appears")
	watchCmd.Flags().BoolVar(&watchNoExtend, "no-auto-extend", false, "Do not extend the session on activity")
}
