package main

import (
	"github.com/spf13/cobra"

	"igcurator/internal/server"
	"igcurator/pkg/automation"
	"igcurator/pkg/events"
	"igcurator/pkg/logger"
	"igcurator/pkg/store"
)

var (
	serveAddr string
	serveDB   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the HTTP API server exposing scan state and automation controls.

Syncs and unfollow runs started over the API execute in the background;
progress and completion are delivered on the /api/events stream.`,
	Example: `  igcurator serve
  igcurator serve --addr :8080 --db /var/lib/igcurator/igcurator.db`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :3000)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "path to the SQLite database")
}

func runServe(cmd *cobra.Command, args []string) error {
	extra := make(map[string]interface{})
	if serveAddr != "" {
		extra["addr"] = serveAddr
	}
	if serveDB != "" {
		extra["db"] = serveDB
	}
	cfg, err := loadConfig(extra)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	factory, err := sessionFactory(cfg)
	if err != nil {
		return err
	}

	broadcaster := events.New()
	log := logger.GetLogger()
	svc := automation.NewService(st, broadcaster, cfg, factory, log)
	// A run mid-cooldown would otherwise keep the process alive long after
	// the listener has drained; its waits are ctx-cancellable, so cancel
	// first and the unwind is prompt.
	defer func() {
		svc.CancelRun()
		svc.Wait()
	}()

	srv := server.New(st, svc, broadcaster, cfg.Server, log)
	return srv.Start()
}
