package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"igcurator/pkg/automation"
	"igcurator/pkg/errors"
	"igcurator/pkg/events"
	"igcurator/pkg/logger"
	"igcurator/pkg/store"
)

var syncUnfollow bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scan followers and following, store a snapshot",
	Long: `Scan the account's followers and following lists and store a new
immutable snapshot. With --unfollow, accounts that don't follow back (and
are not favorites) are unfollowed afterwards.

The scan paces itself like a human: randomized delays between pages, a
longer rest every tenth request, and a multi-minute cooldown on rate
limits. Interrupt with Ctrl-C at any point; partial work is abandoned
cleanly.`,
	Example: `  igcurator sync
  igcurator sync --unfollow
  igcurator sync -u someaccount`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&syncUnfollow, "unfollow", false, "unfollow non-followers after the scan")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
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
	printEvents(broadcaster)

	svc := automation.NewService(st, broadcaster, cfg, factory, logger.GetLogger())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Sync(ctx, syncUnfollow); err != nil {
		if errors.IsCancelled(err) {
			fmt.Println("Sync cancelled.")
			return nil
		}
		return err
	}
	return nil
}

// printEvents mirrors broadcast events to the terminal.
func printEvents(broadcaster *events.Broadcaster) {
	broadcaster.Subscribe(events.ObserverFunc(func(e events.Event) {
		msg, _ := e.Payload["message"].(string)
		if msg == "" {
			return
		}
		switch e.Kind {
		case events.KindError:
			fmt.Fprintln(os.Stderr, "error:", msg)
		case events.KindData:
			if count, ok := e.Payload["count"]; ok {
				fmt.Printf("\r%s: %v accounts", msg, count)
			} else {
				fmt.Println()
				fmt.Println(msg)
			}
		default:
			fmt.Println(msg)
		}
	}))
}
