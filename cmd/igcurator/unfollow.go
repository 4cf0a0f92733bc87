package main

import (
	"context"
	stderrors "errors"
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

var unfollowCmd = &cobra.Command{
	Use:   "unfollow",
	Short: "Unfollow non-followers from the latest scan",
	Long: `Unfollow every account in the latest snapshot's to-unfollow list:
accounts you follow that don't follow back and are not favorites.

The favorites set is re-checked live before each unfollow, so protecting
an account mid-run takes effect immediately. One failing unfollow never
stops the run. Interrupt with Ctrl-C; already-processed accounts stay
unfollowed.`,
	Example: `  igcurator unfollow`,
	RunE:    runUnfollow,
}

func init() {
	rootCmd.AddCommand(unfollowCmd)
}

func runUnfollow(cmd *cobra.Command, args []string) error {
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

	if err := svc.UnfollowNonFollowers(ctx); err != nil {
		if errors.IsCancelled(err) {
			fmt.Println("Unfollow run cancelled.")
			return nil
		}
		if stderrors.Is(err, store.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "No scan found. Run 'igcurator sync' first.")
			os.Exit(1)
		}
		return err
	}
	return nil
}
