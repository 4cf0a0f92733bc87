package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"igcurator/pkg/reconcile"
	"igcurator/pkg/store"
)

var statsFull bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the latest snapshot's derived view",
	Long: `Show counts from the latest stored snapshot: followers, following,
non-followers, fans, and the to-unfollow list. With --full, print the
derived lists themselves.

Use -u to select an account; the default is the most recently scanned.`,
	Example: `  igcurator stats
  igcurator stats -u someaccount --full`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsFull, "full", false, "print derived lists, not just counts")
}

func runStats(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, st *store.Store) error {
		snap, err := st.LatestScan(ctx, username)
		if err != nil {
			if stderrors.Is(err, store.ErrNotFound) {
				fmt.Fprintln(os.Stderr, "No scan found. Run 'igcurator sync' first.")
				os.Exit(1)
			}
			return err
		}
		favorites, err := st.Favorites(ctx)
		if err != nil {
			return err
		}

		view := reconcile.Derive(snap, favorites)
		fmt.Printf("Account:       %s (scanned %s)\n", snap.Username, snap.Timestamp.Local().Format("2006-01-02 15:04"))
		fmt.Printf("Followers:     %d\n", view.FollowerCount)
		fmt.Printf("Following:     %d\n", view.FollowingCount)
		fmt.Printf("Non-followers: %d\n", len(view.NonFollowers))
		fmt.Printf("Fans:          %d\n", len(view.Fans))
		fmt.Printf("To unfollow:   %d\n", len(view.ToUnfollow))

		if !statsFull {
			return nil
		}

		printList := func(title string, accounts []reconcile.Account) {
			if len(accounts) == 0 {
				return
			}
			fmt.Printf("\n%s:\n", title)
			for _, a := range accounts {
				marker := ""
				if a.IsFavorite {
					marker = " *"
				}
				fmt.Printf("  %s%s\n", a.Username, marker)
			}
		}
		printList("Non-followers (* = favorite)", view.NonFollowers)
		printList("Fans", view.Fans)
		printList("To unfollow", view.ToUnfollow)
		return nil
	})
}
