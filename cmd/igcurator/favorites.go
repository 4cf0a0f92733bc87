package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"igcurator/pkg/store"
)

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "Manage the protected favorites set",
	Long: `Manage the favorites set. Favorite accounts are excluded from the
to-unfollow list and are never touched by bulk unfollow runs, even when
they don't follow back. The set is global across scanned accounts.`,
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorite accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st *store.Store) error {
			favorites, err := st.Favorites(ctx)
			if err != nil {
				return err
			}
			if len(favorites) == 0 {
				fmt.Println("No favorites.")
				return nil
			}
			for _, u := range favorites {
				fmt.Println(u)
			}
			return nil
		})
	},
}

var favoritesAddCmd = &cobra.Command{
	Use:   "add <username>...",
	Short: "Mark accounts as favorites",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st *store.Store) error {
			for _, u := range args {
				if err := st.AddFavorite(ctx, u); err != nil {
					return err
				}
			}
			fmt.Printf("Added %d favorite(s).\n", len(args))
			return nil
		})
	},
}

var favoritesRemoveCmd = &cobra.Command{
	Use:   "remove <username>...",
	Short: "Unmark favorite accounts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, st *store.Store) error {
			for _, u := range args {
				if err := st.RemoveFavorite(ctx, u); err != nil {
					return err
				}
			}
			fmt.Printf("Removed %d favorite(s).\n", len(args))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(favoritesCmd)
	favoritesCmd.AddCommand(favoritesListCmd)
	favoritesCmd.AddCommand(favoritesAddCmd)
	favoritesCmd.AddCommand(favoritesRemoveCmd)
}

// withStore loads config, opens the store, runs fn, and closes the store.
func withStore(fn func(context.Context, *store.Store) error) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(context.Background(), st)
}
