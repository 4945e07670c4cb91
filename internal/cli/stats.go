package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/ghostkg/internal/fsrs"
	"github.com/lazypower/ghostkg/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts for the local database",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	dbPath, err := store.DefaultDBPath()
	if err != nil {
		return fmt.Errorf("resolve db path: %w", err)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	st := store.New(db, nil, fsrs.NewScheduler(), store.Options{})
	counts, err := st.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("db: %s\n", dbPath)
	fmt.Printf("  owners: %d\n", counts.Owners)
	fmt.Printf("  nodes:  %d\n", counts.Nodes)
	fmt.Printf("  edges:  %d\n", counts.Edges)
	fmt.Printf("  logs:   %d\n", counts.Logs)
	return nil
}
