package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gymbody/internal/database"
	"gymbody/internal/models"

	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Show the Google Sheets sync queue and its failed tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.NewDB(cfg.Database.Path, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			counts, err := db.CountSyncTasks(ctx)
			if err != nil {
				return err
			}
			failed, err := db.FailedSyncTasks(ctx, limit)
			if err != nil {
				return err
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"counts": counts,
					"failed": failed,
				})
			}

			statuses := make([]string, 0, len(counts))
			for s := range counts {
				statuses = append(statuses, s)
			}
			sort.Strings(statuses)
			for _, s := range statuses {
				fmt.Printf("%-10s %d\n", s, counts[s])
			}
			if len(failed) == 0 {
				return nil
			}
			fmt.Println("\nFailed:")
			for _, t := range failed {
				fmt.Printf("  #%d %s session=%s user=%s attempts=%d: %s\n",
					t.ID, t.TaskType, t.SessionID, t.UserID, t.RetryCount, lastError(t))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Failed tasks to list")
	return cmd
}

func lastError(t models.SyncTask) string {
	if t.LastError == nil {
		return "-"
	}
	return *t.LastError
}
