package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gymbody/internal/access"
	"gymbody/internal/catalog"
	"gymbody/internal/export"
	"gymbody/internal/models"

	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var gymID, outDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current window to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			id, err := pickGym(cfg, gymID)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.Exports.Path
			}

			ctx := cmd.Context()
			svc, db, err := openCatalog(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			gym, err := svc.Gym(id)
			if err != nil {
				return err
			}
			t := now()
			days, err := svc.Window(id, t)
			if err != nil {
				return err
			}
			sessions, err := svc.Sessions(ctx, id, catalog.Query{Caps: access.For(models.RoleOwner), Now: t})
			if err != nil {
				return err
			}

			path, err := export.NewExporter(outDir, logger).Save(gym, days, sessions, t)
			if err != nil {
				return err
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"path":     path,
					"days":     len(days),
					"sessions": len(sessions),
				})
			}
			fmt.Printf("Exported %d sessions over %d days to %s\n", len(sessions), len(days), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&gymID, "gym", "", "Gym id (default: first configured gym)")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (default: exports.path)")
	return cmd
}
