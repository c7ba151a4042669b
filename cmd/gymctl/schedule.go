package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"

	"gymbody/internal/access"
	"gymbody/internal/booking"
	"gymbody/internal/catalog"
	"gymbody/internal/config"
	"gymbody/internal/database"
	"gymbody/internal/models"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// openCatalog opens the configured database and brings the window up to date.
func openCatalog(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*catalog.Service, *database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return nil, nil, err
	}
	seed := uint64(cfg.Schedule.Seed)
	if seed == 0 {
		seed = uint64(now().UnixNano())
	}
	svc := catalog.NewService(db, cfg.Gyms, cfg.Schedule.SafetyLimit, rand.New(rand.NewPCG(seed, seed>>1)), logger)
	if err := svc.Refresh(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return svc, db, nil
}

func scheduleCmd() *cobra.Command {
	var gymID, date, trainer, role string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the bookable window of a gym",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			id, err := pickGym(cfg, gymID)
			if err != nil {
				return err
			}
			r := models.Role(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}

			ctx := cmd.Context()
			svc, db, err := openCatalog(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			sessions, err := svc.Sessions(ctx, id, catalog.Query{
				Caps:    access.For(r),
				Date:    date,
				Trainer: trainer,
			})
			if err != nil {
				return err
			}

			groups := catalog.GroupByDate(sessions)
			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(groups)
			}
			if len(groups) == 0 {
				fmt.Println("No sessions.")
				return nil
			}
			for _, g := range groups {
				fmt.Println(g.Date)
				for _, s := range g.Sessions {
					a := booking.Evaluate(s, false)
					fmt.Printf("  %-4s %-9s %-24s %-14s %d/%d %s\n",
						s.ID, s.Time, s.Title, s.Instructor, a.Booked, a.Capacity, a.Label)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&gymID, "gym", "", "Gym id (default: first configured gym)")
	cmd.Flags().StringVar(&date, "date", "", "Only this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&trainer, "trainer", "", "Only this instructor")
	cmd.Flags().StringVar(&role, "role", string(models.RoleOwner), "View the schedule as this role")
	return cmd
}
