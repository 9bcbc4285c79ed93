package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/minifiglab/figscope/internal/utils"
	"github.com/minifiglab/figscope/pkg/blapi"
	"github.com/minifiglab/figscope/pkg/match"
	"github.com/minifiglab/figscope/pkg/rarity"
	"github.com/minifiglab/figscope/pkg/refresh"
	"github.com/minifiglab/figscope/pkg/storage"
)

// syncCmd implements: figscope sync
//
// Default run order: materialize RB fig compositions, crawl missing BL data,
// tier-1 elimination, tier-2 set-scoped, tier-2 global, rarity rebuild. Each
// stage feeds the next; any single failed item is skipped and logged, never
// fatal to the run.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the catalog reconciliation pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'figscope sync --help'", args[0])
		}

		budget, _ := cmd.Flags().GetInt("budget")
		matchOnly, _ := cmd.Flags().GetBool("match-only")
		rarityOnly, _ := cmd.Flags().GetBool("rarity-only")

		db, err := storage.Open(dbPathFromFlags(cmd))
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()

		if rarityOnly {
			return runRarity(ctx, db)
		}

		n, err := db.MaterializeFigParts(ctx)
		if err != nil {
			return err
		}
		utils.Log.Infof("sync: materialized %d RB fig composition rows", n)

		if !matchOnly {
			token := viper.GetString("bricklink.token")
			if token == "" {
				utils.Log.Info("Skipping BrickLink refresh: token not found in config.")
			} else {
				api := blapi.New(viper.GetString("bricklink.baseurl"), token, budget)
				r := &refresh.Refresher{DB: db, API: api}
				if err := r.Run(ctx); err != nil {
					return err
				}
				utils.Log.Infof("sync: refresh issued %d API calls", api.Calls())
			}
		}

		if err := runMatchers(ctx, db); err != nil {
			return err
		}
		return runRarity(ctx, db)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().Int("budget", 0, "Max BrickLink API calls this run (0 = unlimited)")
	syncCmd.Flags().Bool("match-only", false, "Skip the BrickLink crawl and only run the matchers and rarity rebuild")
	syncCmd.Flags().Bool("rarity-only", false, "Only rebuild the rarity tables")
}

func runMatchers(ctx context.Context, db *storage.DB) error {
	rbBySet, err := db.RBFigsBySet(ctx)
	if err != nil {
		return err
	}
	blBySet, err := db.BLFigsBySet(ctx)
	if err != nil {
		return err
	}
	matchedRB, err := db.MatchedRBFigs(ctx)
	if err != nil {
		return err
	}
	matchedBL, err := db.MatchedBLIDs(ctx)
	if err != nil {
		return err
	}

	pairs := match.RunElimination(match.EliminationInput{
		RBFigsBySet: rbBySet,
		BLFigsBySet: blBySet,
		MatchedRB:   matchedRB,
		MatchedBL:   matchedBL,
	})
	committed := 0
	for _, p := range pairs {
		if err := db.CommitMatch(ctx, p); err != nil {
			utils.Log.Warnf("tier1: committing %s -> %s: %v", p.FigNum, p.BLMinifigNo, err)
			continue
		}
		committed++
	}
	utils.Log.Infof("sync: tier 1 matched %d figs", committed)

	// Cross-reference maps are built once and shared by both tier-2 passes.
	partMap, err := db.PartMap(ctx)
	if err != nil {
		return err
	}
	colorMap, err := db.ColorMap(ctx)
	if err != nil {
		return err
	}
	t2 := &match.Tier2{DB: db, PartMap: partMap, ColorMap: colorMap}

	scoped, err := t2.RunSetScoped(ctx)
	if err != nil {
		return err
	}
	utils.Log.Infof("sync: tier 2 set-scoped matched %d figs", scoped)

	global, err := t2.RunGlobal(ctx)
	if err != nil {
		return err
	}
	utils.Log.Infof("sync: tier 2 global matched %d figs", global)

	remaining, err := db.CountUnmapped(ctx)
	if err != nil {
		return err
	}
	utils.Log.Infof("sync: %d figs still unmapped", remaining)
	return nil
}

func runRarity(ctx context.Context, db *storage.DB) error {
	if err := rarity.Run(ctx, db); err != nil {
		return err
	}
	counts, err := db.TableCounts(ctx)
	if err != nil {
		return err
	}
	utils.Log.Infof("sync: rarity rebuilt (%d part rows, %d minifig rows)",
		counts["part_rarity"], counts["minifig_rarity"])
	return nil
}
