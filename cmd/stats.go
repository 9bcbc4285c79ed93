package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/minifiglab/figscope/pkg/storage"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints match and rarity statistics from the database.",
	Long:  "Prints match and rarity statistics from the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := dbPathFromFlags(cmd)
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		db, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		matchStats, err := db.MatchStats(ctx)
		if err != nil {
			return err
		}
		unmapped, err := db.CountUnmapped(ctx)
		if err != nil {
			return err
		}
		counts, err := db.TableCounts(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "MATCH SOURCE\tFIGS\t")

		total := 0
		for _, s := range matchStats {
			fmt.Fprintf(w, "%s\t%d\t\n", s.Source, s.Count)
			total += s.Count
		}
		fmt.Fprintf(w, "unmapped\t%d\t\n", unmapped)
		fmt.Fprintln(w, " \t \t")
		fmt.Fprintf(w, "TOTAL MAPPED\t%d\t\n", total)
		w.Flush()

		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "TABLE\tROWS\t")
		for _, table := range []string{"rb_sets", "rb_minifigs", "bl_set_minifigs", "bl_minifig_parts", "part_rarity", "minifig_rarity"} {
			fmt.Fprintf(w, "%s\t%d\t\n", table, counts[table])
		}
		w.Flush()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
