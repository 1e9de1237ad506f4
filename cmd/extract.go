package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fbscope/fbscope/internal/utils"
	"github.com/fbscope/fbscope/pkg/match"
	"github.com/fbscope/fbscope/pkg/normalize"
	"github.com/fbscope/fbscope/pkg/schedule"
	"github.com/fbscope/fbscope/pkg/table"
	"github.com/spf13/cobra"
)

// extractCmd runs the extractors on a saved page, without any network.
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract tables, fixtures or a match from a saved HTML page and print JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		tableID, _ := cmd.Flags().GetString("table")
		doNormalize, _ := cmd.Flags().GetBool("normalize")
		mode, _ := cmd.Flags().GetString("as")
		competition, _ := cmd.Flags().GetString("competition")
		season, _ := cmd.Flags().GetString("season")
		matchID, _ := cmd.Flags().GetString("match-id")

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		doc, err := table.Parse(f)
		if err != nil {
			return err
		}

		var out any
		switch mode {
		case "match":
			out = match.Decompose(matchID, doc, utils.Log)
		case "schedule":
			fixtures, err := schedule.Parse(doc)
			if err != nil {
				return err
			}
			out = fixtures
		case "tables":
			var tables []*table.Table
			if tableID != "" {
				tbl, err := table.Extract(doc, tableID)
				if err != nil {
					return err
				}
				tables = []*table.Table{tbl}
			} else {
				tables = table.ExtractAll(doc)
			}
			if !doNormalize {
				out = tables
				break
			}
			meta := normalize.Meta{CompetitionID: competition, SeasonID: season}
			normalized := map[string][]any{}
			for _, tbl := range tables {
				category := table.Category(tbl.ID)
				for _, row := range tbl.Rows {
					rec, err := normalize.Normalize(category, row, meta)
					if err != nil {
						utils.Log.Warnf("%s: dropping row: %v", tbl.ID, err)
						continue
					}
					normalized[category] = append(normalized[category], rec)
				}
			}
			out = normalized
		default:
			return fmt.Errorf("unknown --as %q (tables, schedule, match)", mode)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringP("file", "f", "", "Saved HTML page")
	extractCmd.Flags().String("table", "", "Only extract the table with this id")
	extractCmd.Flags().Bool("normalize", false, "Validate rows and print typed records")
	extractCmd.Flags().String("as", "tables", "What to extract: tables, schedule or match")
	extractCmd.Flags().String("match-id", "", "Match id recorded on the decomposed match")
	extractCmd.Flags().String("competition", "", "Competition id recorded on normalized records")
	extractCmd.Flags().String("season", "", "Season recorded on normalized records")
	extractCmd.MarkFlagRequired("file")
}
