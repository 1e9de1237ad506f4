package cmd

import (
	"github.com/fbscope/fbscope/internal/config"
	"github.com/fbscope/fbscope/internal/utils"
	"github.com/fbscope/fbscope/pkg/targets"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the targets a scrape would visit, with their URLs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		file, err := cfg.Targets()
		if err != nil {
			return err
		}

		kindList, _ := cmd.Flags().GetString("kind")
		kinds := targets.AllKinds
		if names := utils.SplitList(kindList); len(names) > 0 {
			kinds = nil
			for _, name := range names {
				k, err := targets.ParseKind(name)
				if err != nil {
					return err
				}
				kinds = append(kinds, k)
			}
		}
		competitions, _ := cmd.Flags().GetString("competition")
		seasons, _ := cmd.Flags().GetString("season")
		categories, _ := cmd.Flags().GetString("category")

		ts := file.Expand(kinds, targets.Filter{
			Competitions: utils.SplitList(competitions),
			Seasons:      utils.SplitList(seasons),
			Categories:   utils.SplitList(categories),
		})

		t := utils.NewTable()
		t.AppendHeader(tableRow("#", "KIND", "TARGET", "URL"))
		for i, target := range ts {
			t.AppendRow(tableRow(i+1, target.Kind(), target.String(), target.URL(cfg.BaseURL)))
		}
		t.Render()
		return nil
	},
}

func tableRow(cells ...interface{}) table.Row {
	return table.Row(cells)
}

func init() {
	rootCmd.AddCommand(targetsCmd)
	targetsCmd.Flags().String("kind", "", "Comma-separated kinds: league, players, schedule, matches (default: all)")
	targetsCmd.Flags().String("competition", "", "Comma-separated competition ids or slugs")
	targetsCmd.Flags().String("season", "", "Comma-separated seasons")
	targetsCmd.Flags().String("category", "", "Comma-separated player stat categories")
}
