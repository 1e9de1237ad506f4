package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/fbscope/fbscope/internal/config"
	"github.com/fbscope/fbscope/internal/utils"
	"github.com/fbscope/fbscope/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the fbscope database",
}

func dsnFromFlags(cmd *cobra.Command) (string, error) {
	if dsn, _ := cmd.Flags().GetString("dsn"); dsn != "" {
		return dsn, nil
	}
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return "", err
	}
	return cfg.StorageDSN, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func openSink(cmd *cobra.Command) (storage.Sink, error) {
	dsn, err := dsnFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	if !isPostgres(dsn) {
		if _, err := os.Stat(dsn); os.IsNotExist(err) {
			return nil, fmt.Errorf("database file not found: %s", dsn)
		}
	}
	return storage.OpenSink(cmd.Context(), dsn)
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database (sqlite3 or psql)",
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := dsnFromFlags(cmd)
		if err != nil {
			return err
		}

		client, clientArgs := "sqlite3", []string{dsn}
		if isPostgres(dsn) {
			client = "psql"
		} else if _, err := os.Stat(dsn); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dsn)
		}

		clientPath, err := exec.LookPath(client)
		if err != nil {
			return fmt.Errorf("%s command not found in your PATH. Please install it to use the db shell", client)
		}

		if client == "sqlite3" {
			fmt.Println("--> Database schema:")
			schemaCmd := exec.Command(clientPath, dsn, ".schema")
			schemaCmd.Stdout = os.Stdout
			schemaCmd.Stderr = os.Stderr
			if err := schemaCmd.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
			}
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(clientPath, clientArgs...)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints how many records are stored per competition, season and category.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, err := openSink(cmd)
		if err != nil {
			return err
		}
		defer sink.Close()

		stats, err := sink.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Println("No data in the database to generate stats.")
			return nil
		}

		t := utils.NewTable()
		t.AppendHeader(tableRow("COMPETITION", "SEASON", "CATEGORY", "RECORDS", "LAST SEEN"))
		total := 0
		for _, s := range stats {
			t.AppendRow(tableRow(s.CompetitionID, s.SeasonID, s.Category, s.Records, s.LastSeenAt.Format("2006-01-02 15:04:05")))
			total += s.Records
		}
		t.AppendFooter(tableRow("TOTAL", "", "", total, ""))
		t.Render()
		return nil
	},
}

// getCmd prints stored records, or selected fields of them.
var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Print stored records or a match document",
	Example: `  fbscope db get --category results_overall --field team,points,last_5
  fbscope db get --category stats_standard --entity e342ad68@822bd0ba
  fbscope db get --match cc5b4244 --field home.score,away.score`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, err := openSink(cmd)
		if err != nil {
			return err
		}
		defer sink.Close()

		fieldList, _ := cmd.Flags().GetString("field")
		fields := utils.SplitList(fieldList)

		if matchID, _ := cmd.Flags().GetString("match"); matchID != "" {
			return printMatch(cmd.Context(), sink, matchID, fields)
		}

		opts := storage.ListOptions{}
		opts.CompetitionID, _ = cmd.Flags().GetString("competition")
		opts.SeasonID, _ = cmd.Flags().GetString("season")
		opts.Category, _ = cmd.Flags().GetString("category")
		opts.EntityID, _ = cmd.Flags().GetString("entity")
		opts.Limit, _ = cmd.Flags().GetInt("limit")

		records, err := sink.ListRecords(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			for _, r := range records {
				fmt.Println(r.Data)
			}
			return nil
		}

		t := utils.NewTable()
		header := tableRow("ENTITY", "CATEGORY")
		for _, f := range fields {
			header = append(header, f)
		}
		t.AppendHeader(header)
		for _, r := range records {
			row := tableRow(r.Key.EntityID, r.Key.Category)
			for _, f := range fields {
				row = append(row, r.Field(f).String())
			}
			t.AppendRow(row)
		}
		t.Render()
		return nil
	},
}

func printMatch(ctx context.Context, sink storage.Sink, matchID string, fields []string) error {
	data, err := sink.GetMatch(ctx, matchID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("match %s is not in the database", matchID)
	}
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		fmt.Println(gjson.Get(data, "@pretty").String())
		return nil
	}
	for _, f := range fields {
		fmt.Printf("%s: %s\n", f, gjson.Get(data, f).String())
	}
	return nil
}

// logCmd lists the most recent scrape log entries.
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the most recent scrape log entries (default 50)",
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, err := openSink(cmd)
		if err != nil {
			return err
		}
		defer sink.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := sink.ListLog(cmd.Context(), limit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			ts := e.OccurredAt.Format("2006-01-02 15:04:05")
			fmt.Printf("%s  %-7s  %-8s  %s  attempts=%d  %s\n", ts, e.Status, e.Kind, e.Target, e.Attempts, e.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.AddCommand(statsCmd)
	dbCmd.AddCommand(getCmd)
	dbCmd.AddCommand(logCmd)
	dbCmd.PersistentFlags().String("dsn", "", "SQLite path or postgres:// URL (default: storage.dsn from config)")

	getCmd.Flags().String("competition", "", "Competition id")
	getCmd.Flags().String("season", "", "Season, e.g. 2023-2024")
	getCmd.Flags().String("category", "", "Stat category, e.g. results_overall")
	getCmd.Flags().String("entity", "", "Entity id (team id, player id or player_id@team_id)")
	getCmd.Flags().String("match", "", "Print the stored document of this match id")
	getCmd.Flags().String("field", "", "Comma-separated gjson paths to print, e.g. values.goals")
	getCmd.Flags().Int("limit", 0, "Maximum number of records (0 = all)")

	logCmd.Flags().Int("limit", 50, "Number of entries to show")
}
