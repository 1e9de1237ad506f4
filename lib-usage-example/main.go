package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fbscope/fbscope/pkg/batch"
	"github.com/fbscope/fbscope/pkg/fetch"
	"github.com/fbscope/fbscope/pkg/scrape"
	"github.com/fbscope/fbscope/pkg/targets"
)

func main() {
	// Usage: go run *.go -competition 9 -slug Premier-League -season 2023-2024

	compFlag := flag.String("competition", "9", "FBref competition id")
	slugFlag := flag.String("slug", "Premier-League", "Competition slug used in URLs")
	seasonFlag := flag.String("season", "2023-2024", "Season")
	profileFlag := flag.String("profile", os.TempDir()+"/fbscope-example", "Browser profile directory")

	// Parse the command-line flags
	flag.Parse()

	ctx := context.Background()

	// The chrome driver can get past the bot challenge; fetch.NewStatic is the
	// plain HTTP alternative.
	browser, err := fetch.NewChrome(ctx, fetch.ChromeOptions{ProfileDir: *profileFlag, Headless: true})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer browser.Close()

	runner := scrape.New(scrape.Config{
		Fetcher: fetch.New(browser, fetch.DefaultOptions()),
		Batch:   batch.Config{},
	})

	target := targets.CompetitionTarget{
		TargetKind:    targets.KindLeague,
		CompetitionID: *compFlag,
		Slug:          *slugFlag,
		Season:        *seasonFlag,
		Category:      targets.CategoryOverview,
	}
	res, err := runner.Scrape(ctx, target)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Printf("%d records, %d rows dropped by validation\n", res.Records, res.Invalid)
}
