// Package scrape runs scrape targets end to end: fetch, extract, normalize,
// persist and export. Each target is one unit of the batch.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fbscope/fbscope/internal/utils"
	"github.com/fbscope/fbscope/pkg/batch"
	"github.com/fbscope/fbscope/pkg/dataset"
	"github.com/fbscope/fbscope/pkg/export"
	"github.com/fbscope/fbscope/pkg/fetch"
	"github.com/fbscope/fbscope/pkg/match"
	"github.com/fbscope/fbscope/pkg/metrics"
	"github.com/fbscope/fbscope/pkg/normalize"
	"github.com/fbscope/fbscope/pkg/schedule"
	"github.com/fbscope/fbscope/pkg/storage"
	"github.com/fbscope/fbscope/pkg/table"
	"github.com/fbscope/fbscope/pkg/targets"
	"github.com/sirupsen/logrus"
)

var ErrNoTables = errors.New("no stat tables on page")

// Config holds everything a Runner needs.
type Config struct {
	Fetcher fetch.DocumentFetcher
	BaseURL string
	Sink    storage.Sink   // optional
	Export  *export.Writer // optional
	Batch   batch.Config
	Log     logrus.FieldLogger

	// OnResult is called once per target after it was logged. Calls are
	// serialized. Nil = no callback.
	OnResult func(*Result)
}

// Result is the outcome of one target.
type Result struct {
	Target   targets.Target
	Status   string // ok | partial | failed
	Attempts int
	Elapsed  time.Duration
	Records  int
	Invalid  int
	Changes  []storage.Change
	Files    []string
	Fixtures []schedule.Fixture
	Match    *match.Record
	Err      error
}

// Message summarizes the result for the scrape log.
func (r *Result) Message() string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Match != nil && r.Match.Partial():
		return "failed sections: " + strings.Join(r.Match.PartialSections, ", ")
	case r.Match != nil:
		return "match saved"
	default:
		return fmt.Sprintf("%d records, %d invalid", r.Records, r.Invalid)
	}
}

func (r *Result) status() string {
	switch {
	case r.Err != nil:
		return storage.StatusFailed
	case r.Invalid > 0, r.Match != nil && r.Match.Partial():
		return storage.StatusPartial
	default:
		return storage.StatusOK
	}
}

// Summary lists results in target order.
type Summary struct {
	Results []*Result
	Elapsed time.Duration
}

// Count returns how many results have the given status.
func (s *Summary) Count(status string) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// MatchTargets returns the match targets discovered by fixture lists, once
// each, in fixture order.
func (s *Summary) MatchTargets() []targets.MatchTarget {
	var out []targets.MatchTarget
	seen := map[string]bool{}
	for _, r := range s.Results {
		ct, ok := r.Target.(targets.CompetitionTarget)
		if !ok {
			continue
		}
		for _, f := range r.Fixtures {
			if seen[f.MatchID] {
				continue
			}
			seen[f.MatchID] = true
			out = append(out, f.Target(ct.Slug))
		}
	}
	return out
}

type Runner struct {
	cfg Config
	log logrus.FieldLogger
}

func New(cfg Config) *Runner {
	if cfg.BaseURL == "" {
		cfg.BaseURL = targets.DefaultBaseURL
	}
	log := utils.LoggerOrNop(cfg.Log)
	if cfg.Batch.Log == nil {
		cfg.Batch.Log = log
	}
	return &Runner{cfg: cfg, log: log}
}

// Run scrapes every target. Failed targets are logged and reported; they
// never stop the run.
func (r *Runner) Run(ctx context.Context, ts []targets.Target) *Summary {
	summary := &Summary{Results: make([]*Result, len(ts))}
	report := batch.Run(ctx, r.cfg.Batch, batch.Job[targets.Target, *Result]{
		Targets: ts,
		Work:    r.Scrape,
		OnDone: func(o batch.Outcome[targets.Target, *Result]) {
			res := o.Result
			if res == nil {
				res = &Result{Target: o.Target}
			}
			res.Attempts = o.Attempts
			res.Elapsed = o.Elapsed
			res.Err = o.Err
			res.Status = res.status()
			r.record(ctx, res)
			summary.Results[o.Index] = res
		},
	})
	summary.Elapsed = report.Elapsed

	if len(report.Failed()) == 0 {
		metrics.LastRunSuccess.Set(1)
	} else {
		metrics.LastRunSuccess.Set(0)
	}
	return summary
}

func (r *Runner) record(ctx context.Context, res *Result) {
	kind := string(res.Target.Kind())
	metrics.ObserveTarget(kind, res.Status, res.Elapsed)

	log := r.log.WithFields(logrus.Fields{"target": res.Target.String(), "status": res.Status})
	if res.Err == nil {
		log.Infof("Scraped %s: %s", res.Target, res.Message())
	}

	if r.cfg.Sink != nil {
		// The log line is written even when the run is being cancelled.
		err := r.cfg.Sink.LogTarget(context.WithoutCancel(ctx), storage.LogEntry{
			OccurredAt: time.Now().UTC(),
			Target:     res.Target.String(),
			Kind:       kind,
			Status:     res.Status,
			Attempts:   res.Attempts,
			Message:    res.Message(),
		})
		if err != nil {
			log.Warnf("Could not write scrape log: %v", err)
		}
	}
	if r.cfg.OnResult != nil {
		r.cfg.OnResult(res)
	}
}

// Scrape runs one attempt for t. Fetch failures are returned wrapped so the
// batch can retry them.
func (r *Runner) Scrape(ctx context.Context, t targets.Target) (*Result, error) {
	switch t := t.(type) {
	case targets.MatchTarget:
		return r.scrapeMatch(ctx, t)
	case targets.CompetitionTarget:
		return r.scrapeCompetition(ctx, t)
	default:
		return nil, fmt.Errorf("unsupported target %T", t)
	}
}

func (r *Runner) scrapeCompetition(ctx context.Context, t targets.CompetitionTarget) (*Result, error) {
	raw, err := r.cfg.Fetcher.Fetch(ctx, t.URL(r.cfg.BaseURL), t.ReadySelector())
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", t, err)
	}
	doc, err := table.ParseString(raw.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", t, err)
	}

	res := &Result{Target: t}
	b := dataset.NewBuilder(t.String())
	switch t.Kind() {
	case targets.KindLeague:
		err = r.league(doc, t, b, res)
	case targets.KindPlayers:
		err = r.players(doc, t, b, res)
	case targets.KindSchedule:
		err = r.schedule(doc, t, b, res)
	default:
		err = fmt.Errorf("unsupported kind %s", t.Kind())
	}
	if err != nil {
		return nil, err
	}

	ds := b.Build()
	res.Records = ds.Len()
	if r.cfg.Sink != nil && ds.Len() > 0 {
		changes, err := r.cfg.Sink.SaveDataset(ctx, ds)
		if err != nil {
			return nil, fmt.Errorf("save %s: %w", t, err)
		}
		res.Changes = changes
	}
	return res, nil
}

func meta(t targets.CompetitionTarget) normalize.Meta {
	return normalize.Meta{CompetitionID: t.CompetitionID, SeasonID: t.Season}
}

func (r *Runner) league(doc *goquery.Document, t targets.CompetitionTarget, b *dataset.Builder, res *Result) error {
	tables := table.ExtractAll(doc)
	if len(tables) == 0 {
		return fmt.Errorf("%s: %w", t, ErrNoTables)
	}
	for _, tbl := range tables {
		if err := r.addTable(t, tbl, b, res); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) players(doc *goquery.Document, t targets.CompetitionTarget, b *dataset.Builder, res *Result) error {
	cat, ok := targets.LookupPlayerCategory(t.Category)
	if !ok {
		return fmt.Errorf("unknown player category %q", t.Category)
	}
	tbl, err := table.Extract(doc, cat.TableID())
	if err != nil {
		return fmt.Errorf("%s: %w", t, err)
	}
	return r.addTable(t, tbl, b, res)
}

// addTable normalizes every row of tbl into the builder and exports the raw
// table. Invalid rows are dropped and counted.
func (r *Runner) addTable(t targets.CompetitionTarget, tbl *table.Table, b *dataset.Builder, res *Result) error {
	category := table.Category(tbl.ID)
	log := r.log.WithFields(logrus.Fields{"target": t.String(), "table": tbl.ID})
	for _, row := range tbl.Rows {
		rec, err := normalize.Normalize(category, row, meta(t))
		if err == nil {
			err = b.Add(category, rec)
		}
		if err != nil {
			res.Invalid++
			metrics.ObserveRecord(category, false)
			log.Debugf("Dropping row: %v", err)
			continue
		}
		metrics.ObserveRecord(category, true)
	}

	if r.cfg.Export != nil {
		path, err := r.cfg.Export.Table(category, t.Slug, t.Season, t.CompetitionID, tbl)
		if err != nil {
			return fmt.Errorf("export %s: %w", tbl.ID, err)
		}
		if path != "" {
			res.Files = append(res.Files, path)
		}
	}
	return nil
}

func (r *Runner) schedule(doc *goquery.Document, t targets.CompetitionTarget, b *dataset.Builder, res *Result) error {
	fixtures, err := schedule.Parse(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", t, err)
	}
	for _, f := range fixtures {
		if err := b.Add(schedule.Category, schedule.NewRecord(f, meta(t))); err != nil {
			res.Invalid++
			metrics.ObserveRecord(schedule.Category, false)
			continue
		}
		metrics.ObserveRecord(schedule.Category, true)
	}
	res.Fixtures = fixtures

	if r.cfg.Export != nil {
		path, err := r.cfg.Export.Fixtures(t.Slug, t.Season, t.CompetitionID, fixtures)
		if err != nil {
			return fmt.Errorf("export fixtures: %w", err)
		}
		res.Files = append(res.Files, path)
	}
	return nil
}

func (r *Runner) scrapeMatch(ctx context.Context, t targets.MatchTarget) (*Result, error) {
	s := &match.Scraper{Fetcher: r.cfg.Fetcher, BaseURL: r.cfg.BaseURL, Log: r.log}
	rec, err := s.Scrape(ctx, t)
	if err != nil {
		return nil, err
	}

	res := &Result{Target: t, Match: rec, Records: 1}
	if r.cfg.Sink != nil {
		if err := r.cfg.Sink.SaveMatch(ctx, rec); err != nil {
			return nil, fmt.Errorf("save match %s: %w", t.MatchID, err)
		}
	}
	if r.cfg.Export != nil {
		path, err := r.cfg.Export.Match(rec)
		if err != nil {
			return nil, fmt.Errorf("export match %s: %w", t.MatchID, err)
		}
		res.Files = append(res.Files, path)
	}
	return res, nil
}
