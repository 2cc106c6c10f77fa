package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"stravation/internal/config"
	"stravation/internal/service"
	"stravation/internal/storage"
	"stravation/internal/strava"
	"stravation/internal/syncer"
)

// command is one CLI subcommand.
type command struct {
	name    string
	usage   string
	require []config.Group
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{name: "env-check", usage: "report which settings are present", run: envCheck},
	{name: "cache-stats", usage: "show local cache row counts", run: cacheStats},
	{name: "reset-cache", usage: "clear seen markers, route states and checkpoints", run: resetCache},
	{
		name:    "sync-activities",
		usage:   "[-full] [-since YYYY-MM-DD] [-force] [-no-places] [-dry-run] import Strava activities",
		require: []config.Group{config.GroupNotion, config.GroupStrava, config.GroupActivities},
		run:     syncActivities,
	},
	{
		name:    "backfill",
		usage:   "<YYYY-MM-DD> [-force] [-no-places] import activities since a date",
		require: []config.Group{config.GroupNotion, config.GroupStrava, config.GroupActivities},
		run:     backfill,
	},
	{
		name:    "sync-routes",
		usage:   "[-force] [-dry-run] import saved Strava routes",
		require: []config.Group{config.GroupNotion, config.GroupStrava, config.GroupRoutes},
		run:     syncRoutes,
	},
	{
		name:    "routes-count",
		usage:   "[-sample N] count Strava routes",
		require: []config.Group{config.GroupStrava},
		run:     routesCount,
	},
	{
		name:    "routes-db-count",
		usage:   "count routes database pages tied to a Strava route",
		require: []config.Group{config.GroupNotion, config.GroupRoutes},
		run:     routesDBCount,
	},
	{
		name:    "routes-diff",
		usage:   "[-show] [-sample N] compare Strava routes with the routes database",
		require: []config.Group{config.GroupNotion, config.GroupStrava, config.GroupRoutes},
		run:     routesDiff,
	},
	{
		name:    "plan-push",
		usage:   "[-past-days N] [-next-days N] push planned sessions to Google Calendar",
		require: []config.Group{config.GroupNotion, config.GroupPlanning, config.GroupGoogle},
		run:     planPush,
	},
	{
		name:    "plan-to-gcal",
		usage:   "<monday YYYY-MM-DD> [-morning HH:MM] [-dry-run] push the standard training week",
		require: []config.Group{config.GroupGoogle},
		run:     planToGcal,
	},
	{
		name:    "list-cals",
		usage:   "list Google calendars and check the work calendar",
		require: []config.Group{config.GroupGoogle},
		run:     listCals,
	},
	{
		name:    "activities",
		usage:   "[-days N] list recent Strava activities",
		require: []config.Group{config.GroupStrava},
		run:     listActivities,
	},
	{
		name:    "activity-edit",
		usage:   "<id> [-name S] [-sport-type S] [-description S] edit a Strava activity",
		require: []config.Group{config.GroupStrava},
		run:     activityEdit,
	},
	{name: "gpx-list", usage: "list archived GPX files", run: gpxList},
	{name: "serve", usage: "run the local HTTP API", run: serve},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// parseInterspersed parses flags that may follow positional arguments.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) parseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), a.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return d, nil
}

func envExample(args []string) error {
	fs := newFlagSet("env-example")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := ".env.example"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	written, err := config.WriteExample(path, *force)
	if err != nil {
		return err
	}
	if !written {
		fmt.Printf("%s already exists (use -force to overwrite)\n", path)
		return nil
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func envCheck(_ context.Context, a *app, _ []string) error {
	items := a.cfg.Check()
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	missing := 0
	for _, it := range items {
		status := "ok"
		if !it.OK {
			status = "MISSING"
			if it.Required {
				missing++
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.Key, status, it.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if missing > 0 {
		return fmt.Errorf("%d required setting(s) missing", missing)
	}
	return nil
}

func cacheStats(ctx context.Context, a *app, _ []string) error {
	db, err := a.cache()
	if err != nil {
		return err
	}
	st, err := storage.Stats(ctx, db)
	if err != nil {
		return err
	}
	return a.printJSON(st)
}

func resetCache(ctx context.Context, a *app, _ []string) error {
	db, err := a.cache()
	if err != nil {
		return err
	}
	removed, err := service.NewCacheService(db, nil).Reset(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(removed)
}

func printResult(a *app, kind string, res syncer.Result) error {
	return a.printJSON(struct {
		Kind string `json:"kind"`
		syncer.Result
	}{Kind: kind, Result: res})
}

func runActivities(ctx context.Context, a *app, opts syncer.ActivityOptions) error {
	svc, err := a.syncService(ctx)
	if err != nil {
		return err
	}
	res, err := svc.SyncActivities(ctx, opts)
	if err != nil {
		return err
	}
	return printResult(a, service.KindActivities, res)
}

func syncActivities(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("sync-activities")
	full := fs.Bool("full", false, "ignore the checkpoint")
	since := fs.String("since", "", "import from this day (YYYY-MM-DD)")
	force := fs.Bool("force", false, "forget seen activities first")
	noPlaces := fs.Bool("no-places", false, "skip Départ/Arrivée relations")
	dryRun := fs.Bool("dry-run", false, "log what would be written")
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts := syncer.ActivityOptions{Full: *full, Force: *force, Places: !*noPlaces, DryRun: *dryRun}
	if *since != "" {
		d, err := a.parseDate(*since)
		if err != nil {
			return err
		}
		opts.Since = d
	}
	return runActivities(ctx, a, opts)
}

func backfill(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("backfill")
	force := fs.Bool("force", false, "forget seen activities first")
	noPlaces := fs.Bool("no-places", false, "skip Départ/Arrivée relations")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return errors.New("usage: backfill <YYYY-MM-DD> [-force] [-no-places]")
	}
	since, err := a.parseDate(pos[0])
	if err != nil {
		return err
	}
	return runActivities(ctx, a, syncer.ActivityOptions{Since: since, Force: *force, Places: !*noPlaces})
}

func syncRoutes(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("sync-routes")
	force := fs.Bool("force", false, "resend every route")
	dryRun := fs.Bool("dry-run", false, "log what would be written")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, err := a.syncService(ctx)
	if err != nil {
		return err
	}
	res, err := svc.SyncRoutes(ctx, syncer.RouteOptions{Force: *force, DryRun: *dryRun})
	if err != nil {
		return err
	}
	return printResult(a, service.KindRoutes, res)
}

func routesCount(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("routes-count")
	sample := fs.Int("sample", 0, "print up to N route names")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rs := syncer.NewRouteSyncer(syncer.RouteConfig{Source: a.stravaClient(ctx)})
	count, err := rs.Count(ctx, *sample)
	if err != nil {
		return err
	}
	return a.printJSON(count)
}

func routesDBCount(ctx context.Context, a *app, _ []string) error {
	rs := syncer.NewRouteSyncer(syncer.RouteConfig{Pages: a.notionClient(), DatabaseID: a.cfg.Notion.RoutesDB})
	index, err := rs.NotionIndex(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d\n", len(index))
	return nil
}

func routesDiff(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("routes-diff")
	show := fs.Bool("show", false, "list the differing routes")
	sample := fs.Int("sample", 20, "cap each list at N entries with -show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rs := syncer.NewRouteSyncer(syncer.RouteConfig{
		Source:     a.stravaClient(ctx),
		Pages:      a.notionClient(),
		DatabaseID: a.cfg.Notion.RoutesDB,
	})
	diff, err := rs.Diff(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "strava: %d\tnotion: %d\tmissing: %d\torphans: %d\n",
		diff.StravaTotal, diff.NotionTotal, len(diff.Missing), len(diff.Orphans))
	if !*show {
		return nil
	}
	printEntries := func(title string, entries []syncer.DiffEntry) {
		fmt.Fprintf(a.out, "%s:\n", title)
		for i, e := range entries {
			if *sample > 0 && i >= *sample {
				fmt.Fprintf(a.out, "  ... %d more\n", len(entries)-i)
				return
			}
			fmt.Fprintf(a.out, "  %s  %s\n", e.ID, e.Label)
		}
	}
	printEntries("missing in notion", diff.Missing)
	printEntries("orphans in notion", diff.Orphans)
	return nil
}

func planPush(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("plan-push")
	past := fs.Int("past-days", -1, "window start, in days from today")
	next := fs.Int("next-days", 30, "window end, in days from today")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, err := a.syncService(ctx)
	if err != nil {
		return err
	}
	res, err := svc.PushPlans(ctx, *past, *next)
	if err != nil {
		return err
	}
	return printResult(a, service.KindPlans, res)
}

func planToGcal(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("plan-to-gcal")
	morning := fs.String("morning", a.cfg.Core.MorningTime, "time of the daily reminder (HH:MM)")
	dryRun := fs.Bool("dry-run", false, "print the week without sending it")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return errors.New("usage: plan-to-gcal <monday YYYY-MM-DD> [-morning HH:MM] [-dry-run]")
	}
	monday, err := a.parseDate(pos[0])
	if err != nil {
		return err
	}
	pusher, err := a.planPusher(ctx)
	if err != nil {
		return err
	}
	week, res, err := pusher.WeekTemplate(ctx, monday, *morning, *dryRun)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, ts := range week {
		if ts.IsRest() {
			fmt.Fprintf(tw, "%s\t%s\t\t\n", ts.Day.Format("Mon 2006-01-02"), ts.Title)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d min\n", ts.Day.Format("Mon 2006-01-02"), ts.Title, ts.StartHM, ts.Minutes)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if *dryRun {
		return nil
	}
	return printResult(a, "week_template", res)
}

func listCals(ctx context.Context, a *app, _ []string) error {
	cal, err := a.calendarClient(ctx)
	if err != nil {
		return err
	}
	cals, err := cal.ListCalendars(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUMMARY\tACCESS\tPRIMARY\tID")
	for _, c := range cals {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", c.Summary, c.AccessRole, c.Primary, c.ID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if id := a.cfg.Google.WorkCalendarID; id != "" {
		if _, err := cal.AssertCanWrite(ctx, id); err != nil {
			fmt.Fprintf(a.out, "work calendar: %v\n", err)
		} else {
			fmt.Fprintf(a.out, "work calendar: %s is writable\n", id)
		}
	}
	return nil
}

func listActivities(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("activities")
	days := fs.Int("days", 7, "look back N days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	acts, err := service.NewActivityService(a.stravaClient(ctx)).Recent(ctx, *days)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSPORT\tKM\tNAME")
	for _, act := range acts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%s\n", act.ID, act.StartDate.In(a.loc).Format(time.DateOnly), act.Sport(), act.Distance/1000, act.Name)
	}
	return tw.Flush()
}

func activityEdit(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("activity-edit")
	var upd strava.ActivityUpdate
	fs.Func("name", "new activity name", func(s string) error { upd.Name = &s; return nil })
	fs.Func("sport-type", "new sport type (e.g. TrailRun)", func(s string) error { upd.SportType = &s; return nil })
	fs.Func("description", "new description", func(s string) error { upd.Description = &s; return nil })
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return errors.New("usage: activity-edit <id> [-name S] [-sport-type S] [-description S]")
	}
	id, err := strconv.ParseInt(pos[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid activity id %q", pos[0])
	}
	act, err := service.NewActivityService(a.stravaClient(ctx)).Update(ctx, id, upd)
	if err != nil {
		return err
	}
	return a.printJSON(act)
}

func gpxList(ctx context.Context, a *app, _ []string) error {
	files, err := a.archive().Scan(ctx)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(a.out, f.RelPath)
	}
	fmt.Fprintf(a.out, "%d file(s) in %s\n", len(files), a.cfg.Tuning.GPXDir)
	return nil
}
