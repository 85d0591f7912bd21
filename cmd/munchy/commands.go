package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	redisAdapter "munchykit/adapters/redis"
	sqlxAdapter "munchykit/adapters/sqlx"
	"munchykit/analytics"
	"munchykit/core"
	"munchykit/engine"
)

var winTypes = map[string]core.WinType{
	"skip":    core.WinSkip,
	"swap":    core.WinSwap,
	"gave-in": core.WinGaveIn,
}

type TrackCmd struct {
	Item        string   `arg:"" help:"What you resisted (or gave in to)."`
	Type        string   `help:"Kind of win." short:"t" enum:"skip,swap,gave-in" default:"skip"`
	Category    string   `help:"Category of the item." short:"c" default:"Other"`
	Replacement string   `help:"What you had instead (swap only)." short:"r"`
	Cost        *float64 `help:"Price of the item (default: estimate)."`
	Calories    *float64 `help:"Calories avoided (default: estimate)."`
	Message     string   `help:"Note stored with the win."`
}

func (c *TrackCmd) Run(ctx *Context) error {
	out, err := ctx.Service.LogWin(context.Background(), ctx.User, core.WinDraft{
		Item:          c.Item,
		Category:      c.Category,
		Replacement:   c.Replacement,
		Type:          winTypes[c.Type],
		Cost:          c.Cost,
		Calories:      c.Calories,
		MascotMessage: c.Message,
	})
	if err != nil {
		return err
	}

	win := out.Snapshot.Wins[0]
	p := out.Snapshot.Profile
	switch win.Type {
	case core.WinGaveIn:
		fmt.Fprintf(ctx.Out, "Gave in to %s: spent $%.2f. Tomorrow is a new day.\n", win.Item, -win.MoneySaved)
	case core.WinSwap:
		fmt.Fprintf(ctx.Out, "Swapped %s for %s: saved $%.2f and %.0f kcal. %s\n",
			win.Item, orDefault(win.Replacement, "something better"), win.MoneySaved, win.CaloriesSaved, win.MascotMessage)
	default:
		fmt.Fprintf(ctx.Out, "Skipped %s: saved $%.2f and %.0f kcal. %s\n",
			win.Item, win.MoneySaved, win.CaloriesSaved, win.MascotMessage)
	}
	fmt.Fprintf(ctx.Out, "Streak: %d %s | Total saved: $%.2f\n", p.Streak, plural(p.Streak, "day", "days"), p.TotalMoneySaved)
	printHighlights(ctx.Out, out.Events)
	return nil
}

type WeightCmd struct {
	Weight float64 `arg:"" help:"Weight in lbs."`
	Note   string  `help:"Optional note." short:"n"`
}

func (c *WeightCmd) Run(ctx *Context) error {
	out, err := ctx.Service.LogWeight(context.Background(), ctx.User, c.Weight, c.Note)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Logged %.1f lbs\n", c.Weight)
	wp := analytics.ProgressOf(out.Snapshot.Profile, out.Snapshot.Weights)
	if wp.Start > 0 {
		fmt.Fprintf(ctx.Out, "Lost %.1f lbs since %.1f", wp.Lost, wp.Start)
		if wp.Goal > 0 {
			fmt.Fprintf(ctx.Out, ", %.1f to go", wp.Remaining)
		}
		fmt.Fprintln(ctx.Out)
	}
	return nil
}

type ChallengeCmd struct {
	Add      ChallengeAddCmd      `cmd:"" help:"Add a custom challenge."`
	Progress ChallengeProgressCmd `cmd:"" help:"Record one step toward a challenge."`
	List     ChallengeListCmd     `cmd:"" help:"List challenges." default:"1"`
}

type ChallengeAddCmd struct {
	Title  string  `arg:"" help:"Challenge title."`
	Target float64 `help:"Goal amount." default:"5"`
	Unit   string  `help:"Unit of progress." enum:"times,dollars,days" default:"times"`
}

func (c *ChallengeAddCmd) Run(ctx *Context) error {
	out, err := ctx.Service.AddChallenge(context.Background(), ctx.User, core.ChallengeDraft{
		Title:  c.Title,
		Target: c.Target,
		Unit:   core.ChallengeUnit(c.Unit),
	})
	if err != nil {
		return err
	}
	cs := out.Snapshot.Profile.CustomChallenges
	added := cs[len(cs)-1]
	fmt.Fprintf(ctx.Out, "Added challenge %s: %s (0/%g %s)\n", shortID(added.ID), added.Title, added.Target, added.Unit)
	return nil
}

type ChallengeProgressCmd struct {
	ID string `arg:"" help:"Challenge id or a unique prefix of it."`
}

func (c *ChallengeProgressCmd) Run(ctx *Context) error {
	bg := context.Background()
	snap, err := ctx.Service.Snapshot(bg, ctx.User)
	if err != nil {
		return err
	}
	id, err := resolveChallenge(snap.Profile.CustomChallenges, c.ID)
	if err != nil {
		return err
	}
	out, err := ctx.Service.ProgressChallenge(bg, ctx.User, id)
	if err != nil {
		return err
	}
	ch, _ := out.Snapshot.Profile.FindChallenge(id)
	fmt.Fprintf(ctx.Out, "%s: %g/%g %s\n", ch.Title, ch.Current, ch.Target, ch.Unit)
	printHighlights(ctx.Out, out.Events)
	return nil
}

// resolveChallenge accepts a full id or a prefix matching exactly one
// challenge. Unknown refs are passed through so the service reports them.
func resolveChallenge(cs []core.CustomChallenge, ref string) (string, error) {
	var matches []string
	for _, c := range cs {
		if c.ID == ref {
			return ref, nil
		}
		if ref != "" && strings.HasPrefix(c.ID, ref) {
			matches = append(matches, c.ID)
		}
	}
	switch len(matches) {
	case 0:
		return ref, nil
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("challenge id %q is ambiguous (%d matches)", ref, len(matches))
	}
}

type ChallengeListCmd struct{}

func (c *ChallengeListCmd) Run(ctx *Context) error {
	snap, err := ctx.Service.Snapshot(context.Background(), ctx.User)
	if err != nil {
		return err
	}
	cs := snap.Profile.CustomChallenges
	if len(cs) == 0 {
		fmt.Fprintln(ctx.Out, "No challenges yet.")
		return nil
	}
	for _, ch := range cs {
		mark := " "
		if ch.Completed() {
			mark = "x"
		}
		fmt.Fprintf(ctx.Out, "[%s] %s  %s  %g/%g %s\n", mark, shortID(ch.ID), ch.Title, ch.Current, ch.Target, ch.Unit)
	}
	return nil
}

type OnboardCmd struct {
	Name          string   `help:"What Munchy should call you."`
	CurrentWeight float64  `help:"Current weight in lbs."`
	GoalWeight    float64  `help:"Goal weight in lbs."`
	Motivation    []string `help:"What motivates you (comma separated)."`
	Vice          []string `help:"Biggest temptations (comma separated)."`
	Water         *float64 `help:"Glasses of water per day."`
	Activity      string   `help:"Activity level."`
	Cravings      []string `help:"When cravings hit (comma separated)."`
	Cooking       string   `help:"How often you cook at home."`
}

// answers keeps only the questions that were given on the command line.
func (c *OnboardCmd) answers() core.OnboardingAnswers {
	a := core.OnboardingAnswers{}
	if c.Name != "" {
		a[core.QuestionName] = core.TextAnswer(c.Name)
	}
	if c.CurrentWeight > 0 {
		a[core.QuestionCurrentWeight] = core.NumberAnswer(c.CurrentWeight)
	}
	if c.GoalWeight > 0 {
		a[core.QuestionGoalWeight] = core.NumberAnswer(c.GoalWeight)
	}
	if len(c.Motivation) > 0 {
		a[core.QuestionMotivation] = core.MultiSelectAnswer(c.Motivation...)
	}
	if len(c.Vice) > 0 {
		a[core.QuestionVice] = core.MultiSelectAnswer(c.Vice...)
	}
	if c.Water != nil {
		a[core.QuestionWater] = core.NumberAnswer(*c.Water)
	}
	if c.Activity != "" {
		a[core.QuestionActivity] = core.SelectAnswer(c.Activity)
	}
	if len(c.Cravings) > 0 {
		a[core.QuestionCravings] = core.MultiSelectAnswer(c.Cravings...)
	}
	if c.Cooking != "" {
		a[core.QuestionCooking] = core.SelectAnswer(c.Cooking)
	}
	return a
}

func (c *OnboardCmd) Run(ctx *Context) error {
	out, err := ctx.Service.CompleteOnboarding(context.Background(), ctx.User, c.answers())
	if err != nil {
		return err
	}
	p := out.Snapshot.Profile
	fmt.Fprintf(ctx.Out, "Welcome, %s!\n", p.Name)
	fmt.Fprintf(ctx.Out, "Daily focus: %s\n", core.DailyFocus(p))
	return nil
}

type ProfileCmd struct {
	Name   *string `help:"New display name."`
	Avatar *string `help:"Avatar URL or emoji."`
}

func (c *ProfileCmd) Run(ctx *Context) error {
	if c.Name == nil && c.Avatar == nil {
		return fmt.Errorf("nothing to change: pass --name or --avatar")
	}
	out, err := ctx.Service.UpdateProfile(context.Background(), ctx.User, core.ProfilePatch{Name: c.Name, Avatar: c.Avatar})
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Profile updated: %s\n", out.Snapshot.Profile.Name)
	return nil
}

type StatusCmd struct {
	JSON bool `help:"Print the summary as JSON."`
}

func (c *StatusCmd) Run(ctx *Context) error {
	snap, err := ctx.Service.Snapshot(context.Background(), ctx.User)
	if err != nil {
		return err
	}
	stats := analytics.Summarize(snap)
	if c.JSON {
		enc := json.NewEncoder(ctx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	name := orDefault(snap.Profile.Name, string(ctx.User))
	fmt.Fprintf(ctx.Out, "%s: %d %s streak\n", name, stats.Streak, plural(stats.Streak, "day", "days"))
	fmt.Fprintf(ctx.Out, "Saved $%.2f and %.0f kcal\n", stats.TotalMoneySaved, stats.TotalCaloriesSaved)
	fmt.Fprintf(ctx.Out, "Wins: %d skipped, %d swapped, %d gave in\n",
		stats.WinCounts[core.WinSkip], stats.WinCounts[core.WinSwap], stats.WinCounts[core.WinGaveIn])
	for _, cs := range stats.Categories {
		fmt.Fprintf(ctx.Out, "  %-14s %3d (%.0f%%)\n", cs.Category, cs.Count, cs.Percent)
	}
	if stats.Weight.Entries > 0 {
		fmt.Fprintf(ctx.Out, "Weight: %.1f lbs", stats.Weight.Current)
		if stats.Weight.Goal > 0 {
			fmt.Fprintf(ctx.Out, " (%.1f to goal)", stats.Weight.Remaining)
		}
		fmt.Fprintln(ctx.Out)
	}
	fmt.Fprintf(ctx.Out, "Badges: %d/%d\n", len(stats.Badges), len(core.Catalog()))
	fmt.Fprintf(ctx.Out, "Daily focus: %s\n", stats.DailyFocus)
	return nil
}

type BadgesCmd struct{}

func (c *BadgesCmd) Run(ctx *Context) error {
	set, err := ctx.Service.Badges(context.Background(), ctx.User)
	if err != nil {
		return err
	}
	for _, b := range core.Catalog() {
		state := "locked"
		if set.Has(b.ID) {
			state = "unlocked"
		}
		fmt.Fprintf(ctx.Out, "%s %-14s %-14s %s\n", b.Icon, b.Title, b.Reward, state)
	}
	return nil
}

type ExportCmd struct {
	To            string `arg:"" help:"Destination kind." enum:"redis,sql"`
	RedisAddr     string `help:"Redis address." default:"localhost:6379" env:"MUNCHY_STORAGE_REDIS_ADDR"`
	RedisPassword string `help:"Redis password." env:"MUNCHY_STORAGE_REDIS_PASSWORD"`
	SQLDriver     string `help:"SQL driver." enum:"postgres,mysql,sqlite" default:"sqlite" env:"MUNCHY_STORAGE_SQL_DRIVER"`
	DSN           string `help:"SQL data source name (default: driver default)." env:"MUNCHY_STORAGE_SQL_DSN"`
}

// exportTarget is a gateway that can replace a user's data atomically.
type exportTarget interface {
	engine.Storage
	SaveSnapshot(ctx context.Context, user core.UserID, snap core.Snapshot) error
	Close() error
}

func (c *ExportCmd) open() (exportTarget, error) {
	switch c.To {
	case "redis":
		cfg := redisAdapter.DefaultConfig()
		cfg.Addr = c.RedisAddr
		cfg.Password = c.RedisPassword
		return redisAdapter.New(cfg)
	case "sql":
		cfg := sqlxAdapter.DefaultConfig(sqlxAdapter.Driver(c.SQLDriver))
		if c.DSN != "" {
			cfg.DSN = c.DSN
		}
		return sqlxAdapter.New(cfg)
	default:
		return nil, fmt.Errorf("unknown export destination %q", c.To)
	}
}

func (c *ExportCmd) Run(ctx *Context) error {
	bg := context.Background()
	snap, err := ctx.Service.Snapshot(bg, ctx.User)
	if err != nil {
		return err
	}
	dst, err := c.open()
	if err != nil {
		return err
	}
	defer func() {
		if err := dst.Close(); err != nil {
			ctx.Logger.Warn("closing export destination", "error", err)
		}
	}()

	if err := dst.SaveSnapshot(bg, ctx.User, snap); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(ctx.Out, "Exported %d wins and %d weigh-ins for %s to %s\n", len(snap.Wins), len(snap.Weights), ctx.User, c.To)
	return nil
}

func printHighlights(w io.Writer, events []core.Event) {
	for _, e := range events {
		switch e.Type {
		case core.EventBadgeUnlocked:
			for _, b := range core.Catalog() {
				if b.ID == e.Badge {
					fmt.Fprintf(w, "Badge unlocked: %s %s (%s)\n", b.Icon, b.Title, b.Reward)
				}
			}
		case core.EventChallengeCompleted:
			if e.Challenge != nil {
				fmt.Fprintf(w, "Challenge complete: %s\n", e.Challenge.Title)
			}
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
