package jobs

import (
	"context"
	"log"
	"sort"
	"time"

	"voicecal/internal/faction"
	"voicecal/internal/models"
)

// Daily winner award
const (
	DailyWinnerPoints    = 25
	DailyWinnerVictories = 1
)

// FactionStore reads and resets faction totals and keeps the points table
type FactionStore interface {
	GetFactionTimes(ctx context.Context) ([]models.FactionTime, error)
	ResetFactionTimes(ctx context.Context) error
	IncrementFactionPoints(ctx context.Context, key string, points, victories, activities int64) error
	GetFactionPoints(ctx context.Context) ([]models.FactionPoints, error)
}

// Standing is one line of the faction leaderboard
type Standing struct {
	Faction faction.Faction
	Total   time.Duration
}

// Announcer posts the daily leaderboard
type Announcer interface {
	AnnounceLeaderboard(ctx context.Context, standings []Standing) models.NotifyResult
}

// CalendarPublisher re-renders every guild calendar
type CalendarPublisher interface {
	PublishAll(ctx context.Context) error
}

// FactionRollover posts the daily faction leaderboard and starts a new day
type FactionRollover struct {
	times     FactionStore
	factions  *faction.Resolver
	announcer Announcer
}

// NewFactionRollover creates the daily rollover job
func NewFactionRollover(times FactionStore, factions *faction.Resolver, announcer Announcer) *FactionRollover {
	return &FactionRollover{times: times, factions: factions, announcer: announcer}
}

// Standings returns every configured faction plus any stored one, highest total first
func (f *FactionRollover) Standings(ctx context.Context) ([]Standing, error) {
	stored, err := f.times.GetFactionTimes(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int64, len(stored))
	for _, ft := range stored {
		totals[ft.Faction] = ft.TotalMs
	}

	var standings []Standing
	seen := make(map[string]bool)
	for _, fac := range f.factions.Factions() {
		standings = append(standings, Standing{Faction: fac, Total: time.Duration(totals[fac.Key]) * time.Millisecond})
		seen[fac.Key] = true
	}
	// Totals for factions that were removed from the configuration still show up
	for _, ft := range stored {
		if seen[ft.Faction] {
			continue
		}
		standings = append(standings, Standing{
			Faction: faction.Faction{Name: faction.NameFor(ft.Faction), Key: ft.Faction},
			Total:   time.Duration(ft.TotalMs) * time.Millisecond,
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Total > standings[j].Total
	})
	return standings, nil
}

// PointStandings returns every configured faction plus any stored one, most points first
func (f *FactionRollover) PointStandings(ctx context.Context) ([]models.FactionPoints, error) {
	stored, err := f.times.GetFactionPoints(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(stored))
	for _, fp := range stored {
		seen[fp.Faction] = true
	}
	for _, fac := range f.factions.Factions() {
		if !seen[fac.Key] {
			stored = append(stored, models.FactionPoints{Faction: fac.Key})
		}
	}

	sort.SliceStable(stored, func(i, j int) bool {
		return stored[i].Points > stored[j].Points
	})
	return stored, nil
}

// DailyWinner returns the faction with the most time, if one strictly leads
func DailyWinner(standings []Standing) (faction.Faction, bool) {
	if len(standings) == 0 || standings[0].Total <= 0 {
		return faction.Faction{}, false
	}
	if len(standings) > 1 && standings[1].Total == standings[0].Total {
		return faction.Faction{}, false
	}
	return standings[0].Faction, true
}

// Run announces the standings, awards the day's winner and then zeroes every faction total.
// The reset happens even when the announcement fails.
func (f *FactionRollover) Run(ctx context.Context, _ time.Time) {
	standings, err := f.Standings(ctx)
	if err != nil {
		log.Printf("❌ Error reading faction times: %v", err)
	} else {
		if res := f.announcer.AnnounceLeaderboard(ctx, standings); res.Err != nil {
			log.Printf("⚠️ Could not send daily leaderboard: %v", res.Err)
		} else if res.Delivered {
			log.Println("📊 Daily leaderboard sent")
		}

		if winner, ok := DailyWinner(standings); ok {
			if err := f.times.IncrementFactionPoints(ctx, winner.Key, DailyWinnerPoints, DailyWinnerVictories, 0); err != nil {
				log.Printf("❌ Error awarding daily points to %s: %v", winner.Name, err)
			} else {
				log.Printf("🏆 %s won the day (+%d points)", winner.Name, DailyWinnerPoints)
			}
		}
	}

	if err := f.times.ResetFactionTimes(ctx); err != nil {
		log.Printf("❌ Error resetting faction times: %v", err)
		return
	}
	log.Println("🔄 Faction times reset")
}

// CalendarRefresh returns the weekly job that re-renders every calendar
func CalendarRefresh(publisher CalendarPublisher) func(ctx context.Context, now time.Time) {
	return func(ctx context.Context, _ time.Time) {
		log.Println("📅 Starting weekly calendar update...")
		if err := publisher.PublishAll(ctx); err != nil {
			log.Printf("❌ Error updating calendars: %v", err)
			return
		}
		log.Println("📅 Weekly calendar update complete")
	}
}
