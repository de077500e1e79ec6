package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"voicecal/internal/faction"
	"voicecal/internal/memstore"
	"voicecal/internal/models"
)

type call struct {
	kind    string
	from    string
	to      string
	d       time.Duration
	faction string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []call
	dmErr error
}

func (n *fakeNotifier) record(c call, f *faction.Faction) {
	if f != nil {
		c.faction = f.Key
	}
	n.mu.Lock()
	n.calls = append(n.calls, c)
	n.mu.Unlock()
}

func (n *fakeNotifier) ClockIn(_ context.Context, _ Member, ch Channel, f *faction.Faction) models.NotifyResult {
	n.record(call{kind: "in", to: ch.ID}, f)
	return models.NotifyOK()
}

func (n *fakeNotifier) ClockOut(_ context.Context, _ Member, ch Channel, d time.Duration, f *faction.Faction) models.NotifyResult {
	n.record(call{kind: "out", from: ch.ID, d: d}, f)
	return models.NotifyOK()
}

func (n *fakeNotifier) Switch(_ context.Context, _ Member, from, to Channel, d time.Duration, f *faction.Faction) models.NotifyResult {
	n.record(call{kind: "switch", from: from.ID, to: to.ID, d: d}, f)
	return models.NotifyOK()
}

func (n *fakeNotifier) DirectMessage(_ context.Context, _ Member, d time.Duration, f *faction.Faction) models.NotifyResult {
	n.record(call{kind: "dm", d: d}, f)
	if n.dmErr != nil {
		return models.NotifyFailed(n.dmErr)
	}
	return models.NotifyOK()
}

func (n *fakeNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.calls))
	for i, c := range n.calls {
		out[i] = c.kind
	}
	return out
}

type failingTimes struct{}

func (failingTimes) IncrementUserTime(context.Context, string, time.Duration, time.Time) error {
	return errors.New("database unavailable")
}

func (failingTimes) IncrementFactionTime(context.Context, string, time.Duration) error {
	return errors.New("database unavailable")
}

var (
	base     = time.Date(2026, 5, 6, 18, 0, 0, 0, time.UTC)
	lobby    = Channel{ID: "c1", Name: "Lobby"}
	briefing = Channel{ID: "c2", Name: "Briefing"}
	resolver = faction.NewResolver([]string{"Alpha Team", "Bravo Team", "Charlie Team"})
)

func newTracker() (*Tracker, *memstore.Store, *MemorySessionStore, *fakeNotifier) {
	store := memstore.New()
	sessions := NewMemorySessionStore()
	notifier := &fakeNotifier{}
	return New(sessions, store, store, resolver, notifier), store, sessions, notifier
}

func member(roles ...string) Member {
	return Member{GuildID: "g1", UserID: "u1", Username: "tester", RoleNames: roles}
}

func factionTotal(t *testing.T, store *memstore.Store, key string) int64 {
	t.Helper()
	times, err := store.GetFactionTimes(context.Background())
	if err != nil {
		t.Fatalf("get faction times: %v", err)
	}
	for _, ft := range times {
		if ft.Faction == key {
			return ft.TotalMs
		}
	}
	return 0
}

func TestJoinLeaveFoldsDuration(t *testing.T) {
	ctx := context.Background()
	tr, store, sessions, notifier := newTracker()
	m := member("Bravo Team")

	for i, d := range []time.Duration{90 * time.Second, 30 * time.Minute, 0} {
		start := base.Add(time.Duration(i) * time.Hour)
		if err := tr.OnJoin(ctx, m, lobby, start); err != nil {
			t.Fatalf("join: %v", err)
		}
		got, err := tr.OnLeave(ctx, m, lobby, start.Add(d))
		if err != nil {
			t.Fatalf("leave: %v", err)
		}
		if got != d {
			t.Fatalf("Expected duration %v, got %v", d, got)
		}
	}

	ut, _ := store.GetUserTime(ctx, "u1")
	wantTotal := (90*time.Second + 30*time.Minute).Milliseconds()
	if ut.TotalMs != wantTotal {
		t.Errorf("Expected total %d, got %d", wantTotal, ut.TotalMs)
	}
	if ut.Sessions != 3 {
		t.Errorf("Expected 3 sessions, got %d", ut.Sessions)
	}
	if ut.LongestMs != (30 * time.Minute).Milliseconds() {
		t.Errorf("Expected longest 30m, got %d", ut.LongestMs)
	}
	if got := factionTotal(t, store, "Bravo_Team"); got != wantTotal {
		t.Errorf("Expected faction total %d, got %d", wantTotal, got)
	}
	if sessions.Len() != 0 {
		t.Errorf("Expected no open sessions, got %d", sessions.Len())
	}

	want := []string{"in", "out", "dm", "in", "out", "dm", "in", "out", "dm"}
	if got := notifier.kinds(); len(got) != len(want) {
		t.Fatalf("Expected notifications %v, got %v", want, got)
	}
}

func TestLeaveClampsNegativeDuration(t *testing.T) {
	ctx := context.Background()
	tr, store, _, _ := newTracker()
	m := member()

	if err := tr.OnJoin(ctx, m, lobby, base); err != nil {
		t.Fatalf("join: %v", err)
	}
	d, err := tr.OnLeave(ctx, m, lobby, base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if d != 0 {
		t.Fatalf("Expected clamped zero duration, got %v", d)
	}
	ut, _ := store.GetUserTime(ctx, "u1")
	if ut.TotalMs != 0 || ut.Sessions != 1 {
		t.Fatalf("Expected one empty session, got %+v", ut)
	}
}

func TestJoinSwitchLeaveSplitsWithoutGaps(t *testing.T) {
	ctx := context.Background()
	tr, store, sessions, notifier := newTracker()
	m := member("Alpha Team")

	if err := tr.OnJoin(ctx, m, lobby, base); err != nil {
		t.Fatalf("join: %v", err)
	}
	first, err := tr.OnSwitch(ctx, m, lobby, briefing, base.Add(20*time.Minute))
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if ch, ok := tr.OpenChannel(ctx, "g1", "u1"); !ok || ch != briefing.ID {
		t.Fatalf("Expected open session in %s, got %q %v", briefing.ID, ch, ok)
	}
	second, err := tr.OnLeave(ctx, m, briefing, base.Add(65*time.Minute))
	if err != nil {
		t.Fatalf("leave: %v", err)
	}

	if first != 20*time.Minute || second != 45*time.Minute {
		t.Fatalf("Expected segments 20m + 45m, got %v + %v", first, second)
	}

	ut, _ := store.GetUserTime(ctx, "u1")
	if ut.TotalMs != (65 * time.Minute).Milliseconds() {
		t.Errorf("Expected total 65m, got %dms", ut.TotalMs)
	}
	if ut.Sessions != 2 {
		t.Errorf("Expected 2 folded segments, got %d", ut.Sessions)
	}
	if got := factionTotal(t, store, "Alpha_Team"); got != (65 * time.Minute).Milliseconds() {
		t.Errorf("Expected faction total 65m, got %dms", got)
	}
	if sessions.Len() != 0 {
		t.Errorf("Expected no open sessions")
	}

	got := notifier.kinds()
	want := []string{"in", "switch", "out", "dm"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
	sw := notifier.calls[1]
	if sw.from != lobby.ID || sw.to != briefing.ID || sw.d != 20*time.Minute {
		t.Errorf("Unexpected switch announcement %+v", sw)
	}
}

func TestSwitchWithoutSessionStartsTracking(t *testing.T) {
	ctx := context.Background()
	tr, store, _, notifier := newTracker()
	m := member()

	d, err := tr.OnSwitch(ctx, m, lobby, briefing, base)
	if err != nil || d != 0 {
		t.Fatalf("Expected zero duration and no error, got %v %v", d, err)
	}
	if len(notifier.kinds()) != 0 {
		t.Errorf("Expected no announcement, got %v", notifier.kinds())
	}

	if _, err := tr.OnLeave(ctx, m, briefing, base.Add(time.Minute)); err != nil {
		t.Fatalf("leave: %v", err)
	}
	ut, _ := store.GetUserTime(ctx, "u1")
	if ut.TotalMs != 60000 {
		t.Errorf("Expected 60000ms, got %d", ut.TotalMs)
	}
}

func TestJoinTwiceKeepsOriginalStart(t *testing.T) {
	ctx := context.Background()
	tr, store, _, _ := newTracker()
	m := member()

	if err := tr.OnJoin(ctx, m, lobby, base); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := tr.OnJoin(ctx, m, lobby, base.Add(10*time.Minute)); !errors.Is(err, models.ErrSessionOpen) {
		t.Fatalf("Expected ErrSessionOpen, got %v", err)
	}
	if _, err := tr.OnLeave(ctx, m, lobby, base.Add(15*time.Minute)); err != nil {
		t.Fatalf("leave: %v", err)
	}
	ut, _ := store.GetUserTime(ctx, "u1")
	if ut.TotalMs != (15 * time.Minute).Milliseconds() {
		t.Errorf("Expected 15m measured from the first join, got %dms", ut.TotalMs)
	}
}

func TestLeaveWithoutSessionIsNotFound(t *testing.T) {
	ctx := context.Background()
	tr, store, _, notifier := newTracker()

	_, err := tr.OnLeave(ctx, member(), lobby, base)
	if !models.IsNotFound(err) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
	ut, _ := store.GetUserTime(ctx, "u1")
	if ut.Sessions != 0 {
		t.Errorf("Expected no state change, got %+v", ut)
	}
	if len(notifier.kinds()) != 0 {
		t.Errorf("Expected no announcements, got %v", notifier.kinds())
	}
}

func TestFactionsDisabled(t *testing.T) {
	ctx := context.Background()
	tr, store, _, notifier := newTracker()
	m := member("Alpha Team")
	_ = store.SetFactionsEnabled(ctx, "g1", false)

	_ = tr.OnJoin(ctx, m, lobby, base)
	if _, err := tr.OnLeave(ctx, m, lobby, base.Add(time.Minute)); err != nil {
		t.Fatalf("leave: %v", err)
	}

	ut, _ := store.GetUserTime(ctx, "u1")
	if ut.TotalMs != 60000 {
		t.Errorf("Expected user time to be tracked regardless, got %d", ut.TotalMs)
	}
	if got := factionTotal(t, store, "Alpha_Team"); got != 0 {
		t.Errorf("Expected no faction time, got %d", got)
	}
	for _, k := range notifier.kinds() {
		if k == "dm" {
			t.Errorf("Expected no DM while factions are disabled")
		}
	}
}

func TestFactionAttributionFirstInList(t *testing.T) {
	ctx := context.Background()
	tr, store, _, _ := newTracker()
	m := member("Charlie Team", "Bravo Team")

	for i := 0; i < 3; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		_ = tr.OnJoin(ctx, m, lobby, start)
		if _, err := tr.OnLeave(ctx, m, lobby, start.Add(time.Second)); err != nil {
			t.Fatalf("leave: %v", err)
		}
	}

	if got := factionTotal(t, store, "Bravo_Team"); got != 3000 {
		t.Errorf("Expected Bravo_Team 3000ms, got %d", got)
	}
	if got := factionTotal(t, store, "Charlie_Team"); got != 0 {
		t.Errorf("Expected Charlie_Team untouched, got %d", got)
	}
}

func TestIncrementFailureStillClosesSession(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	sessions := NewMemorySessionStore()
	notifier := &fakeNotifier{dmErr: errors.New("cannot send messages to this user")}
	tr := New(sessions, failingTimes{}, store, resolver, notifier)
	m := member("Alpha Team")

	_ = tr.OnJoin(ctx, m, lobby, base)
	d, err := tr.OnLeave(ctx, m, lobby, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("Expected persistence and DM failures to be swallowed, got %v", err)
	}
	if d != time.Minute {
		t.Errorf("Expected duration 1m, got %v", d)
	}
	if sessions.Len() != 0 {
		t.Errorf("Expected session to be discarded")
	}
}

func TestConcurrentLeavesSameFaction(t *testing.T) {
	ctx := context.Background()
	tr, store, _, _ := newTracker()

	members := make([]Member, 100)
	for i := range members {
		members[i] = Member{GuildID: "g1", UserID: fmt.Sprintf("u%d", i), Username: "m", RoleNames: []string{"Alpha Team"}}
		if err := tr.OnJoin(ctx, members[i], lobby, base); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}

	var wg sync.WaitGroup
	for _, m := range members {
		wg.Add(1)
		go func(m Member) {
			defer wg.Done()
			if _, err := tr.OnLeave(ctx, m, lobby, base.Add(time.Second)); err != nil {
				t.Errorf("leave: %v", err)
			}
		}(m)
	}
	wg.Wait()

	if got := factionTotal(t, store, "Alpha_Team"); got != 100000 {
		t.Fatalf("Expected 100000ms, got %d", got)
	}
}
