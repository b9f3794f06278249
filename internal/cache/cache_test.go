package cache

import (
	"testing"
	"time"

	"github.com/forgefit/brain/internal/knowledge"
)

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

func (c *mockClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager() (*Manager, *mockClock) {
	clock := &mockClock{now: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}
	return NewWithClock(clock), clock
}

func TestGetSetRoundTrip(t *testing.T) {
	m, _ := newTestManager()
	key := Key{UserID: "u1", Forge: knowledge.ForgeTraining, Subkey: "summary"}

	if _, ok := m.Get(key); ok {
		t.Error("Get on empty cache reported a hit")
	}

	m.Set(key, "payload", time.Minute)
	v, ok := m.Get(key)
	if !ok || v != "payload" {
		t.Errorf("Get = (%v, %v), want (payload, true)", v, ok)
	}
}

func TestExpiryIsLazy(t *testing.T) {
	m, clock := newTestManager()
	key := Key{UserID: "u1", Forge: knowledge.ForgeToday, Subkey: "summary"}
	m.Set(key, 42, 2*time.Minute)

	clock.advance(2 * time.Minute)
	if _, ok := m.Get(key); !ok {
		t.Error("entry expired exactly at TTL; staleness is strict")
	}

	clock.advance(time.Second)
	if _, ok := m.Get(key); ok {
		t.Error("expired entry still served")
	}

	// The read evicted it: stats no longer count it.
	if s := m.GetStats(); s.Total != 0 {
		t.Errorf("Total = %d after lazy eviction, want 0", s.Total)
	}
}

func TestSetResetsTTL(t *testing.T) {
	m, clock := newTestManager()
	key := Key{UserID: "u1", Forge: knowledge.ForgeTraining, Subkey: "summary"}
	m.Set(key, 1, time.Minute)

	clock.advance(50 * time.Second)
	m.Set(key, 2, time.Minute)

	clock.advance(30 * time.Second)
	v, ok := m.Get(key)
	if !ok || v != 2 {
		t.Errorf("Get = (%v, %v), want (2, true) after overwrite", v, ok)
	}
}

func TestInvalidateForgeScoped(t *testing.T) {
	m, _ := newTestManager()
	m.Set(Key{UserID: "u1", Forge: knowledge.ForgeNutrition, Subkey: "summary"}, 1, time.Hour)
	m.Set(Key{UserID: "u2", Forge: knowledge.ForgeNutrition, Subkey: "summary"}, 2, time.Hour)
	m.Set(Key{UserID: "u1", Forge: knowledge.ForgeTraining, Subkey: "summary"}, 3, time.Hour)

	if n := m.InvalidateForge(knowledge.ForgeNutrition); n != 2 {
		t.Errorf("InvalidateForge = %d, want 2", n)
	}

	if _, ok := m.Get(Key{UserID: "u1", Forge: knowledge.ForgeNutrition, Subkey: "summary"}); ok {
		t.Error("nutrition entry survived invalidation")
	}
	// Other forges are untouched.
	if _, ok := m.Get(Key{UserID: "u1", Forge: knowledge.ForgeTraining, Subkey: "summary"}); !ok {
		t.Error("training entry evicted by nutrition invalidation")
	}

	if n := m.InvalidateForge(knowledge.ForgeNutrition); n != 0 {
		t.Errorf("second InvalidateForge = %d, want 0", n)
	}
}

func TestInvalidateForgeSparesSnapshots(t *testing.T) {
	m, _ := newTestManager()
	m.SetSnapshot("u1", &knowledge.UserKnowledge{UserID: "u1"})
	m.Set(Key{UserID: "u1", Forge: knowledge.ForgeTraining, Subkey: "summary"}, 1, time.Hour)

	m.InvalidateForge(knowledge.ForgeTraining)

	if _, ok := m.GetSnapshot("u1"); !ok {
		t.Error("snapshot evicted by forge-scoped invalidation")
	}
}

func TestInvalidateUser(t *testing.T) {
	m, _ := newTestManager()
	m.Set(Key{UserID: "u1", Forge: knowledge.ForgeTraining, Subkey: "summary"}, 1, time.Hour)
	m.Set(Key{UserID: "u1", Forge: knowledge.ForgeNutrition, Subkey: "summary"}, 2, time.Hour)
	m.SetSnapshot("u1", &knowledge.UserKnowledge{UserID: "u1"})
	m.Set(Key{UserID: "u2", Forge: knowledge.ForgeTraining, Subkey: "summary"}, 3, time.Hour)

	if n := m.InvalidateUser("u1"); n != 3 {
		t.Errorf("InvalidateUser = %d, want 3", n)
	}
	if _, ok := m.Get(Key{UserID: "u2", Forge: knowledge.ForgeTraining, Subkey: "summary"}); !ok {
		t.Error("other user's entry evicted")
	}
}

func TestClear(t *testing.T) {
	m, _ := newTestManager()
	m.Set(Key{UserID: "u1", Forge: knowledge.ForgeTraining, Subkey: "summary"}, 1, time.Hour)
	m.Clear()
	if s := m.GetStats(); s.Total != 0 {
		t.Errorf("Total = %d after Clear, want 0", s.Total)
	}
	// Forge index rebuilt cleanly: set and invalidate still work.
	m.Set(Key{UserID: "u1", Forge: knowledge.ForgeTraining, Subkey: "summary"}, 1, time.Hour)
	if n := m.InvalidateForge(knowledge.ForgeTraining); n != 1 {
		t.Errorf("InvalidateForge after Clear = %d, want 1", n)
	}
}

func TestStatsAndHealth(t *testing.T) {
	m, clock := newTestManager()
	if !m.IsHealthy() {
		t.Error("empty cache should be healthy")
	}

	m.Set(Key{UserID: "u1", Forge: knowledge.ForgeTraining, Subkey: "a"}, 1, time.Minute)
	m.Set(Key{UserID: "u1", Forge: knowledge.ForgeTraining, Subkey: "b"}, 2, time.Hour)

	clock.advance(2 * time.Minute)
	s := m.GetStats()
	if s.Total != 2 || s.Fresh != 1 || s.Expired != 1 {
		t.Errorf("Stats = %+v, want total 2 fresh 1 expired 1", s)
	}
	if !m.IsHealthy() {
		t.Error("cache with a fresh entry should be healthy")
	}

	clock.advance(time.Hour)
	if m.IsHealthy() {
		t.Error("cache holding only expired entries should be unhealthy")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m, clock := newTestManager()
	snap := &knowledge.UserKnowledge{UserID: "u1"}
	m.SetSnapshot("u1", snap)

	got, ok := m.GetSnapshot("u1")
	if !ok || got != snap {
		t.Errorf("GetSnapshot = (%v, %v), want same pointer", got, ok)
	}

	clock.advance(SnapshotTTL + time.Second)
	if _, ok := m.GetSnapshot("u1"); ok {
		t.Error("snapshot served past its TTL")
	}
}

func TestGetSnapshotCorruptEntry(t *testing.T) {
	m, _ := newTestManager()
	m.Set(snapshotKey("u1"), "not a snapshot", SnapshotTTL)

	if _, ok := m.GetSnapshot("u1"); ok {
		t.Error("corrupt entry reported as a snapshot hit")
	}
	// The corrupt entry was dropped, not left to poison future reads.
	if s := m.GetStats(); s.Total != 0 {
		t.Errorf("Total = %d, want 0 after corrupt-entry drop", s.Total)
	}
}

func TestForgeDataLivesUnderRuleTTL(t *testing.T) {
	m, clock := newTestManager()
	at := clock.now
	m.SetForgeData("u1", knowledge.ForgeEquipment, knowledge.EquipmentKnowledge{Items: []string{"kettlebell"}}, at)
	m.SetForgeData("u1", knowledge.ForgeToday, knowledge.TodayKnowledge{KcalSoFar: 850}, at)

	// Past the today TTL but inside the equipment TTL.
	clock.advance(RuleFor(knowledge.ForgeToday).TTL + time.Second)
	if _, _, ok := m.GetForgeData("u1", knowledge.ForgeToday); ok {
		t.Error("today slice survived its TTL")
	}
	data, got, ok := m.GetForgeData("u1", knowledge.ForgeEquipment)
	if !ok {
		t.Fatal("equipment slice expired before its TTL")
	}
	if !got.Equal(at) {
		t.Errorf("collectedAt = %v, want %v", got, at)
	}
	if eq := data.(knowledge.EquipmentKnowledge); len(eq.Items) != 1 {
		t.Errorf("equipment data = %+v", eq)
	}

	clock.advance(RuleFor(knowledge.ForgeEquipment).TTL)
	if _, _, ok := m.GetForgeData("u1", knowledge.ForgeEquipment); ok {
		t.Error("equipment slice survived its TTL")
	}
}

func TestInvalidateUserForge(t *testing.T) {
	m, _ := newTestManager()
	now := time.Now()
	m.SetForgeData("u1", knowledge.ForgeNutrition, knowledge.NutritionKnowledge{MealCount: 2}, now)
	m.SetForgeData("u1", knowledge.ForgeTraining, knowledge.TrainingKnowledge{SessionCount: 1}, now)
	m.SetForgeData("u2", knowledge.ForgeNutrition, knowledge.NutritionKnowledge{MealCount: 9}, now)

	if n := m.InvalidateUserForge("u1", knowledge.ForgeNutrition); n != 1 {
		t.Errorf("InvalidateUserForge = %d, want 1", n)
	}
	if _, _, ok := m.GetForgeData("u1", knowledge.ForgeNutrition); ok {
		t.Error("u1 nutrition slice survived")
	}
	if _, _, ok := m.GetForgeData("u1", knowledge.ForgeTraining); !ok {
		t.Error("u1 training slice evicted")
	}
	if _, _, ok := m.GetForgeData("u2", knowledge.ForgeNutrition); !ok {
		t.Error("u2 nutrition slice evicted")
	}
	if n := m.InvalidateUserForge("u1", knowledge.ForgeNutrition); n != 0 {
		t.Errorf("second InvalidateUserForge = %d, want 0", n)
	}
}

func TestInvalidateSnapshotSparesForgeData(t *testing.T) {
	m, _ := newTestManager()
	m.SetSnapshot("u1", &knowledge.UserKnowledge{UserID: "u1"})
	m.SetForgeData("u1", knowledge.ForgeBody, knowledge.BodyKnowledge{ScanCount: 1}, time.Now())

	m.InvalidateSnapshot("u1")
	if _, ok := m.GetSnapshot("u1"); ok {
		t.Error("snapshot survived invalidation")
	}
	if _, _, ok := m.GetForgeData("u1", knowledge.ForgeBody); !ok {
		t.Error("forge slice evicted with the snapshot")
	}
}

func TestRuleForKnownAndUnknown(t *testing.T) {
	for _, f := range knowledge.Forges {
		r := RuleFor(f)
		if r.TTL <= 0 {
			t.Errorf("RuleFor(%s).TTL = %v", f, r.TTL)
		}
	}

	// Volatility ordering: today is the shortest-lived, equipment and the
	// slow-moving forges the longest.
	if !(RuleFor(knowledge.ForgeToday).TTL < RuleFor(knowledge.ForgeTraining).TTL) {
		t.Error("today TTL should be shorter than training TTL")
	}
	if !(RuleFor(knowledge.ForgeTraining).TTL < RuleFor(knowledge.ForgeEquipment).TTL) {
		t.Error("training TTL should be shorter than equipment TTL")
	}

	r := RuleFor("mystery")
	if r.TTL != SnapshotTTL || len(r.TriggerEvents) != 0 {
		t.Errorf("unknown forge rule = %+v", r)
	}
}

func TestForgesTriggeredBy(t *testing.T) {
	got := ForgesTriggeredBy("training.session.completed")
	want := map[knowledge.Forge]bool{
		knowledge.ForgeTraining: true,
		knowledge.ForgeTemporal: true,
		knowledge.ForgeToday:    true,
	}
	if len(got) != len(want) {
		t.Fatalf("ForgesTriggeredBy = %v, want %v forges", got, len(want))
	}
	for _, f := range got {
		if !want[f] {
			t.Errorf("unexpected forge %s", f)
		}
	}

	if got := ForgesTriggeredBy("no.such.event"); got != nil {
		t.Errorf("ForgesTriggeredBy(unknown) = %v, want nil", got)
	}
}
