package knowledge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/forgefit/brain/internal/storage"
)

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

type mockTrainingStore struct {
	sessions []storage.TrainingSession
	err      error
	gotSince time.Time
	gotLimit int
}

func (m *mockTrainingStore) TrainingSessionsSince(userID string, since time.Time, limit int) ([]storage.TrainingSession, error) {
	m.gotSince = since
	m.gotLimit = limit
	return m.sessions, m.err
}

func TestTrainingCollector(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &mockTrainingStore{
		sessions: []storage.TrainingSession{
			{StartedAt: now.Add(-24 * time.Hour), DurationMin: 60, RPE: 8, Movements: `["squat","bench"]`},
			{StartedAt: now.Add(-72 * time.Hour), DurationMin: 40, RPE: 6, Movements: `["squat","row"]`},
			{StartedAt: now.Add(-120 * time.Hour), DurationMin: 50, RPE: 0, Movements: `["squat"]`},
		},
	}
	c := NewTrainingCollector(store, &mockClock{now: now})

	data, err := c.Collect(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	k := data.(TrainingKnowledge)

	if k.SessionCount != 3 {
		t.Errorf("SessionCount = %d, want 3", k.SessionCount)
	}
	// RPE=0 rows are unreported, not averaged in.
	if k.AvgRPE != 7 {
		t.Errorf("AvgRPE = %v, want 7", k.AvgRPE)
	}
	if k.AvgDurationMin != 50 {
		t.Errorf("AvgDurationMin = %v, want 50", k.AvgDurationMin)
	}
	if len(k.FrequentMovements) == 0 || k.FrequentMovements[0] != "squat" {
		t.Errorf("FrequentMovements = %v, want squat first", k.FrequentMovements)
	}
	if !k.LastSessionAt.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("LastSessionAt = %v", k.LastSessionAt)
	}

	wantSince := now.Add(-trainingWindow)
	if !store.gotSince.Equal(wantSince) {
		t.Errorf("query since = %v, want %v", store.gotSince, wantSince)
	}
	if store.gotLimit != trainingLimit {
		t.Errorf("query limit = %d, want %d", store.gotLimit, trainingLimit)
	}
}

func TestTrainingCollectorEmpty(t *testing.T) {
	c := NewTrainingCollector(&mockTrainingStore{}, &mockClock{now: time.Now()})
	data, err := c.Collect(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	k := data.(TrainingKnowledge)
	if k.SessionCount != 0 || k.AvgRPE != 0 || k.FrequentMovements != nil || !k.LastSessionAt.IsZero() {
		t.Errorf("want zero value for empty store, got %+v", k)
	}
}

func TestTrainingCollectorCancelled(t *testing.T) {
	c := NewTrainingCollector(&mockTrainingStore{}, &mockClock{now: time.Now()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Collect(ctx, "u1"); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestParseMovements(t *testing.T) {
	if got := parseMovements(`["a","b"]`); len(got) != 2 {
		t.Errorf("parseMovements = %v", got)
	}
	if got := parseMovements(""); got != nil {
		t.Errorf("parseMovements(empty) = %v, want nil", got)
	}
	// Malformed rows degrade to nil, never error.
	if got := parseMovements(`{broken`); got != nil {
		t.Errorf("parseMovements(malformed) = %v, want nil", got)
	}
}

func TestTopKeysDeterministicTies(t *testing.T) {
	freq := map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}
	got := topKeys(freq, 3)
	want := []string{"c", "a", "b"}
	if len(got) != 3 {
		t.Fatalf("topKeys = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("topKeys[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTemporalCollector(t *testing.T) {
	// Sessions at 07:00 on Mondays and Wednesdays across 4 distinct weeks.
	now := time.Date(2026, 3, 30, 12, 0, 0, 0, time.UTC) // a Monday
	var sessions []storage.TrainingSession
	for w := 0; w < 4; w++ {
		monday := now.AddDate(0, 0, -7*w)
		sessions = append(sessions,
			storage.TrainingSession{StartedAt: time.Date(monday.Year(), monday.Month(), monday.Day(), 7, 0, 0, 0, time.UTC)},
			storage.TrainingSession{StartedAt: time.Date(monday.Year(), monday.Month(), monday.Day()+2, 7, 0, 0, 0, time.UTC)},
		)
	}
	c := NewTemporalCollector(&mockTrainingStore{sessions: sessions}, &mockClock{now: now})

	data, err := c.Collect(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	k := data.(TemporalKnowledge)

	if k.SampleSize != 8 {
		t.Errorf("SampleSize = %d, want 8", k.SampleSize)
	}
	if len(k.PreferredHours) == 0 || k.PreferredHours[0] != 7 {
		t.Errorf("PreferredHours = %v, want 7 first", k.PreferredHours)
	}
	if len(k.PreferredDays) < 2 {
		t.Fatalf("PreferredDays = %v", k.PreferredDays)
	}
	// Monday and Wednesday tie; names break the tie alphabetically.
	if k.PreferredDays[0] != "Monday" || k.PreferredDays[1] != "Wednesday" {
		t.Errorf("PreferredDays = %v", k.PreferredDays)
	}
	// 4 or 5 distinct ISO weeks out of ~12 in the window.
	if k.ConsistencyScore <= 0 || k.ConsistencyScore > 0.5 {
		t.Errorf("ConsistencyScore = %v, want (0, 0.5]", k.ConsistencyScore)
	}
}

type mockNutritionStore struct {
	meals []storage.Meal
	err   error
}

func (m *mockNutritionStore) MealsSince(userID string, since time.Time, limit int) ([]storage.Meal, error) {
	return m.meals, m.err
}

func TestNutritionCollectorAveragesOverTrackedDays(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	day1 := now.Add(-24 * time.Hour)
	day2 := now.Add(-48 * time.Hour)
	store := &mockNutritionStore{
		meals: []storage.Meal{
			{EatenAt: day1, Name: "oats", Kcal: 400, ProteinG: 20},
			{EatenAt: day1, Name: "chicken bowl", Kcal: 600, ProteinG: 45},
			{EatenAt: day2, Name: "oats", Kcal: 400, ProteinG: 20},
		},
	}
	c := NewNutritionCollector(store, &mockClock{now: now})

	data, err := c.Collect(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	k := data.(NutritionKnowledge)

	if k.MealCount != 3 || k.TrackedDays != 2 {
		t.Errorf("MealCount=%d TrackedDays=%d, want 3/2", k.MealCount, k.TrackedDays)
	}
	// 1400 kcal over 2 tracked days.
	if k.AvgDailyKcal != 700 {
		t.Errorf("AvgDailyKcal = %v, want 700", k.AvgDailyKcal)
	}
	if len(k.CommonFoods) == 0 || k.CommonFoods[0] != "oats" {
		t.Errorf("CommonFoods = %v, want oats first", k.CommonFoods)
	}
}

type mockFastingStore struct {
	sessions []storage.FastingSession
	err      error
}

func (m *mockFastingStore) FastingSessionsSince(userID string, since time.Time, limit int) ([]storage.FastingSession, error) {
	return m.sessions, m.err
}

func TestFastingCollector(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &mockFastingStore{
		sessions: []storage.FastingSession{
			// Open fast: no end, excluded from the window average.
			{StartedAt: now.Add(-10 * time.Hour), TargetHours: 16},
			{StartedAt: now.Add(-40 * time.Hour), EndedAt: now.Add(-24 * time.Hour), TargetHours: 16, Completed: true},
			{StartedAt: now.Add(-66 * time.Hour), EndedAt: now.Add(-52 * time.Hour), TargetHours: 16, Completed: false},
		},
	}
	c := NewFastingCollector(store, &mockClock{now: now})

	data, err := c.Collect(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	k := data.(FastingKnowledge)

	if k.SessionCount != 3 {
		t.Errorf("SessionCount = %d, want 3", k.SessionCount)
	}
	// (16h + 14h) / 2 closed fasts.
	if k.AvgWindowHours != 15 {
		t.Errorf("AvgWindowHours = %v, want 15", k.AvgWindowHours)
	}
	if k.CompletionRate < 0.33 || k.CompletionRate > 0.34 {
		t.Errorf("CompletionRate = %v, want ~1/3", k.CompletionRate)
	}
	if k.Protocol != "16:8" {
		t.Errorf("Protocol = %q, want 16:8", k.Protocol)
	}
}

func TestProtocolName(t *testing.T) {
	cases := []struct {
		hours float64
		want  string
	}{
		{16, "16:8"},
		{16.3, "16:8"},
		{18, "18:6"},
		{14, "14:10"},
		{20, "20:4"},
		{12, "12h window"},
		{0, ""},
	}
	for _, tc := range cases {
		if got := protocolName(tc.hours); got != tc.want {
			t.Errorf("protocolName(%v) = %q, want %q", tc.hours, got, tc.want)
		}
	}
}

type mockBodyStore struct {
	scans []storage.BodyScan
}

func (m *mockBodyStore) BodyScansSince(userID string, since time.Time, limit int) ([]storage.BodyScan, error) {
	return m.scans, nil
}

func TestBodyCollectorDelta(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &mockBodyStore{
		scans: []storage.BodyScan{
			{TakenAt: now.Add(-24 * time.Hour), WeightKG: 80, BodyFatPct: 18, MuscleKG: 36},
			{TakenAt: now.Add(-30 * 24 * time.Hour), WeightKG: 83, BodyFatPct: 20, MuscleKG: 35},
		},
	}
	c := NewBodyCollector(store, &mockClock{now: now})

	data, err := c.Collect(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	k := data.(BodyKnowledge)

	if k.LatestWeightKG != 80 {
		t.Errorf("LatestWeightKG = %v, want 80 (newest first)", k.LatestWeightKG)
	}
	if k.WeightDeltaKG != -3 {
		t.Errorf("WeightDeltaKG = %v, want -3", k.WeightDeltaKG)
	}
}

type mockEquipmentStore struct {
	items []storage.EquipmentItem
}

func (m *mockEquipmentStore) EquipmentFor(userID string, limit int) ([]storage.EquipmentItem, error) {
	return m.items, nil
}

func TestEquipmentCollectorDedupesLocations(t *testing.T) {
	store := &mockEquipmentStore{
		items: []storage.EquipmentItem{
			{Location: "home", Name: "kettlebell 16kg"},
			{Location: "home", Name: "pull-up bar"},
			{Location: "gym", Name: "barbell"},
		},
	}
	c := NewEquipmentCollector(store)

	data, err := c.Collect(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	k := data.(EquipmentKnowledge)

	if len(k.Locations) != 2 {
		t.Errorf("Locations = %v, want 2 distinct", k.Locations)
	}
	if len(k.Items) != 3 {
		t.Errorf("Items = %v, want 3", k.Items)
	}
}

type mockEnergyStore struct {
	records []storage.EnergyRecord
}

func (m *mockEnergyStore) EnergyRecordsSince(userID string, since time.Time, limit int) ([]storage.EnergyRecord, error) {
	return m.records, nil
}

func TestEnergyCollectorSkipsUnreported(t *testing.T) {
	now := time.Now()
	store := &mockEnergyStore{
		records: []storage.EnergyRecord{
			{Day: now, SleepHours: 8, EnergyLevel: 7, RestingHR: 55},
			{Day: now.Add(-24 * time.Hour), SleepHours: 6, EnergyLevel: 0, RestingHR: 0},
		},
	}
	c := NewEnergyCollector(store, &mockClock{now: now})

	data, err := c.Collect(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	k := data.(EnergyKnowledge)

	if k.RecordCount != 2 {
		t.Errorf("RecordCount = %d, want 2", k.RecordCount)
	}
	if k.AvgSleepHours != 7 {
		t.Errorf("AvgSleepHours = %v, want 7", k.AvgSleepHours)
	}
	// Zero reports don't drag the averages down.
	if k.AvgEnergyLevel != 7 || k.AvgRestingHR != 55 {
		t.Errorf("averages = %v/%v, want 7/55", k.AvgEnergyLevel, k.AvgRestingHR)
	}
}

type mockTodayStore struct {
	sessions []storage.TrainingSession
	meals    []storage.Meal
	fasts    []storage.FastingSession
}

func (m *mockTodayStore) TrainingSessionsSince(userID string, since time.Time, limit int) ([]storage.TrainingSession, error) {
	return m.sessions, nil
}

func (m *mockTodayStore) MealsSince(userID string, since time.Time, limit int) ([]storage.Meal, error) {
	return m.meals, nil
}

func (m *mockTodayStore) FastingSessionsSince(userID string, since time.Time, limit int) ([]storage.FastingSession, error) {
	return m.fasts, nil
}

func TestTodayCollector(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	store := &mockTodayStore{
		sessions: []storage.TrainingSession{{StartedAt: now.Add(-2 * time.Hour)}},
		meals: []storage.Meal{
			{EatenAt: now.Add(-3 * time.Hour), Kcal: 500, ProteinG: 30},
			{EatenAt: now.Add(-6 * time.Hour), Kcal: 350, ProteinG: 20},
		},
		// Fast opened yesterday evening, still running.
		fasts: []storage.FastingSession{{StartedAt: now.Add(-18 * time.Hour), TargetHours: 16}},
	}
	c := NewTodayCollector(store, &mockClock{now: now})

	data, err := c.Collect(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	k := data.(TodayKnowledge)

	if k.SessionsToday != 1 || k.MealsLogged != 2 {
		t.Errorf("SessionsToday=%d MealsLogged=%d", k.SessionsToday, k.MealsLogged)
	}
	if k.KcalSoFar != 850 || k.ProteinSoFar != 50 {
		t.Errorf("KcalSoFar=%v ProteinSoFar=%v", k.KcalSoFar, k.ProteinSoFar)
	}
	if !k.FastingActive {
		t.Error("FastingActive = false, want true for open fast")
	}
	if k.FastingElapsedHours != 18 {
		t.Errorf("FastingElapsedHours = %v, want 18", k.FastingElapsedHours)
	}
}

type mockProfileReader struct {
	profile storage.Profile
	err     error
}

func (m *mockProfileReader) GetProfile(userID string) (storage.Profile, error) {
	return m.profile, m.err
}

func TestPerinatalCollectorGatesOnStatus(t *testing.T) {
	cases := []struct {
		status     string
		wantStatus string
		wantKcal   float64
	}{
		{"", "", 0},
		{"pregnant", "pregnant", 300},
		{"postpartum", "postpartum", 400},
	}
	for _, tc := range cases {
		c := NewPerinatalCollector(&mockProfileReader{profile: storage.Profile{UserID: "u1", PerinatalStatus: tc.status}})
		data, err := c.Collect(context.Background(), "u1")
		if err != nil {
			t.Fatalf("Collect(%q): %v", tc.status, err)
		}
		k := data.(PerinatalKnowledge)
		if k.Status != tc.wantStatus || k.KcalAdjust != tc.wantKcal {
			t.Errorf("status %q: got %q/%v, want %q/%v", tc.status, k.Status, k.KcalAdjust, tc.wantStatus, tc.wantKcal)
		}
		if tc.wantStatus != "" && (len(k.KeyNutrients) == 0 || len(k.Cautions) == 0) {
			t.Errorf("status %q: missing nutrients or cautions", tc.status)
		}
	}
}

func TestPerinatalCollectorPropagatesStoreError(t *testing.T) {
	c := NewPerinatalCollector(&mockProfileReader{err: fmt.Errorf("db down")})
	if _, err := c.Collect(context.Background(), "u1"); err == nil {
		t.Error("expected store error to propagate")
	}
}
