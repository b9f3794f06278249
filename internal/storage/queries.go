package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// --- profile ---

func (s *Store) GetProfile(userID string) (Profile, error) {
	var p Profile
	var createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT user_id, name, age, sex, height_cm, weight_kg, objective, activity_level, perinatal_status, created_at, updated_at
		FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Name, &p.Age, &p.Sex, &p.HeightCM, &p.WeightKG, &p.Objective, &p.ActivityLevel, &p.PerinatalStatus, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("querying profile: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func (s *Store) UpsertProfile(p Profile) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO profiles (user_id, name, age, sex, height_cm, weight_kg, objective, activity_level, perinatal_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name, age = excluded.age, sex = excluded.sex,
			height_cm = excluded.height_cm, weight_kg = excluded.weight_kg,
			objective = excluded.objective, activity_level = excluded.activity_level,
			perinatal_status = excluded.perinatal_status, updated_at = excluded.updated_at`,
		p.UserID, p.Name, p.Age, p.Sex, p.HeightCM, p.WeightKG, p.Objective, p.ActivityLevel, p.PerinatalStatus, now, now,
	)
	return err
}

// --- bounded per-forge reads ---

func (s *Store) TrainingSessionsSince(userID string, since time.Time, limit int) ([]TrainingSession, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, started_at, duration_min, rpe, movements, notes
		FROM training_sessions
		WHERE user_id = ? AND started_at >= ?
		ORDER BY started_at DESC LIMIT ?`,
		userID, since.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("querying training sessions: %w", err)
	}
	defer rows.Close()

	var out []TrainingSession
	for rows.Next() {
		var ts TrainingSession
		var startedAt string
		if err := rows.Scan(&ts.ID, &ts.UserID, &startedAt, &ts.DurationMin, &ts.RPE, &ts.Movements, &ts.Notes); err != nil {
			return nil, fmt.Errorf("scanning training session: %w", err)
		}
		ts.StartedAt = parseTime(startedAt)
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *Store) MealsSince(userID string, since time.Time, limit int) ([]Meal, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, eaten_at, name, kcal, protein_g, carbs_g, fat_g
		FROM meals
		WHERE user_id = ? AND eaten_at >= ?
		ORDER BY eaten_at DESC LIMIT ?`,
		userID, since.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("querying meals: %w", err)
	}
	defer rows.Close()

	var out []Meal
	for rows.Next() {
		var m Meal
		var eatenAt string
		if err := rows.Scan(&m.ID, &m.UserID, &eatenAt, &m.Name, &m.Kcal, &m.ProteinG, &m.CarbsG, &m.FatG); err != nil {
			return nil, fmt.Errorf("scanning meal: %w", err)
		}
		m.EatenAt = parseTime(eatenAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) FastingSessionsSince(userID string, since time.Time, limit int) ([]FastingSession, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, started_at, ended_at, target_hours, completed
		FROM fasting_sessions
		WHERE user_id = ? AND started_at >= ?
		ORDER BY started_at DESC LIMIT ?`,
		userID, since.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("querying fasting sessions: %w", err)
	}
	defer rows.Close()

	var out []FastingSession
	for rows.Next() {
		var fs FastingSession
		var startedAt string
		var endedAt sql.NullString
		var completed int
		if err := rows.Scan(&fs.ID, &fs.UserID, &startedAt, &endedAt, &fs.TargetHours, &completed); err != nil {
			return nil, fmt.Errorf("scanning fasting session: %w", err)
		}
		fs.StartedAt = parseTime(startedAt)
		if endedAt.Valid {
			fs.EndedAt = parseTime(endedAt.String)
		}
		fs.Completed = completed != 0
		out = append(out, fs)
	}
	return out, rows.Err()
}

func (s *Store) BodyScansSince(userID string, since time.Time, limit int) ([]BodyScan, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, taken_at, weight_kg, body_fat_pct, muscle_kg
		FROM body_scans
		WHERE user_id = ? AND taken_at >= ?
		ORDER BY taken_at DESC LIMIT ?`,
		userID, since.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("querying body scans: %w", err)
	}
	defer rows.Close()

	var out []BodyScan
	for rows.Next() {
		var b BodyScan
		var takenAt string
		if err := rows.Scan(&b.ID, &b.UserID, &takenAt, &b.WeightKG, &b.BodyFatPct, &b.MuscleKG); err != nil {
			return nil, fmt.Errorf("scanning body scan: %w", err)
		}
		b.TakenAt = parseTime(takenAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) EquipmentFor(userID string, limit int) ([]EquipmentItem, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, location, name
		FROM equipment WHERE user_id = ? ORDER BY location, name LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying equipment: %w", err)
	}
	defer rows.Close()

	var out []EquipmentItem
	for rows.Next() {
		var e EquipmentItem
		if err := rows.Scan(&e.ID, &e.UserID, &e.Location, &e.Name); err != nil {
			return nil, fmt.Errorf("scanning equipment item: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) EnergyRecordsSince(userID string, since time.Time, limit int) ([]EnergyRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, day, sleep_hours, energy_level, resting_hr
		FROM energy_records
		WHERE user_id = ? AND day >= ?
		ORDER BY day DESC LIMIT ?`,
		userID, since.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("querying energy records: %w", err)
	}
	defer rows.Close()

	var out []EnergyRecord
	for rows.Next() {
		var e EnergyRecord
		var day string
		if err := rows.Scan(&e.ID, &e.UserID, &day, &e.SleepHours, &e.EnergyLevel, &e.RestingHR); err != nil {
			return nil, fmt.Errorf("scanning energy record: %w", err)
		}
		e.Day = parseTime(day)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ActiveGoals(userID string, limit int) ([]Goal, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, name, target, active, created_at
		FROM goals WHERE user_id = ? AND active = 1 ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying goals: %w", err)
	}
	defer rows.Close()

	var out []Goal
	for rows.Next() {
		var g Goal
		var active int
		var createdAt string
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.Target, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning goal: %w", err)
		}
		g.Active = active != 0
		g.CreatedAt = parseTime(createdAt)
		out = append(out, g)
	}
	return out, rows.Err()
}

// --- seed/test writes ---

func (s *Store) InsertTrainingSession(ts TrainingSession) error {
	_, err := s.db.Exec(`
		INSERT INTO training_sessions (id, user_id, started_at, duration_min, rpe, movements, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts.ID, ts.UserID, ts.StartedAt.UTC().Format(time.RFC3339), ts.DurationMin, ts.RPE, ts.Movements, ts.Notes)
	return err
}

func (s *Store) InsertMeal(m Meal) error {
	_, err := s.db.Exec(`
		INSERT INTO meals (id, user_id, eaten_at, name, kcal, protein_g, carbs_g, fat_g)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.EatenAt.UTC().Format(time.RFC3339), m.Name, m.Kcal, m.ProteinG, m.CarbsG, m.FatG)
	return err
}

func (s *Store) InsertFastingSession(fs FastingSession) error {
	var endedAt any
	if !fs.EndedAt.IsZero() {
		endedAt = fs.EndedAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(`
		INSERT INTO fasting_sessions (id, user_id, started_at, ended_at, target_hours, completed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fs.ID, fs.UserID, fs.StartedAt.UTC().Format(time.RFC3339), endedAt, fs.TargetHours, boolToInt(fs.Completed))
	return err
}

func (s *Store) InsertBodyScan(b BodyScan) error {
	_, err := s.db.Exec(`
		INSERT INTO body_scans (id, user_id, taken_at, weight_kg, body_fat_pct, muscle_kg)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.TakenAt.UTC().Format(time.RFC3339), b.WeightKG, b.BodyFatPct, b.MuscleKG)
	return err
}

func (s *Store) InsertEquipmentItem(e EquipmentItem) error {
	_, err := s.db.Exec(`
		INSERT INTO equipment (id, user_id, location, name) VALUES (?, ?, ?, ?)`,
		e.ID, e.UserID, e.Location, e.Name)
	return err
}

func (s *Store) InsertEnergyRecord(e EnergyRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO energy_records (id, user_id, day, sleep_hours, energy_level, resting_hr)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Day.UTC().Format(time.RFC3339), e.SleepHours, e.EnergyLevel, e.RestingHR)
	return err
}

func (s *Store) InsertGoal(g Goal) error {
	_, err := s.db.Exec(`
		INSERT INTO goals (id, user_id, name, target, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.Target, boolToInt(g.Active), time.Now().UTC().Format(time.RFC3339))
	return err
}

// --- mutation event queue ---

func (s *Store) EnqueueMutationEvent(e MutationEvent) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO mutation_events (id, user_id, name, status, attempts, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, ?, ?)`,
		e.ID, e.UserID, e.Name, now, now)
	return err
}

// ClaimNextMutationEvent atomically claims the oldest pending event and
// marks it running. Returns nil when the queue is empty.
func (s *Store) ClaimNextMutationEvent() (*MutationEvent, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	var e MutationEvent
	var createdAt, updatedAt string
	err = tx.QueryRow(`
		SELECT id, user_id, name, status, attempts, created_at, updated_at, last_error
		FROM mutation_events
		WHERE status = 'pending'
		ORDER BY created_at ASC LIMIT 1`,
	).Scan(&e.ID, &e.UserID, &e.Name, &e.Status, &e.Attempts, &createdAt, &updatedAt, &e.LastError)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting next event: %w", err)
	}

	res, err := tx.Exec(`UPDATE mutation_events SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, now, e.ID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("updating event status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking updated event rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	e.Status = "running"
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(now)
	return &e, nil
}

func (s *Store) CompleteMutationEvent(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE mutation_events SET status = 'completed', updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const maxEventAttempts = 3

// FailMutationEvent increments the attempt counter; the event goes back to
// pending until it exhausts its attempts, then stays failed.
func (s *Store) FailMutationEvent(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts int
	err = tx.QueryRow(`SELECT attempts FROM mutation_events WHERE id = ?`, id).Scan(&attempts)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	attempts++
	status := "pending"
	if attempts >= maxEventAttempts {
		status = "failed"
	}
	if _, err := tx.Exec(`UPDATE mutation_events SET status = ?, attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status, attempts, errMsg, now, id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- helpers ---

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	// SQLite CURRENT_TIMESTAMP emits "2006-01-02 15:04:05".
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
