package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Profile is the raw identity record for a user. It is the only record
// whose absence is a hard error for the knowledge loader.
type Profile struct {
	UserID          string
	Name            string
	Age             int
	Sex             string
	HeightCM        float64
	WeightKG        float64
	Objective       string // e.g. "hypertrophy", "fat-loss", "endurance"
	ActivityLevel   string
	PerinatalStatus string // "", "pregnant", "postpartum"
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type TrainingSession struct {
	ID          string
	UserID      string
	StartedAt   time.Time
	DurationMin int
	RPE         float64 // 0 when not reported
	Movements   string  // JSON array stored as text
	Notes       string
}

type Meal struct {
	ID       string
	UserID   string
	EatenAt  time.Time
	Name     string
	Kcal     float64
	ProteinG float64
	CarbsG   float64
	FatG     float64
}

type FastingSession struct {
	ID          string
	UserID      string
	StartedAt   time.Time
	EndedAt     time.Time // zero when still open
	TargetHours float64
	Completed   bool
}

type BodyScan struct {
	ID         string
	UserID     string
	TakenAt    time.Time
	WeightKG   float64
	BodyFatPct float64
	MuscleKG   float64
}

type EquipmentItem struct {
	ID       string
	UserID   string
	Location string // "home", "gym", "outdoor"
	Name     string
}

type EnergyRecord struct {
	ID          string
	UserID      string
	Day         time.Time
	SleepHours  float64
	EnergyLevel float64 // 1-10 self reported
	RestingHR   float64
}

type Goal struct {
	ID        string
	UserID    string
	Name      string
	Target    string
	Active    bool
	CreatedAt time.Time
}

// MutationEvent is an upstream data-change notification consumed by the
// cache invalidation worker.
type MutationEvent struct {
	ID        string
	UserID    string
	Name      string // e.g. "training.session.completed"
	Status    string // "pending", "running", "completed", "failed"
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
	LastError string
}
