package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"munchykit/core"
)

// Driver names a supported database backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// DefaultConfig returns pool defaults for the driver. SQLite is limited to
// one connection because the file is locked per writer.
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
	switch driver {
	case DriverPostgres:
		cfg.DSN = "postgres://localhost:5432/munchy?sslmode=disable"
	case DriverMySQL:
		cfg.DSN = "root@tcp(localhost:3306)/munchy?parseTime=true"
	case DriverSQLite:
		cfg.DSN = "munchy.db"
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	}
	return cfg
}

// Store implements the engine.Storage interface as a document store:
// one profile row per user plus one row per challenge, win and weight entry.
// Every row gets a server-assigned doc_id and created_at on insert.
type Store struct {
	db     *sqlx.DB
	driver Driver
	now    func() time.Time
}

// New opens a connection pool and optionally applies the schema.
func New(cfg Config) (*Store, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := NewWithDB(db, cfg.Driver)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing)
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver, now: time.Now}
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

type profileRow struct {
	UserID             string  `db:"user_id"`
	Name               string  `db:"name"`
	Avatar             string  `db:"avatar"`
	StartWeight        float64 `db:"start_weight"`
	GoalWeight         float64 `db:"goal_weight"`
	Streak             int     `db:"streak"`
	LastLogDate        string  `db:"last_log_date"`
	TotalMoneySaved    float64 `db:"total_money_saved"`
	TotalCaloriesSaved float64 `db:"total_calories_saved"`
	OnboardingComplete bool    `db:"onboarding_complete"`
	OnboardingAnswers  string  `db:"onboarding_answers"`
	CreatedAt          string  `db:"created_at"`
	UpdatedAt          string  `db:"updated_at"`
}

type challengeRow struct {
	ChallengeID string  `db:"challenge_id"`
	Title       string  `db:"title"`
	Target      float64 `db:"target"`
	Current     float64 `db:"current_value"`
	Unit        string  `db:"unit"`
}

type winRow struct {
	WinID         string  `db:"win_id"`
	Item          string  `db:"item"`
	Category      string  `db:"category"`
	Replacement   string  `db:"replacement"`
	CaloriesSaved float64 `db:"calories_saved"`
	MoneySaved    float64 `db:"money_saved"`
	LoggedAt      int64   `db:"logged_at"`
	WinType       string  `db:"win_type"`
	MascotMessage string  `db:"mascot_message"`
}

type weightRow struct {
	EntryID   string  `db:"entry_id"`
	Weight    float64 `db:"weight"`
	EntryDate string  `db:"entry_date"`
	LoggedAt  int64   `db:"logged_at"`
	Note      string  `db:"note"`
}

const (
	selectProfile = `SELECT user_id, name, avatar, start_weight, goal_weight, streak, last_log_date,
total_money_saved, total_calories_saved, onboarding_complete, onboarding_answers, created_at, updated_at
FROM profiles WHERE user_id = ?`
	selectChallenges = `SELECT challenge_id, title, target, current_value, unit FROM challenges
WHERE user_id = ? ORDER BY sort_order ASC`
	selectWins = `SELECT win_id, item, category, replacement, calories_saved, money_saved, logged_at, win_type, mascot_message
FROM wins WHERE user_id = ? ORDER BY logged_at DESC, win_id DESC`
	selectWeights = `SELECT entry_id, weight, entry_date, logged_at, note FROM weight_entries
WHERE user_id = ? ORDER BY logged_at ASC, entry_id ASC`
)

// Load reads the user's documents. Missing rows fall back to defaults.
func (s *Store) Load(ctx context.Context, userID core.UserID) (core.Snapshot, error) {
	snap := core.NewSnapshot()
	user := string(userID)

	var p profileRow
	err := s.db.GetContext(ctx, &p, s.db.Rebind(selectProfile), user)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return core.Snapshot{}, fmt.Errorf("failed to load profile: %w", err)
	default:
		profile, err := p.toProfile()
		if err != nil {
			return core.Snapshot{}, err
		}
		snap.Profile = profile
	}

	var challenges []challengeRow
	if err := s.db.SelectContext(ctx, &challenges, s.db.Rebind(selectChallenges), user); err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to load challenges: %w", err)
	}
	for _, c := range challenges {
		snap.Profile.CustomChallenges = append(snap.Profile.CustomChallenges, core.CustomChallenge{
			ID: c.ChallengeID, Title: c.Title, Target: c.Target, Current: c.Current, Unit: core.ChallengeUnit(c.Unit),
		})
	}

	var wins []winRow
	if err := s.db.SelectContext(ctx, &wins, s.db.Rebind(selectWins), user); err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to load wins: %w", err)
	}
	for _, w := range wins {
		snap.Wins = append(snap.Wins, core.Win{
			ID: w.WinID, Item: w.Item, Category: w.Category, Replacement: w.Replacement,
			CaloriesSaved: w.CaloriesSaved, MoneySaved: w.MoneySaved, Timestamp: w.LoggedAt,
			Type: core.WinType(w.WinType), MascotMessage: w.MascotMessage,
		})
	}

	var weights []weightRow
	if err := s.db.SelectContext(ctx, &weights, s.db.Rebind(selectWeights), user); err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to load weights: %w", err)
	}
	for _, w := range weights {
		snap.Weights = append(snap.Weights, core.WeightEntry{
			ID: w.EntryID, Weight: w.Weight, Date: w.EntryDate, Timestamp: w.LoggedAt, Note: w.Note, UserID: userID,
		})
	}
	return snap, nil
}

func (p profileRow) toProfile() (core.UserProfile, error) {
	out := core.UserProfile{
		Name:               p.Name,
		Avatar:             p.Avatar,
		StartWeight:        p.StartWeight,
		GoalWeight:         p.GoalWeight,
		Streak:             p.Streak,
		LastLogDate:        p.LastLogDate,
		TotalMoneySaved:    p.TotalMoneySaved,
		TotalCaloriesSaved: p.TotalCaloriesSaved,
		OnboardingComplete: p.OnboardingComplete,
		OnboardingAnswers:  core.OnboardingAnswers{},
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.OnboardingAnswers != "" {
		if err := json.Unmarshal([]byte(p.OnboardingAnswers), &out.OnboardingAnswers); err != nil {
			return core.UserProfile{}, fmt.Errorf("failed to decode onboarding answers: %w", err)
		}
	}
	return out, nil
}

// inTx runs fn in a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveProfile overwrites the profile row and the user's challenge set.
func (s *Store) SaveProfile(ctx context.Context, userID core.UserID, profile core.UserProfile) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error { return s.saveProfile(ctx, tx, string(userID), profile) })
}

// SaveWins overwrites the user's win set.
func (s *Store) SaveWins(ctx context.Context, userID core.UserID, wins []core.Win) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error { return s.saveWins(ctx, tx, string(userID), wins) })
}

// SaveWeights overwrites the user's weight history.
func (s *Store) SaveWeights(ctx context.Context, userID core.UserID, weights []core.WeightEntry) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error { return s.saveWeights(ctx, tx, string(userID), weights) })
}

// SaveSnapshot replaces every document of the user in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, userID core.UserID, snap core.Snapshot) error {
	user := string(userID)
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.saveProfile(ctx, tx, user, snap.Profile); err != nil {
			return err
		}
		if err := s.saveWins(ctx, tx, user, snap.Wins); err != nil {
			return err
		}
		return s.saveWeights(ctx, tx, user, snap.Weights)
	})
}

func (s *Store) saveProfile(ctx context.Context, tx *sqlx.Tx, user string, p core.UserProfile) error {
	answers := p.OnboardingAnswers
	if answers == nil {
		answers = core.OnboardingAnswers{}
	}
	rawAnswers, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to encode onboarding answers: %w", err)
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM profiles WHERE user_id = ?)`), user); err != nil {
		return fmt.Errorf("failed to check profile: %w", err)
	}
	if exists {
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE profiles SET name = ?, avatar = ?, start_weight = ?, goal_weight = ?,
streak = ?, last_log_date = ?, total_money_saved = ?, total_calories_saved = ?, onboarding_complete = ?,
onboarding_answers = ?, updated_at = ? WHERE user_id = ?`),
			p.Name, p.Avatar, p.StartWeight, p.GoalWeight, p.Streak, p.LastLogDate, p.TotalMoneySaved,
			p.TotalCaloriesSaved, p.OnboardingComplete, string(rawAnswers), p.UpdatedAt, user)
	} else {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO profiles (user_id, name, avatar, start_weight, goal_weight,
streak, last_log_date, total_money_saved, total_calories_saved, onboarding_complete, onboarding_answers,
created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			user, p.Name, p.Avatar, p.StartWeight, p.GoalWeight, p.Streak, p.LastLogDate, p.TotalMoneySaved,
			p.TotalCaloriesSaved, p.OnboardingComplete, string(rawAnswers), p.CreatedAt, p.UpdatedAt)
	}
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return s.saveChallenges(ctx, tx, user, p.CustomChallenges)
}

// existingIDs returns the document keys currently stored for the user.
func existingIDs(ctx context.Context, tx *sqlx.Tx, query, user string) (map[string]bool, error) {
	var ids []string
	if err := tx.SelectContext(ctx, &ids, tx.Rebind(query), user); err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// Challenges are mutable: existing rows are updated in place.
func (s *Store) saveChallenges(ctx context.Context, tx *sqlx.Tx, user string, challenges []core.CustomChallenge) error {
	existing, err := existingIDs(ctx, tx, `SELECT challenge_id FROM challenges WHERE user_id = ?`, user)
	if err != nil {
		return fmt.Errorf("failed to list challenges: %w", err)
	}
	created := s.now().UnixMilli()
	for i, c := range challenges {
		if existing[c.ID] {
			_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE challenges SET title = ?, target = ?, current_value = ?, unit = ?,
sort_order = ? WHERE user_id = ? AND challenge_id = ?`), c.Title, c.Target, c.Current, string(c.Unit), i, user, c.ID)
			delete(existing, c.ID)
		} else {
			_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO challenges (doc_id, user_id, challenge_id, title, target,
current_value, unit, sort_order, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
				core.NewID(), user, c.ID, c.Title, c.Target, c.Current, string(c.Unit), i, created)
		}
		if err != nil {
			return fmt.Errorf("failed to save challenge %s: %w", c.ID, err)
		}
	}
	return deleteAbsent(ctx, tx, `DELETE FROM challenges WHERE user_id = ? AND challenge_id = ?`, user, existing)
}

// Wins are immutable: only missing rows are inserted.
func (s *Store) saveWins(ctx context.Context, tx *sqlx.Tx, user string, wins []core.Win) error {
	existing, err := existingIDs(ctx, tx, `SELECT win_id FROM wins WHERE user_id = ?`, user)
	if err != nil {
		return fmt.Errorf("failed to list wins: %w", err)
	}
	created := s.now().UnixMilli()
	for _, w := range wins {
		if existing[w.ID] {
			delete(existing, w.ID)
			continue
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO wins (doc_id, user_id, win_id, item, category, replacement,
calories_saved, money_saved, logged_at, win_type, mascot_message, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			core.NewID(), user, w.ID, w.Item, w.Category, w.Replacement, w.CaloriesSaved, w.MoneySaved,
			w.Timestamp, string(w.Type), w.MascotMessage, created)
		if err != nil {
			return fmt.Errorf("failed to save win %s: %w", w.ID, err)
		}
	}
	return deleteAbsent(ctx, tx, `DELETE FROM wins WHERE user_id = ? AND win_id = ?`, user, existing)
}

func (s *Store) saveWeights(ctx context.Context, tx *sqlx.Tx, user string, weights []core.WeightEntry) error {
	existing, err := existingIDs(ctx, tx, `SELECT entry_id FROM weight_entries WHERE user_id = ?`, user)
	if err != nil {
		return fmt.Errorf("failed to list weights: %w", err)
	}
	created := s.now().UnixMilli()
	for _, w := range weights {
		if existing[w.ID] {
			delete(existing, w.ID)
			continue
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO weight_entries (doc_id, user_id, entry_id, weight, entry_date,
logged_at, note, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			core.NewID(), user, w.ID, w.Weight, w.Date, w.Timestamp, w.Note, created)
		if err != nil {
			return fmt.Errorf("failed to save weight %s: %w", w.ID, err)
		}
	}
	return deleteAbsent(ctx, tx, `DELETE FROM weight_entries WHERE user_id = ? AND entry_id = ?`, user, existing)
}

func deleteAbsent(ctx context.Context, tx *sqlx.Tx, query, user string, absent map[string]bool) error {
	for _, id := range slices.Sorted(maps.Keys(absent)) {
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), user, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
	}
	return nil
}
