package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"munchykit/core"
)

// ErrChallengeNotFound is returned when progressing an unknown challenge.
var ErrChallengeNotFound = errors.New("challenge not found")

// DefaultWriteTimeout bounds each background storage write.
const DefaultWriteTimeout = 10 * time.Second

// Field sets written independently to storage.
const (
	KindProfile = "profile"
	KindWins    = "wins"
	KindWeights = "weights"
)

type dirty uint8

const (
	dirtyProfile dirty = 1 << iota
	dirtyWins
	dirtyWeights
)

// Outcome is the state after a mutation plus every event it published.
type Outcome struct {
	Snapshot core.Snapshot `json:"snapshot"`
	Events   []core.Event  `json:"events"`
}

// writeSlot serializes writes of one field set. A write is skipped when a
// newer one has been issued before it got the slot.
type writeSlot struct {
	mu     sync.Mutex
	latest atomic.Uint64
}

type session struct {
	mu     sync.Mutex
	snap   core.Snapshot
	writes map[string]*writeSlot
}

func newSession(snap core.Snapshot) *session {
	return &session{
		snap: snap,
		writes: map[string]*writeSlot{
			KindProfile: {},
			KindWins:    {},
			KindWeights: {},
		},
	}
}

// TrackerService keeps one in-memory session per user as the source of
// truth, runs the reducer under the session lock and mirrors every change to
// storage in the background.
type TrackerService struct {
	storage      Storage
	bus          *EventBus
	rules        RuleEngine
	logger       *slog.Logger
	clock        func() time.Time
	loc          *time.Location
	writeTimeout time.Duration

	mu       sync.Mutex
	sessions map[core.UserID]*session
	pending  sync.WaitGroup
}

// Option configures a TrackerService.
type Option func(*TrackerService)

// WithLogger sets the logger used for write failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *TrackerService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *TrackerService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLocation sets the zone that defines a tracking day.
func WithLocation(loc *time.Location) Option {
	return func(s *TrackerService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithWriteTimeout bounds each background write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *TrackerService) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

func NewTrackerService(storage Storage, bus *EventBus, rules RuleEngine, opts ...Option) *TrackerService {
	if storage == nil || bus == nil || rules == nil {
		panic("NewTrackerService requires non-nil storage, bus, and rules")
	}
	s := &TrackerService{
		storage:      storage,
		bus:          bus,
		rules:        rules,
		logger:       slog.Default(),
		clock:        time.Now,
		loc:          time.Local,
		writeTimeout: DefaultWriteTimeout,
		sessions:     make(map[core.UserID]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func DefaultRuleEngine() RuleEngine {
	return &simpleRuleEngine{rules: []core.Rule{core.BadgeUnlockRule{}, core.ChallengeCompletedRule{}}}
}

// NewRuleEngine evaluates the given rules in order.
func NewRuleEngine(rules ...core.Rule) RuleEngine {
	return &simpleRuleEngine{rules: rules}
}

// Subscribe convenience method.
func (s *TrackerService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

func (s *TrackerService) SubscribeAll(handler func(context.Context, core.Event)) func() {
	return s.bus.SubscribeAll(handler)
}

func (s *TrackerService) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

func (s *TrackerService) now() time.Time { return s.clock().In(s.loc) }

// Location returns the zone that defines a tracking day.
func (s *TrackerService) Location() *time.Location { return s.loc }

func (s *TrackerService) session(ctx context.Context, user core.UserID) (*session, core.UserID, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, "", err
	}
	s.mu.Lock()
	sess, ok := s.sessions[normalized]
	s.mu.Unlock()
	if ok {
		return sess, normalized, nil
	}

	snap, err := s.storage.Load(ctx, normalized)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load %s: %w", normalized, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[normalized]; ok {
		return existing, normalized, nil
	}
	sess = newSession(snap.Clone())
	s.sessions[normalized] = sess
	return sess, normalized, nil
}

// Snapshot returns a copy of the user's current state.
func (s *TrackerService) Snapshot(ctx context.Context, user core.UserID) (core.Snapshot, error) {
	sess, _, err := s.session(ctx, user)
	if err != nil {
		return core.Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snap.Clone(), nil
}

// Badges returns the user's currently unlocked badges.
func (s *TrackerService) Badges(ctx context.Context, user core.UserID) (core.BadgeSet, error) {
	snap, err := s.Snapshot(ctx, user)
	if err != nil {
		return nil, err
	}
	return core.EvaluateBadges(snap.Profile, snap.Wins), nil
}

type mutation func(now time.Time, user core.UserID, snap core.Snapshot) (core.Snapshot, core.Event, dirty, error)

func (s *TrackerService) mutate(ctx context.Context, user core.UserID, fn mutation) (Outcome, error) {
	sess, normalized, err := s.session(ctx, user)
	if err != nil {
		return Outcome{}, err
	}
	now := s.now()

	sess.mu.Lock()
	before := sess.snap
	after, trigger, changed, err := fn(now, normalized, before)
	if err != nil {
		sess.mu.Unlock()
		return Outcome{}, err
	}
	if changed&dirtyProfile != 0 {
		stamp := now.UTC().Format(time.RFC3339)
		if after.Profile.CreatedAt == "" {
			after.Profile.CreatedAt = stamp
		}
		after.Profile.UpdatedAt = stamp
	}
	sess.snap = after
	events := append([]core.Event{trigger}, s.rules.Evaluate(ctx, before, after, trigger)...)
	s.persist(ctx, normalized, sess, changed, after.Clone())
	out := Outcome{Snapshot: after.Clone(), Events: events}
	sess.mu.Unlock()

	for _, ev := range events {
		s.bus.Publish(ctx, ev)
	}
	return out, nil
}

// persist schedules fire-and-forget writes for the changed field sets.
// Called with the session lock held so sequence numbers follow mutation order.
func (s *TrackerService) persist(ctx context.Context, user core.UserID, sess *session, changed dirty, snap core.Snapshot) {
	if changed&dirtyProfile != 0 {
		s.write(ctx, user, sess.writes[KindProfile], KindProfile, func(ctx context.Context) error {
			return s.storage.SaveProfile(ctx, user, snap.Profile)
		})
	}
	if changed&dirtyWins != 0 {
		s.write(ctx, user, sess.writes[KindWins], KindWins, func(ctx context.Context) error {
			return s.storage.SaveWins(ctx, user, snap.Wins)
		})
	}
	if changed&dirtyWeights != 0 {
		s.write(ctx, user, sess.writes[KindWeights], KindWeights, func(ctx context.Context) error {
			return s.storage.SaveWeights(ctx, user, snap.Weights)
		})
	}
}

func (s *TrackerService) write(ctx context.Context, user core.UserID, slot *writeSlot, kind string, save func(context.Context) error) {
	seq := slot.latest.Add(1)
	detached := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		slot.mu.Lock()
		defer slot.mu.Unlock()
		if slot.latest.Load() != seq {
			return
		}
		wctx, cancel := context.WithTimeout(detached, s.writeTimeout)
		defer cancel()
		if err := save(wctx); err != nil {
			s.logger.Error("persist failed", "user", user, "kind", kind, "error", err)
			s.bus.Publish(detached, core.NewPersistFailed(user, kind, err, s.now()))
		}
	}()
}

// LogWin records a win and advances streak, totals and challenges.
func (s *TrackerService) LogWin(ctx context.Context, user core.UserID, draft core.WinDraft) (Outcome, error) {
	if err := draft.Validate(); err != nil {
		return Outcome{}, err
	}
	return s.mutate(ctx, user, func(now time.Time, user core.UserID, snap core.Snapshot) (core.Snapshot, core.Event, dirty, error) {
		win := core.BuildWin(draft, now)
		snap.Profile, snap.Wins = core.ApplyWin(snap.Profile, snap.Wins, win, now)
		return snap, core.NewWinLogged(user, win, snap.Profile.Streak, now), dirtyProfile | dirtyWins, nil
	})
}

// LogWeight appends a weigh-in dated today.
func (s *TrackerService) LogWeight(ctx context.Context, user core.UserID, weight float64, note string) (Outcome, error) {
	if err := core.ValidateWeight(weight); err != nil {
		return Outcome{}, err
	}
	return s.mutate(ctx, user, func(now time.Time, user core.UserID, snap core.Snapshot) (core.Snapshot, core.Event, dirty, error) {
		entry := core.NewWeightEntry(user, weight, now, note)
		snap.Weights = core.ApplyWeightEntry(snap.Weights, entry)
		return snap, core.NewWeightLogged(user, entry, now), dirtyWeights, nil
	})
}

// AddChallenge creates a custom challenge at zero progress.
func (s *TrackerService) AddChallenge(ctx context.Context, user core.UserID, draft core.ChallengeDraft) (Outcome, error) {
	c, err := core.NewChallenge(draft)
	if err != nil {
		return Outcome{}, err
	}
	return s.mutate(ctx, user, func(now time.Time, user core.UserID, snap core.Snapshot) (core.Snapshot, core.Event, dirty, error) {
		snap.Profile = core.AddCustomChallenge(snap.Profile, c)
		return snap, core.NewChallengeEvent(core.EventChallengeAdded, user, c, now), dirtyProfile, nil
	})
}

// ProgressChallenge advances one challenge by one step.
func (s *TrackerService) ProgressChallenge(ctx context.Context, user core.UserID, id string) (Outcome, error) {
	return s.mutate(ctx, user, func(now time.Time, user core.UserID, snap core.Snapshot) (core.Snapshot, core.Event, dirty, error) {
		if _, ok := snap.Profile.FindChallenge(id); !ok {
			return snap, core.Event{}, 0, fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
		}
		snap.Profile = core.ApplyCustomChallengeProgress(snap.Profile, id)
		c, _ := snap.Profile.FindChallenge(id)
		return snap, core.NewChallengeEvent(core.EventChallengeProgressed, user, c, now), dirtyProfile, nil
	})
}

// CompleteOnboarding stores the survey answers and marks onboarding done.
func (s *TrackerService) CompleteOnboarding(ctx context.Context, user core.UserID, answers core.OnboardingAnswers) (Outcome, error) {
	if err := core.ValidateAnswers(answers); err != nil {
		return Outcome{}, err
	}
	return s.mutate(ctx, user, func(now time.Time, user core.UserID, snap core.Snapshot) (core.Snapshot, core.Event, dirty, error) {
		snap.Profile = core.CompleteOnboarding(snap.Profile, answers)
		return snap, core.NewProfileEvent(core.EventOnboardingCompleted, user, now), dirtyProfile, nil
	})
}

// UpdateProfile applies a name or avatar change.
func (s *TrackerService) UpdateProfile(ctx context.Context, user core.UserID, patch core.ProfilePatch) (Outcome, error) {
	if err := patch.Validate(); err != nil {
		return Outcome{}, err
	}
	return s.mutate(ctx, user, func(now time.Time, user core.UserID, snap core.Snapshot) (core.Snapshot, core.Event, dirty, error) {
		snap.Profile = core.UpdateProfile(snap.Profile, patch)
		return snap, core.NewProfileEvent(core.EventProfileUpdated, user, now), dirtyProfile, nil
	})
}

// Flush waits for in-flight writes or for ctx to end.
func (s *TrackerService) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ping checks that storage answers a read. Nothing is cached.
func (s *TrackerService) Ping(ctx context.Context) error {
	_, err := s.storage.Load(ctx, "healthcheck_probe")
	return err
}

// Close waits for outstanding writes and stops the event bus.
func (s *TrackerService) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		s.logger.Warn("writes still pending at close", "error", err)
	}
	s.bus.Close()
}

type simpleRuleEngine struct{ rules []core.Rule }

func (s *simpleRuleEngine) Evaluate(ctx context.Context, before, after core.Snapshot, trigger core.Event) []core.Event {
	var out []core.Event
	for _, r := range s.rules {
		out = append(out, r.Evaluate(ctx, before, after, trigger)...)
	}
	return out
}
