package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"presensi/internal/clock"
	"presensi/internal/geo"
	"presensi/internal/presence"
)

// Store is the row collaborator over presences and user profiles.
type Store interface {
	InsertRecord(ctx context.Context, rec Record) (Record, error)
	ListRecords(ctx context.Context, q Query) ([]Record, error)
	ListProfiles(ctx context.Context) ([]UserProfile, error)
}

// Recorder observes marking outcomes.
type Recorder interface {
	ObserveMark(result string)
	ObserveDistance(meters float64)
}

// Mark outcomes reported to the Recorder.
const (
	ResultAccepted        = "accepted"
	ResultWindowClosed    = "window_closed"
	ResultAlreadyMarked   = "already_marked"
	ResultPositionError   = "position_error"
	ResultOutsideGeofence = "outside_geofence"
	ResultStoreError      = "store_error"
	ResultInProgress      = "in_progress"
)

// Service coordinates window gating, duplicate checks and geofencing.
type Service struct {
	store    Store
	policy   presence.Policy
	eval     *Evaluator
	clock    clock.Clock
	recorder Recorder

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewService creates a service backed by a store.
func NewService(store Store, policy presence.Policy, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		store:    store,
		policy:   policy,
		eval:     NewEvaluator(policy.Location, policy.Required),
		clock:    clk,
		inFlight: make(map[string]struct{}),
	}
}

// WithRecorder attaches an outcome recorder.
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

func (s *Service) Evaluator() *Evaluator { return s.eval }

func (s *Service) Policy() presence.Policy { return s.policy }

func (s *Service) Now() time.Time { return s.clock.Now() }

func (s *Service) observe(result string) {
	if s.recorder != nil {
		s.recorder.ObserveMark(result)
	}
}

// Eligibility reports the open window userID may mark now. It never touches
// the device position, so clients can call it before asking for location.
func (s *Service) Eligibility(ctx context.Context, userID string) (presence.Window, error) {
	now := s.clock.Now()
	w, ok := s.policy.Current(now)
	if !ok {
		return presence.Window{}, &Rejection{
			Err:     ErrWindowClosed,
			Message: "presence can only be marked during:\n" + presence.DescribeWindows(s.policy.Windows),
		}
	}
	records, err := s.History(ctx, userID)
	if err != nil {
		return presence.Window{}, err
	}
	if s.eval.AlreadyMarked(records, userID, s.eval.DateOf(now), w.Kind) {
		return presence.Window{}, &Rejection{
			Err:     ErrAlreadyMarked,
			Message: fmt.Sprintf("you already marked %s presence today", strings.ToLower(w.Label)),
		}
	}
	return w, nil
}

// MarkPresence runs the full marking flow for userID: window, duplicate check,
// position, geofence, insert. Only one call per user may be in flight.
func (s *Service) MarkPresence(ctx context.Context, userID string, locator geo.Locator) (Record, error) {
	if userID == "" {
		return Record{}, errors.New("user id required")
	}
	if !s.acquire(userID) {
		s.observe(ResultInProgress)
		return Record{}, ErrMarkInProgress
	}
	defer s.release(userID)

	w, err := s.Eligibility(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrWindowClosed):
			s.observe(ResultWindowClosed)
		case errors.Is(err, ErrAlreadyMarked):
			s.observe(ResultAlreadyMarked)
		default:
			s.observe(ResultStoreError)
		}
		return Record{}, err
	}

	pos, err := locator.CurrentPosition(ctx)
	if err != nil {
		s.observe(ResultPositionError)
		return Record{}, err
	}

	distance, inside := s.policy.Geofence.Check(pos)
	if s.recorder != nil {
		s.recorder.ObserveDistance(distance)
	}
	if !inside {
		s.observe(ResultOutsideGeofence)
		return Record{}, &Rejection{
			Err:            ErrOutsideGeofence,
			Message:        "you are outside the area allowed for presence",
			DistanceMeters: distance,
		}
	}

	rec, err := s.store.InsertRecord(ctx, Record{
		UserID:         userID,
		CreatedAt:      s.clock.Now().UTC(),
		Kind:           w.Kind,
		Label:          w.Label,
		Location:       pos,
		DistanceMeters: &distance,
	})
	if err != nil {
		s.observe(ResultStoreError)
		return Record{}, fmt.Errorf("%w: insert presence: %w", ErrStore, err)
	}
	s.observe(ResultAccepted)
	return rec, nil
}

// History returns userID's records, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]Record, error) {
	records, err := s.store.ListRecords(ctx, Query{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("%w: list presences: %w", ErrStore, err)
	}
	return records, nil
}

// Overview returns every record joined with its profile, newest first, and the
// profile list.
func (s *Service) Overview(ctx context.Context) ([]Record, []UserProfile, error) {
	records, err := s.store.ListRecords(ctx, Query{})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list presences: %w", ErrStore, err)
	}
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list profiles: %w", ErrStore, err)
	}
	return Join(records, profiles), profiles, nil
}

// MonthRecords returns the joined records of one local month and all profiles.
func (s *Service) MonthRecords(ctx context.Context, year int, month time.Month) ([]Record, []UserProfile, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, s.eval.Location())
	records, err := s.store.ListRecords(ctx, Query{From: from, To: from.AddDate(0, 1, 0), Ascending: true})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list presences: %w", ErrStore, err)
	}
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list profiles: %w", ErrStore, err)
	}
	return Join(records, profiles), profiles, nil
}

func (s *Service) acquire(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[userID]; busy {
		return false
	}
	s.inFlight[userID] = struct{}{}
	return true
}

func (s *Service) release(userID string) {
	s.mu.Lock()
	delete(s.inFlight, userID)
	s.mu.Unlock()
}
