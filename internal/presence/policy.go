package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"presensi/internal/clock"
	"presensi/internal/geo"
)

// Policy is the deployment-wide presence configuration. It is built once at
// start-up and never mutated afterwards.
type Policy struct {
	Location *time.Location
	Windows  []Window
	Required []Kind
	Geofence geo.Geofence
}

// Validate checks every window and the geofence radius.
func (p Policy) Validate() error {
	if p.Location == nil {
		return errors.New("policy location required")
	}
	if len(p.Windows) == 0 {
		return errors.New("at least one window required")
	}
	for _, w := range p.Windows {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	for _, k := range p.Required {
		if _, ok := p.Window(k); !ok {
			return fmt.Errorf("required kind %s has no window", k)
		}
	}
	if p.Geofence.RadiusMeters <= 0 {
		return errors.New("geofence radius must be positive")
	}
	return nil
}

// Current returns the open window at now, if any.
func (p Policy) Current(now time.Time) (Window, bool) {
	return CurrentWindow(now, p.Location, p.Windows)
}

// Window looks up the configured window for kind.
func (p Policy) Window(kind Kind) (Window, bool) {
	for _, w := range p.Windows {
		if w.Kind == kind {
			return w, true
		}
	}
	return Window{}, false
}

// State is one observation of the window policy.
type State struct {
	At     time.Time `json:"at"`
	Open   bool      `json:"open"`
	Window *Window   `json:"window,omitempty"`
}

func (p Policy) state(now time.Time) State {
	st := State{At: now.In(p.Location)}
	if w, ok := p.Current(now); ok {
		st.Open = true
		st.Window = &w
	}
	return st
}

func sameState(a, b State) bool {
	if a.Open != b.Open {
		return false
	}
	if !a.Open {
		return true
	}
	return *a.Window == *b.Window
}

// Watch re-evaluates the policy every interval and emits the state once
// immediately and then whenever the open window changes. The ticker stops and
// the channel closes when ctx is cancelled.
func (p Policy) Watch(ctx context.Context, clk clock.Clock, interval time.Duration) <-chan State {
	if interval <= 0 {
		interval = time.Minute
	}
	out := make(chan State, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := p.state(clk.Now())
		select {
		case out <- last:
		case <-ctx.Done():
			return
		}
		for {
			select {
			case <-ticker.C:
				st := p.state(clk.Now())
				if sameState(st, last) {
					continue
				}
				last = st
				select {
				case out <- st:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
