package attendance

import "errors"

var (
	ErrWindowClosed    = errors.New("presence window closed")
	ErrAlreadyMarked   = errors.New("presence already marked today")
	ErrOutsideGeofence = errors.New("outside the allowed area")
	ErrMarkInProgress  = errors.New("presence marking already in progress")
	ErrStore           = errors.New("store error")
)

// Rejection is a validation refusal, not a system failure. Message is meant
// for the user.
type Rejection struct {
	Err     error
	Message string
	// DistanceMeters is set for geofence rejections.
	DistanceMeters float64
}

func (r *Rejection) Error() string { return r.Message }

func (r *Rejection) Unwrap() error { return r.Err }

// IsRejection reports whether err is a validation refusal.
func IsRejection(err error) bool {
	var rej *Rejection
	return errors.As(err, &rej)
}
