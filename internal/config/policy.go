package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"presensi/internal/geo"
	"presensi/internal/presence"
	"presensi/internal/report"
)

// Policy is the attendance policy file. It is loaded once at start-up and
// never changed at runtime.
type Policy struct {
	TimeZone        string         `yaml:"timezone" validate:"required"`
	RefreshInterval time.Duration  `yaml:"refresh_interval" validate:"gte=0"`
	Geofence        GeofenceConfig `yaml:"geofence"`
	Windows         []WindowConfig `yaml:"windows" validate:"required,min=1,dive"`
	Required        []string       `yaml:"required" validate:"required,min=1,dive,required"`
	Institutions    []Institution  `yaml:"institutions" validate:"required,min=1,dive"`
	Report          ReportConfig   `yaml:"report"`
}

type GeofenceConfig struct {
	Latitude     float64 `yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64 `yaml:"longitude" validate:"gte=-180,lte=180"`
	RadiusMeters float64 `yaml:"radius_meters" validate:"gt=0"`
}

type WindowConfig struct {
	Kind  string `yaml:"kind" validate:"required"`
	Label string `yaml:"label" validate:"required"`
	Start string `yaml:"start" validate:"required,datetime=15:04"`
	End   string `yaml:"end" validate:"required,datetime=15:04"`
}

type Institution struct {
	Code      string `yaml:"code" validate:"required"`
	Authority string `yaml:"authority" validate:"required"`
}

type ReportConfig struct {
	City  string `yaml:"city"`
	Title string `yaml:"title"`
}

// DefaultPolicy is the policy of the Jepara school deployment.
func DefaultPolicy() Policy {
	return Policy{
		TimeZone:        "Asia/Jakarta",
		RefreshInterval: time.Minute,
		Geofence: GeofenceConfig{
			Latitude:     -6.5695979,
			Longitude:    110.6871696,
			RadiusMeters: 30,
		},
		Windows: []WindowConfig{
			{Kind: string(presence.KindMorning), Label: "Pagi", Start: "07:00", End: "08:00"},
			{Kind: string(presence.KindAfternoon), Label: "Siang", Start: "12:00", End: "14:00"},
		},
		Required: []string{string(presence.KindMorning), string(presence.KindAfternoon)},
		Institutions: []Institution{
			{Code: "KB", Authority: "Bunda Nur"},
			{Code: "TK", Authority: "Triyanto"},
			{Code: "TPA", Authority: "Bunda Wid"},
		},
		Report: ReportConfig{City: "Jepara", Title: "Kepala Sekolah"},
	}
}

var validate = validator.New()

// LoadPolicy reads the YAML policy at path. An empty path yields
// DefaultPolicy. Fields missing from the file keep their defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}
	return ParsePolicy(raw)
}

// ParsePolicy decodes and validates a YAML policy document.
func ParsePolicy(raw []byte) (Policy, error) {
	p := DefaultPolicy()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	if err := validate.Struct(p); err != nil {
		return Policy{}, fmt.Errorf("invalid policy: %w", err)
	}
	if _, err := p.Presence(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Location loads the policy's time zone.
func (p Policy) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", p.TimeZone, err)
	}
	return loc, nil
}

// Presence converts the file form into the runtime policy.
func (p Policy) Presence() (presence.Policy, error) {
	loc, err := p.Location()
	if err != nil {
		return presence.Policy{}, err
	}
	out := presence.Policy{
		Location: loc,
		Geofence: geo.Geofence{
			Center:       geo.Coordinate{Latitude: p.Geofence.Latitude, Longitude: p.Geofence.Longitude},
			RadiusMeters: p.Geofence.RadiusMeters,
		},
	}
	for _, w := range p.Windows {
		start, err := presence.ParseClock(w.Start)
		if err != nil {
			return presence.Policy{}, fmt.Errorf("window %s: %w", w.Kind, err)
		}
		end, err := presence.ParseClock(w.End)
		if err != nil {
			return presence.Policy{}, fmt.Errorf("window %s: %w", w.Kind, err)
		}
		out.Windows = append(out.Windows, presence.Window{
			Kind:  presence.Kind(w.Kind),
			Start: start,
			End:   end,
			Label: w.Label,
		})
	}
	for _, k := range p.Required {
		out.Required = append(out.Required, presence.Kind(k))
	}
	if err := out.Validate(); err != nil {
		return presence.Policy{}, fmt.Errorf("invalid policy: %w", err)
	}
	return out, nil
}

// ReportInstitutions lists the institutions in report order.
func (p Policy) ReportInstitutions() []report.Institution {
	out := make([]report.Institution, len(p.Institutions))
	for i, inst := range p.Institutions {
		out[i] = report.Institution{Code: inst.Code, Authority: inst.Authority}
	}
	return out
}

// Monthly describes the monthly report of year/month signed at signedAt.
func (p Policy) Monthly(year int, month time.Month, signedAt time.Time) (report.Monthly, error) {
	loc, err := p.Location()
	if err != nil {
		return report.Monthly{}, err
	}
	return report.Monthly{
		Year:         year,
		Month:        month,
		Institutions: p.ReportInstitutions(),
		City:         p.Report.City,
		Title:        p.Report.Title,
		Location:     loc,
		SignedAt:     signedAt,
	}, nil
}
