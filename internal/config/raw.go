package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

// Raw* types mirror the on-disk schema. Variants are tagged with a "type"
// field so the same file shape works for JSON, YAML and TOML.

type RawConfig struct {
	Sources []RawSource `json:"sources" yaml:"sources" toml:"sources" validate:"dive"`
	Sinks   []RawSink   `json:"sinks" yaml:"sinks" toml:"sinks" validate:"dive"`
	Regions []RawRegion `json:"regions" yaml:"regions" toml:"regions" validate:"dive"`
}

type RawSource struct {
	Name   string        `json:"name" yaml:"name" toml:"name"`
	ID     uint32        `json:"id" yaml:"id" toml:"id"`
	Source RawSourceType `json:"source" yaml:"source" toml:"source"`
}

type RawSourceType struct {
	Type string `json:"type" yaml:"type" toml:"type" validate:"required,oneof=Test URI"`
	URI  string `json:"uri,omitempty" yaml:"uri,omitempty" toml:"uri,omitempty" validate:"required_if=Type URI"`
}

type RawSink struct {
	Name string      `json:"name" yaml:"name" toml:"name"`
	ID   uint32      `json:"id" yaml:"id" toml:"id"`
	Sink RawSinkType `json:"sink" yaml:"sink" toml:"sink"`
}

type RawSinkType struct {
	Type       string        `json:"type" yaml:"type" toml:"type" validate:"required,oneof=OpenGLWindow"`
	FullScreen RawFullScreen `json:"full_screen" yaml:"full_screen" toml:"full_screen"`
}

type RawFullScreen struct {
	Type string          `json:"type" yaml:"type" toml:"type" validate:"required,oneof=Windowed Borderless Exclusive"`
	Name string          `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty" validate:"required_if=Type Borderless"`
	Info *RawMonitorInfo `json:"info,omitempty" yaml:"info,omitempty" toml:"info,omitempty" validate:"required_if=Type Exclusive"`
}

type RawMonitorInfo struct {
	Name       string        `json:"name" yaml:"name" toml:"name" validate:"required"`
	Resolution RawResolution `json:"resolution" yaml:"resolution" toml:"resolution"`
	// RefreshRate is in milli-Hz.
	RefreshRate uint32 `json:"refresh_rate" yaml:"refresh_rate" toml:"refresh_rate" validate:"gt=0"`
}

type RawResolution struct {
	Width  uint32 `json:"width" yaml:"width" toml:"width" validate:"gt=0"`
	Height uint32 `json:"height" yaml:"height" toml:"height" validate:"gt=0"`
}

type RawRegion struct {
	Name   string        `json:"name" yaml:"name" toml:"name"`
	ID     uint32        `json:"id" yaml:"id" toml:"id"`
	Region RawRegionType `json:"region" yaml:"region" toml:"region"`
}

type RawRegionType struct {
	Type   string `json:"type" yaml:"type" toml:"type" validate:"required,oneof=Display"`
	Source uint32 `json:"source" yaml:"source" toml:"source"`
	Sink   uint32 `json:"sink" yaml:"sink" toml:"sink"`
}

// MilliHzToHz converts a milli-Hz rate to the nearest whole Hz.
func MilliHzToHz(mhz uint32) uint32 {
	return uint32((uint64(mhz) + 500) / 1000)
}

// HzToMilliHz converts whole Hz to milli-Hz.
func HzToMilliHz(hz uint32) uint32 {
	return hz * 1000
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Check runs the schema-level field checks.
func (r *RawConfig) Check() error {
	err := structValidator().Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ConfigError{Err: err}
	}

	var result *multierror.Error
	for _, fe := range fieldErrs {
		result = multierror.Append(result, &ValidationError{
			Path: fieldPath(fe.Namespace()),
			Err:  fieldMessage(fe),
		})
	}
	return &ConfigError{Err: result.ErrorOrNil()}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "required_if":
		return fmt.Errorf("%s is required when %s", fe.Field(), strings.Replace(fe.Param(), " ", " is ", 1))
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Errorf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s failed %q check", fe.Field(), fe.Tag())
	}
}

// ToRuntime converts the on-disk schema into the engine's model.
func (r *RawConfig) ToRuntime() *RuntimeConfig {
	cfg := &RuntimeConfig{
		Sources: make([]Source, 0, len(r.Sources)),
		Sinks:   make([]Sink, 0, len(r.Sinks)),
		Regions: make([]Region, 0, len(r.Regions)),
	}

	for _, s := range r.Sources {
		src := Source{ID: s.ID, Name: s.Name}
		switch s.Source.Type {
		case "URI":
			src.Kind = SourceURI
			src.URI = s.Source.URI
		default:
			src.Kind = SourceTest
		}
		cfg.Sources = append(cfg.Sources, src)
	}

	for _, s := range r.Sinks {
		sink := Sink{ID: s.ID, Name: s.Name}
		fs := s.Sink.FullScreen
		switch fs.Type {
		case "Borderless":
			sink.Presentation = Borderless(fs.Name)
		case "Exclusive":
			if fs.Info != nil {
				sink.Presentation = Exclusive(
					fs.Info.Name,
					fs.Info.Resolution.Width,
					fs.Info.Resolution.Height,
					MilliHzToHz(fs.Info.RefreshRate),
				)
			} else {
				sink.Presentation = PresentationMode{Kind: ModeExclusive}
			}
		default:
			sink.Presentation = Windowed()
		}
		cfg.Sinks = append(cfg.Sinks, sink)
	}

	for _, rg := range r.Regions {
		cfg.Regions = append(cfg.Regions, Region{
			ID:       rg.ID,
			Name:     rg.Name,
			SourceID: rg.Region.Source,
			SinkID:   rg.Region.Sink,
		})
	}

	return cfg
}

// FromRuntime converts the engine's model back into the on-disk schema.
func FromRuntime(cfg *RuntimeConfig) *RawConfig {
	raw := &RawConfig{
		Sources: make([]RawSource, 0, len(cfg.Sources)),
		Sinks:   make([]RawSink, 0, len(cfg.Sinks)),
		Regions: make([]RawRegion, 0, len(cfg.Regions)),
	}

	for _, s := range cfg.Sources {
		rs := RawSource{Name: s.Name, ID: s.ID, Source: RawSourceType{Type: s.Kind.String()}}
		if s.Kind == SourceURI {
			rs.Source.URI = s.URI
		}
		raw.Sources = append(raw.Sources, rs)
	}

	for _, s := range cfg.Sinks {
		m := s.Presentation
		fs := RawFullScreen{Type: m.Kind.String()}
		switch m.Kind {
		case ModeBorderless:
			fs.Name = m.Monitor
		case ModeExclusive:
			fs.Info = &RawMonitorInfo{
				Name:        m.Monitor,
				Resolution:  RawResolution{Width: m.Width, Height: m.Height},
				RefreshRate: HzToMilliHz(m.RefreshHz),
			}
		}
		raw.Sinks = append(raw.Sinks, RawSink{
			Name: s.Name,
			ID:   s.ID,
			Sink: RawSinkType{Type: "OpenGLWindow", FullScreen: fs},
		})
	}

	for _, r := range cfg.Regions {
		raw.Regions = append(raw.Regions, RawRegion{
			Name:   r.Name,
			ID:     r.ID,
			Region: RawRegionType{Type: "Display", Source: r.SourceID, Sink: r.SinkID},
		})
	}

	return raw
}
