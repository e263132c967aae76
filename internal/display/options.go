package display

import (
	"sort"

	"github.com/1broseidon/projectmapper/internal/config"
)

// AvailableConfig lists every value a config file may currently use on this
// machine. Refresh rates are in milli-Hz to match the config schema.
type AvailableConfig struct {
	Sinks   []SinkOption   `json:"sinks"`
	Sources []SourceOption `json:"sources"`
	Regions []RegionOption `json:"regions"`
}

type SourceOption struct {
	TypeName    string            `json:"type_name"`
	TypeOptions SourceTypeOptions `json:"type_options"`
}

type SourceTypeOptions struct {
	Type     string   `json:"type"`
	URITypes []string `json:"uri_types,omitempty"`
}

type SinkOption struct {
	TypeName    string          `json:"type_name"`
	TypeOptions SinkTypeOptions `json:"type_options"`
}

type SinkTypeOptions struct {
	Type       string            `json:"type"`
	FullScreen FullscreenOptions `json:"full_screen"`
}

type FullscreenOptions struct {
	Windowed   WindowOptions     `json:"windowed"`
	Borderless BorderlessOptions `json:"borderless"`
	Exclusive  ExclusiveOptions  `json:"exclusive"`
}

type WindowOptions struct {
	TypeName string `json:"type_name"`
}

type BorderlessOptions struct {
	TypeName string   `json:"type_name"`
	Monitors []string `json:"monitors"`
}

// ExclusiveOptions maps monitor name -> "WxH" -> refresh rates (milli-Hz).
type ExclusiveOptions struct {
	TypeName       string                         `json:"type_name"`
	MonitorConfigs map[string]map[string][]uint32 `json:"monitor_configs"`
}

type RegionOption struct {
	TypeName    string            `json:"type_name"`
	TypeOptions RegionTypeOptions `json:"type_options"`
}

type RegionTypeOptions struct {
	Type string `json:"type"`
}

// AvailableOptions describes the config choices backed by inv. uriProtocols
// are the URI schemes the media backend can open.
func AvailableOptions(inv *Inventory, uriProtocols []string) AvailableConfig {
	protocols := append([]string(nil), uriProtocols...)
	sort.Strings(protocols)

	exclusive := make(map[string]map[string][]uint32, len(inv.names))
	for _, m := range inv.Monitors() {
		byRes := make(map[string][]uint32)
		for _, r := range m.Resolutions() {
			rates := m.RefreshRates(r)
			mhz := make([]uint32, 0, len(rates))
			for _, hz := range rates {
				mhz = append(mhz, config.HzToMilliHz(hz))
			}
			byRes[r.String()] = mhz
		}
		exclusive[m.Name] = byRes
	}

	return AvailableConfig{
		Sinks: []SinkOption{{
			TypeName: "OpenGLWindow",
			TypeOptions: SinkTypeOptions{
				Type: "OpenGLWindow",
				FullScreen: FullscreenOptions{
					Windowed:   WindowOptions{TypeName: config.ModeWindowed.String()},
					Borderless: BorderlessOptions{TypeName: config.ModeBorderless.String(), Monitors: inv.Names()},
					Exclusive:  ExclusiveOptions{TypeName: config.ModeExclusive.String(), MonitorConfigs: exclusive},
				},
			},
		}},
		Sources: []SourceOption{
			{TypeName: config.SourceURI.String(), TypeOptions: SourceTypeOptions{Type: config.SourceURI.String(), URITypes: protocols}},
			{TypeName: config.SourceTest.String(), TypeOptions: SourceTypeOptions{Type: config.SourceTest.String()}},
		},
		Regions: []RegionOption{
			{TypeName: "Display", TypeOptions: RegionTypeOptions{Type: "Display"}},
		},
	}
}
