package device

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/pupsensor/pkg/lpf2"
)

// Profile describes a device in YAML.
type Profile struct {
	ID          *int           `yaml:"id"`
	FwVersion   string         `yaml:"fw_version"`
	HwVersion   string         `yaml:"hw_version"`
	CombiCaps   int            `yaml:"combi_caps"`
	DefaultMode int            `yaml:"default_mode"`
	Modes       []ModeProfile  `yaml:"modes"`
	Combis      []CombiProfile `yaml:"combis"`
}

// ModeProfile describes a mode in YAML.
type ModeProfile struct {
	Name     string    `yaml:"name"`
	Unit     string    `yaml:"unit"`
	Items    int       `yaml:"items"`
	Type     string    `yaml:"type"`
	Width    *int      `yaml:"width"`
	Decimals int       `yaml:"decimals"`
	Raw      []float32 `yaml:"raw"`
	Pct      []float32 `yaml:"pct"`
	SI       []float32 `yaml:"si"`
	Mapping  []int     `yaml:"mapping"`
	Data     []float64 `yaml:"data"`
}

// CombiProfile describes a preset combi slot in YAML.
type CombiProfile struct {
	Index int     `yaml:"index"`
	Items [][]int `yaml:"items"`
}

// ProfileError reports an invalid profile field.
type ProfileError struct {
	Field string
	Msg   string
}

// Error implements error.
func (e *ProfileError) Error() string {
	return fmt.Sprintf("profile %s: %s", e.Field, e.Msg)
}

// LoadProfile reads a profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseProfile(data)
}

// ParseProfile parses and validates a YAML profile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseVersion parses "major.minor.rev.build" into a version word.
func ParseVersion(s string) (uint32, error) {
	var major, minor, rev, build int
	if _, err := fmt.Sscanf(s, "%d.%d.%d.%d", &major, &minor, &rev, &build); err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return MakeVersion(major, minor, rev, build), nil
}

func validatePair(field string, vals []float32) error {
	if vals != nil && len(vals) != 2 {
		return &ProfileError{Field: field, Msg: "expect [min, max]"}
	}
	return nil
}

// Validate checks structural errors. Values out of range are clamped by Apply.
func (p *Profile) Validate() error {
	if len(p.Modes) > MaxModes {
		return &ProfileError{Field: "modes", Msg: fmt.Sprintf("at most %d modes", MaxModes)}
	}
	for _, field := range []struct {
		name, val string
	}{{"fw_version", p.FwVersion}, {"hw_version", p.HwVersion}} {
		if field.val == "" {
			continue
		}
		if _, err := ParseVersion(field.val); err != nil {
			return &ProfileError{Field: field.name, Msg: err.Error()}
		}
	}
	for n, m := range p.Modes {
		prefix := fmt.Sprintf("modes[%d].", n)
		if m.Type != "" {
			if _, err := lpf2.ParseDataType(m.Type); err != nil {
				return &ProfileError{Field: prefix + "type", Msg: fmt.Sprintf("unknown type %q", m.Type)}
			}
		}
		if err := validatePair(prefix+"raw", m.Raw); err != nil {
			return err
		}
		if err := validatePair(prefix+"pct", m.Pct); err != nil {
			return err
		}
		if err := validatePair(prefix+"si", m.SI); err != nil {
			return err
		}
		if m.Mapping != nil && len(m.Mapping) != 2 {
			return &ProfileError{Field: prefix + "mapping", Msg: "expect [in, out]"}
		}
	}
	for n, c := range p.Combis {
		if c.Index < 0 || c.Index >= MaxCombis {
			return &ProfileError{Field: fmt.Sprintf("combis[%d].index", n), Msg: "out of range"}
		}
		for i, ref := range c.Items {
			if len(ref) != 2 {
				return &ProfileError{Field: fmt.Sprintf("combis[%d].items[%d]", n, i), Msg: "expect [mode, item]"}
			}
		}
	}
	return nil
}

// Apply configures the device from the profile.
func (p *Profile) Apply(d *Device) error {
	if p.ID != nil {
		d.SetID(*p.ID)
	}
	if p.FwVersion != "" {
		ver, err := ParseVersion(p.FwVersion)
		if err != nil {
			return err
		}
		d.SetFwVersion(ver)
	}
	if p.HwVersion != "" {
		ver, err := ParseVersion(p.HwVersion)
		if err != nil {
			return err
		}
		d.SetHwVersion(ver)
	}
	d.SetCombiCaps(p.CombiCaps)
	if len(p.Modes) > 0 {
		d.SetModeCount(len(p.Modes))
	}
	for n, m := range p.Modes {
		if m.Name != "" {
			d.SetModeName(n, m.Name)
		}
		d.SetModeUnit(n, m.Unit)
		typ := lpf2.Int8
		if m.Type != "" {
			typ, _ = lpf2.ParseDataType(m.Type)
		}
		width := 8
		if m.Width != nil {
			width = *m.Width
		}
		d.SetModeFormat(n, m.Items, typ, width, m.Decimals)
		if m.Raw != nil {
			d.SetRawRange(n, m.Raw[0], m.Raw[1])
		}
		if m.Pct != nil {
			d.SetPctRange(n, m.Pct[0], m.Pct[1])
		}
		if m.SI != nil {
			d.SetSIRange(n, m.SI[0], m.SI[1])
		}
		if m.Mapping != nil {
			d.SetMapping(n, m.Mapping[0], m.Mapping[1])
		}
		for item, v := range m.Data {
			d.SetModeData(n, item, v)
		}
	}
	d.SetDefaultMode(p.DefaultMode)
	for n, c := range p.Combis {
		items := make([]CombiItem, len(c.Items))
		for i, ref := range c.Items {
			items[i] = CombiItem{Mode: ref[0], Item: ref[1]}
		}
		if err := d.SetCombi(c.Index, items); err != nil {
			return &ProfileError{Field: fmt.Sprintf("combis[%d]", n), Msg: err.Error()}
		}
	}
	return nil
}
