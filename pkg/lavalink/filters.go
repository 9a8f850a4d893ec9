package lavalink

// Filters is the composable audio filter record sent in player updates.
// Nil sub-filters are omitted from the wire payload; a zero-value Filters is
// the canonical "no filters" record used to clear all filters.
type Filters struct {
	// Volume scales the player output, 1.0 is unity. Range 0–5.
	Volume *float64 `json:"volume,omitempty"`

	// Equalizer holds up to 15 band adjustments.
	Equalizer []EqualizerBand `json:"equalizer,omitempty"`

	Karaoke    *Karaoke    `json:"karaoke,omitempty"`
	Timescale  *Timescale  `json:"timescale,omitempty"`
	Tremolo    *Tremolo    `json:"tremolo,omitempty"`
	Vibrato    *Vibrato    `json:"vibrato,omitempty"`
	Rotation   *Rotation   `json:"rotation,omitempty"`
	Distortion *Distortion `json:"distortion,omitempty"`
	ChannelMix *ChannelMix `json:"channelMix,omitempty"`
	LowPass    *LowPass    `json:"lowPass,omitempty"`

	// PluginFilters carries plugin-defined filter blocks keyed by plugin name.
	PluginFilters map[string]map[string]any `json:"pluginFilters,omitempty"`
}

// EqualizerBand adjusts one of the 15 equalizer bands. Band is 0–14 and
// Gain is −0.25–1.0, where 0 leaves the band untouched.
type EqualizerBand struct {
	Band int     `json:"band"`
	Gain float64 `json:"gain"`
}

// Karaoke suppresses the frequency range a lead vocal typically occupies.
type Karaoke struct {
	Level       float64 `json:"level"`
	MonoLevel   float64 `json:"monoLevel"`
	FilterBand  float64 `json:"filterBand"`
	FilterWidth float64 `json:"filterWidth"`
}

// Timescale changes speed, pitch and rate. Each field is in (0, 10] with
// 1.0 as identity.
type Timescale struct {
	Speed float64 `json:"speed"`
	Pitch float64 `json:"pitch"`
	Rate  float64 `json:"rate"`
}

// Tremolo oscillates the volume.
type Tremolo struct {
	Frequency float64 `json:"frequency"`
	Depth     float64 `json:"depth"`
}

// Vibrato oscillates the pitch.
type Vibrato struct {
	Frequency float64 `json:"frequency"`
	Depth     float64 `json:"depth"`
}

// Rotation pans the audio around the stereo field ("8D").
type Rotation struct {
	RotationHz float64 `json:"rotationHz"`
}

// Distortion applies a waveshaping distortion.
type Distortion struct {
	SinOffset float64 `json:"sinOffset"`
	SinScale  float64 `json:"sinScale"`
	CosOffset float64 `json:"cosOffset"`
	CosScale  float64 `json:"cosScale"`
	TanOffset float64 `json:"tanOffset"`
	TanScale  float64 `json:"tanScale"`
	Offset    float64 `json:"offset"`
	Scale     float64 `json:"scale"`
}

// ChannelMix blends the left and right channels.
type ChannelMix struct {
	LeftToLeft   float64 `json:"leftToLeft"`
	LeftToRight  float64 `json:"leftToRight"`
	RightToLeft  float64 `json:"rightToLeft"`
	RightToRight float64 `json:"rightToRight"`
}

// LowPass attenuates high frequencies. Smoothing 1.0 disables the filter.
type LowPass struct {
	Smoothing float64 `json:"smoothing"`
}

// BassBoostLevel selects the intensity of the bass boost preset.
type BassBoostLevel string

const (
	BassBoostLow    BassBoostLevel = "low"
	BassBoostMedium BassBoostLevel = "medium"
	BassBoostHigh   BassBoostLevel = "high"
)

// bassBoostGains maps each level to the gain applied to the low bands.
var bassBoostGains = map[BassBoostLevel]float64{
	BassBoostLow:    0.15,
	BassBoostMedium: 0.3,
	BassBoostHigh:   0.5,
}

// FilterBuilder composes a [Filters] record from convenience presets and
// raw setters. Presets stack; the last write to a given filter wins.
type FilterBuilder struct {
	filters Filters
}

// NewFilterBuilder returns an empty builder.
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{}
}

// Volume sets the output volume multiplier (0–5).
func (b *FilterBuilder) Volume(v float64) *FilterBuilder {
	b.filters.Volume = &v
	return b
}

// Equalizer replaces the equalizer band list.
func (b *FilterBuilder) Equalizer(bands ...EqualizerBand) *FilterBuilder {
	b.filters.Equalizer = bands
	return b
}

// BassBoost applies a gain to the four lowest equalizer bands.
func (b *FilterBuilder) BassBoost(level BassBoostLevel) *FilterBuilder {
	gain, ok := bassBoostGains[level]
	if !ok {
		gain = bassBoostGains[BassBoostMedium]
	}
	bands := make([]EqualizerBand, 4)
	for i := range bands {
		bands[i] = EqualizerBand{Band: i, Gain: gain}
	}
	b.filters.Equalizer = bands
	return b
}

// Nightcore speeds the track up and raises its pitch.
func (b *FilterBuilder) Nightcore() *FilterBuilder {
	b.filters.Timescale = &Timescale{Speed: 1.2, Pitch: 1.2, Rate: 1.0}
	return b
}

// Vaporwave slows the track down and lowers its pitch.
func (b *FilterBuilder) Vaporwave() *FilterBuilder {
	b.filters.Timescale = &Timescale{Speed: 0.85, Pitch: 0.8, Rate: 1.0}
	return b
}

// EightD rotates the audio around the stereo field.
func (b *FilterBuilder) EightD() *FilterBuilder {
	b.filters.Rotation = &Rotation{RotationHz: 0.2}
	return b
}

// Karaoke applies the default vocal suppression filter.
func (b *FilterBuilder) Karaoke() *FilterBuilder {
	b.filters.Karaoke = &Karaoke{Level: 1.0, MonoLevel: 1.0, FilterBand: 220.0, FilterWidth: 100.0}
	return b
}

// Tremolo applies a default volume oscillation.
func (b *FilterBuilder) Tremolo() *FilterBuilder {
	b.filters.Tremolo = &Tremolo{Frequency: 2.0, Depth: 0.5}
	return b
}

// Vibrato applies a default pitch oscillation.
func (b *FilterBuilder) Vibrato() *FilterBuilder {
	b.filters.Vibrato = &Vibrato{Frequency: 2.0, Depth: 0.5}
	return b
}

// LowPass applies a default high-frequency attenuation.
func (b *FilterBuilder) LowPass() *FilterBuilder {
	b.filters.LowPass = &LowPass{Smoothing: 20.0}
	return b
}

// Plugin sets a plugin-defined filter block.
func (b *FilterBuilder) Plugin(name string, values map[string]any) *FilterBuilder {
	if b.filters.PluginFilters == nil {
		b.filters.PluginFilters = make(map[string]map[string]any)
	}
	b.filters.PluginFilters[name] = values
	return b
}

// Build returns the composed record.
func (b *FilterBuilder) Build() Filters {
	return b.filters
}
