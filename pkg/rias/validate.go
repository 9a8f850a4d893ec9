package rias

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/MrWong99/rias/pkg/lavalink"
)

// maxSearchQueryLen is the longest query forwarded to a node's loadtracks
// endpoint; anything longer is truncated.
const maxSearchQueryLen = 500

// defaultSearchPrefix is prepended to bare (non-URL) queries when no search
// source is configured.
const defaultSearchPrefix = "ytsearch"

// validSnowflake reports whether s is a 17–20 digit decimal string, the
// shape of every Discord id.
func validSnowflake(s string) bool {
	if len(s) < 17 || len(s) > 20 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// validateGuildID returns ErrInvalidGuild unless id is a snowflake.
func validateGuildID(id string) error {
	if !validSnowflake(id) {
		return fmt.Errorf("%w: %q", ErrInvalidGuild, id)
	}
	return nil
}

// validateChannelID returns ErrInvalidChannel unless id is a snowflake.
func validateChannelID(id string) error {
	if !validSnowflake(id) {
		return fmt.Errorf("%w: %q", ErrInvalidChannel, id)
	}
	return nil
}

// validateVolume returns ErrInvalidVolume unless v is within [0, 1000].
func validateVolume(v int) error {
	if v < 0 || v > 1000 {
		return fmt.Errorf("%w: got %d", ErrInvalidVolume, v)
	}
	return nil
}

// validatePosition returns ErrInvalidPosition for negative positions.
func validatePosition(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidPosition, ms)
	}
	return nil
}

// validateEqualizerBand checks the band index and gain ranges of one
// equalizer adjustment.
func validateEqualizerBand(band int, gain float64) error {
	if band < 0 || band > 14 {
		return fmt.Errorf("equalizer band %d out of range [0, 14]", band)
	}
	if gain < -0.25 || gain > 1.0 {
		return fmt.Errorf("equalizer gain %g out of range [-0.25, 1.0]", gain)
	}
	return nil
}

// validateTimescale checks that each timescale component is in (0, 10].
func validateTimescale(speed, pitch, rate float64) error {
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"speed", speed},
		{"pitch", pitch},
		{"rate", rate},
	} {
		if c.value <= 0 || c.value > 10 {
			return fmt.Errorf("timescale %s %g out of range (0, 10]", c.name, c.value)
		}
	}
	return nil
}

// validateFilters checks the range constraints of a filter chain before it
// is sent to a node. Zero-valued timescale components count as unset (the
// node defaults them to 1.0) and are skipped.
func validateFilters(f lavalink.Filters) error {
	for _, b := range f.Equalizer {
		if err := validateEqualizerBand(b.Band, b.Gain); err != nil {
			return err
		}
	}
	if ts := f.Timescale; ts != nil {
		speed, pitch, rate := ts.Speed, ts.Pitch, ts.Rate
		if speed == 0 {
			speed = 1
		}
		if pitch == 0 {
			pitch = 1
		}
		if rate == 0 {
			rate = 1
		}
		if err := validateTimescale(speed, pitch, rate); err != nil {
			return err
		}
	}
	return nil
}

// isURL reports whether s parses as an absolute http(s) URL.
func isURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// normalizeQuery prepares a user query for loadtracks: trims surrounding
// whitespace, truncates to maxSearchQueryLen, and prefixes a search source
// when the query is neither a URL nor already source-qualified. An empty
// source falls back to defaultSearchPrefix.
func normalizeQuery(query, source string) string {
	q := strings.TrimSpace(query)
	if len(q) > maxSearchQueryLen {
		q = q[:maxSearchQueryLen]
	}
	if q == "" || isURL(q) {
		return q
	}
	if hasSourcePrefix(q) {
		return q
	}
	if source == "" {
		source = defaultSearchPrefix
	}
	return source + ":" + q
}

// hasSourcePrefix reports whether q already starts with an identifier prefix
// such as "ytsearch:" or "scsearch:". A colon inside an ordinary title (for
// example after a space) does not count.
func hasSourcePrefix(q string) bool {
	i := strings.IndexByte(q, ':')
	if i <= 0 || i > 16 {
		return false
	}
	for _, r := range q[:i] {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
