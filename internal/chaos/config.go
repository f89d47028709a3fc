package chaos

import (
	"fmt"
	"strconv"
	"strings"
)

// Config holds chaos configuration
type Config struct {
	Enabled      bool   `mapstructure:"enabled"`
	Profile      string `mapstructure:"profile"`
	DropPct      int    `mapstructure:"drop_pct"`
	ReadErrorPct int    `mapstructure:"read_error_pct"`
	DelayMsMin   int    `mapstructure:"delay_ms_min"`
	DelayMsMax   int    `mapstructure:"delay_ms_max"`
	Seed         int64  `mapstructure:"seed"`
	WindowMs     int    `mapstructure:"window_ms"`
}

// Profile is the parsed form of a profile string
type Profile struct {
	DropPct      int
	ReadErrorPct int
	DelayMin     int
	DelayMax     int
}

// ParseProfile parses a profile string like "drop-pct=30,delay=50-250,read-error-pct=5"
func ParseProfile(profile string) (Profile, error) {
	var p Profile
	if profile == "" {
		return p, nil
	}

	for _, part := range strings.Split(profile, ",") {
		part = strings.TrimSpace(part)
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return Profile{}, fmt.Errorf("invalid profile entry %q", part)
		}

		var err error
		switch key {
		case "drop-pct":
			p.DropPct, err = parsePct(val)
		case "read-error-pct":
			p.ReadErrorPct, err = parsePct(val)
		case "delay":
			lo, hi, found := strings.Cut(val, "-")
			if !found {
				hi = lo
			}
			if p.DelayMin, err = strconv.Atoi(lo); err != nil {
				return Profile{}, fmt.Errorf("invalid delay min: %w", err)
			}
			if p.DelayMax, err = strconv.Atoi(hi); err != nil {
				return Profile{}, fmt.Errorf("invalid delay max: %w", err)
			}
			if p.DelayMin > p.DelayMax {
				return Profile{}, fmt.Errorf("delay min %d exceeds max %d", p.DelayMin, p.DelayMax)
			}
		default:
			return Profile{}, fmt.Errorf("unknown profile key %q", key)
		}
		if err != nil {
			return Profile{}, fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	return p, nil
}

func parsePct(val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("%d is outside 0-100", n)
	}
	return n, nil
}
