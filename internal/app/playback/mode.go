package playback

// RepeatMode defines the repeat behavior.
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatOne
	RepeatAll
)

// String returns the repeat mode name.
func (m RepeatMode) String() string {
	switch m {
	case RepeatNone:
		return "none"
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseRepeatMode parses a repeat mode name, defaulting to RepeatNone.
func ParseRepeatMode(s string) RepeatMode {
	switch s {
	case "one":
		return RepeatOne
	case "all":
		return RepeatAll
	default:
		return RepeatNone
	}
}

// ShuffleMode defines the shuffle behavior.
type ShuffleMode int

const (
	ShuffleNone ShuffleMode = iota
	ShuffleAll
)

// String returns the shuffle mode name.
func (m ShuffleMode) String() string {
	if m == ShuffleAll {
		return "all"
	}
	return "none"
}

// ParseShuffleMode parses a shuffle mode name, defaulting to ShuffleNone.
func ParseShuffleMode(s string) ShuffleMode {
	if s == "all" {
		return ShuffleAll
	}
	return ShuffleNone
}

// PlaybackMode holds the session's repeat and shuffle modes.
type PlaybackMode struct {
	Repeat  RepeatMode
	Shuffle ShuffleMode
}
