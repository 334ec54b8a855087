// Package queue provides the queue title entity describing where a queue came from.
package queue

import "strings"

// TitleType represents the source kind of a queue.
type TitleType string

const (
	TitleTypeUnknown   TitleType = "unknown"
	TitleTypeAudios    TitleType = "audios"
	TitleTypeArtist    TitleType = "artist"
	TitleTypeAlbum     TitleType = "album"
	TitleTypeSearch    TitleType = "search"
	TitleTypeDownloads TitleType = "downloads"
)

const titleSeparator = ":"

// Title describes the origin of a queue (e.g. album "Abbey Road").
type Title struct {
	Type  TitleType
	Value string
}

// NewTitle creates a title of the given type.
func NewTitle(t TitleType, value string) Title {
	return Title{Type: t, Value: value}
}

// String returns "type:value". An unset title renders as "unknown:".
func (t Title) String() string {
	typ := t.Type
	if typ == "" {
		typ = TitleTypeUnknown
	}
	return string(typ) + titleSeparator + t.Value
}

// IsZero reports whether the title carries no information.
func (t Title) IsZero() bool {
	return (t.Type == "" || t.Type == TitleTypeUnknown) && t.Value == ""
}

// ParseTitle parses a title produced by String. Unknown or missing types
// become TitleTypeUnknown; the value may itself contain separators.
func ParseTitle(s string) Title {
	s = strings.TrimSpace(s)
	if s == "" {
		return Title{Type: TitleTypeUnknown}
	}

	typ, value, found := strings.Cut(s, titleSeparator)
	if !found {
		return Title{Type: TitleTypeUnknown, Value: s}
	}

	switch TitleType(typ) {
	case TitleTypeAudios, TitleTypeArtist, TitleTypeAlbum, TitleTypeSearch, TitleTypeDownloads, TitleTypeUnknown:
		return Title{Type: TitleType(typ), Value: value}
	default:
		return Title{Type: TitleTypeUnknown, Value: s}
	}
}
