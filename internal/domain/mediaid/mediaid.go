// Package mediaid provides the media identifier used between the playback
// connection and the media session.
package mediaid

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Type represents the kind of media an identifier points at.
type Type string

const (
	TypeUnknown    Type = "unknown"
	TypeAudio      Type = "audio"
	TypeArtist     Type = "artist"
	TypeAlbum      Type = "album"
	TypeAudioQuery Type = "audio_query"
)

const separator = ":"

// IndexFromExtras means the starting position comes from the extras' media id
// rather than from the identifier.
const IndexFromExtras = -1

// Errors
var (
	ErrEmpty       = errors.New("media id is empty")
	ErrUnknownType = errors.New("unknown media id type")
)

// MediaID identifies playable media: a single audio, an artist, an album or a
// search query, plus the starting position inside it.
type MediaID struct {
	Type  Type
	Value string
	Index int
}

// New creates a media id.
func New(t Type, value string, index int) MediaID {
	return MediaID{Type: t, Value: value, Index: index}
}

// Audio creates a media id for a single audio.
func Audio(id string) MediaID {
	return MediaID{Type: TypeAudio, Value: id}
}

// String returns "type:value:index".
func (m MediaID) String() string {
	typ := m.Type
	if typ == "" {
		typ = TypeUnknown
	}
	return string(typ) + separator + m.Value + separator + strconv.Itoa(m.Index)
}

// Parse parses "type:value[:index]". The value may contain separators; a
// trailing numeric segment is read as the index.
func Parse(s string) (MediaID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MediaID{}, ErrEmpty
	}

	typ, rest, found := strings.Cut(s, separator)
	if !found {
		return MediaID{}, errors.Wrapf(ErrUnknownType, "no type in %q", s)
	}

	t := Type(typ)
	switch t {
	case TypeAudio, TypeArtist, TypeAlbum, TypeAudioQuery, TypeUnknown:
	default:
		return MediaID{}, errors.Wrapf(ErrUnknownType, "%q", typ)
	}

	id := MediaID{Type: t, Value: rest}
	if i := strings.LastIndex(rest, separator); i >= 0 {
		if index, err := strconv.Atoi(rest[i+1:]); err == nil {
			id.Value = rest[:i]
			id.Index = index
		}
	}
	return id, nil
}

// AudioIDOf returns the audio id carried by a raw media id string. Strings
// that do not parse are returned unchanged so bare ids still match.
func AudioIDOf(s string) string {
	id, err := Parse(s)
	if err != nil {
		return s
	}
	return id.Value
}

// AudioIDs maps raw queue media ids to audio ids.
func AudioIDs(raw []string) []string {
	ids := make([]string, len(raw))
	for i, r := range raw {
		ids[i] = AudioIDOf(r)
	}
	return ids
}
