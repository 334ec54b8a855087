package mediaid

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected MediaID
		wantErr  error
	}{
		{
			name:     "audio with index",
			input:    "audio:abc123:0",
			expected: MediaID{Type: TypeAudio, Value: "abc123", Index: 0},
		},
		{
			name:     "album without index",
			input:    "album:4aawyAB9vmqN3uQ7FjRGTy",
			expected: MediaID{Type: TypeAlbum, Value: "4aawyAB9vmqN3uQ7FjRGTy"},
		},
		{
			name:     "query value containing separator",
			input:    "audio_query:artist:queen:-1",
			expected: MediaID{Type: TypeAudioQuery, Value: "artist:queen", Index: -1},
		},
		{
			name:     "artist with start index",
			input:    "artist:1dfeR4HaWDbWqFHLkxsg1d:3",
			expected: MediaID{Type: TypeArtist, Value: "1dfeR4HaWDbWqFHLkxsg1d", Index: 3},
		},
		{
			name:    "empty",
			input:   "  ",
			wantErr: ErrEmpty,
		},
		{
			name:    "bare id",
			input:   "abc123",
			wantErr: ErrUnknownType,
		},
		{
			name:    "unsupported type",
			input:   "podcast:xyz:0",
			wantErr: ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Parse(tt.input)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestMediaID_StringParsesBack(t *testing.T) {
	ids := []MediaID{
		Audio("abc"),
		New(TypeAlbum, "xyz", 4),
		New(TypeAudioQuery, "daft punk:live", IndexFromExtras),
	}

	for _, id := range ids {
		parsed, err := Parse(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}
}

func TestAudioIDOf(t *testing.T) {
	assert.Equal(t, "abc", AudioIDOf("audio:abc:0"))
	assert.Equal(t, "abc", AudioIDOf("abc"))
	assert.Equal(t, "", AudioIDOf(""))
	assert.Equal(t, []string{"a", "b", "c"}, AudioIDs([]string{"audio:a:0", "b", "audio:c"}))
}
