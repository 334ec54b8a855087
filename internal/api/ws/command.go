package ws

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/queuesync/internal/app/playback"
	"github.com/osa030/queuesync/internal/domain/queue"
)

// Command types
const (
	CmdPlayAudios     = "play_audios"
	CmdPlayAlbum      = "play_album"
	CmdPlayArtist     = "play_artist"
	CmdPlayQuery      = "play_query"
	CmdPlayNext       = "play_next"
	CmdSwap           = "swap"
	CmdRemovePosition = "remove_position"
	CmdRemoveID       = "remove_id"
	CmdPlay           = "play"
	CmdPause          = "pause"
	CmdStop           = "stop"
	CmdNext           = "next"
	CmdPrevious       = "previous"
	CmdSkipTo         = "skip_to"
	CmdSeek           = "seek"
	CmdRepeat         = "repeat"
	CmdShuffle        = "shuffle"
)

// Command is a client request. Only the fields its type needs are read.
type Command struct {
	ID         string   `json:"id,omitempty"`
	Type       string   `json:"type"`
	AudioIDs   []string `json:"audio_ids,omitempty"`
	AudioID    string   `json:"audio_id,omitempty"`
	AlbumID    string   `json:"album_id,omitempty"`
	ArtistID   string   `json:"artist_id,omitempty"`
	Query      string   `json:"query,omitempty"`
	Title      string   `json:"title,omitempty"`
	Index      int      `json:"index,omitempty"`
	From       int      `json:"from,omitempty"`
	To         int      `json:"to,omitempty"`
	PositionMs int64    `json:"position_ms,omitempty"`
	Mode       string   `json:"mode,omitempty"`
}

// execute runs cmd against the connection.
func (h *Handler) execute(ctx context.Context, cmd Command) error {
	c := h.conn

	switch cmd.Type {
	case CmdPlayAudios:
		return h.playAudios(ctx, cmd)
	case CmdPlayAlbum:
		return c.PlayAlbum(ctx, cmd.AlbumID, cmd.Index)
	case CmdPlayArtist:
		return c.PlayArtist(ctx, cmd.ArtistID, cmd.Index)
	case CmdPlayQuery:
		return c.PlayWithQuery(ctx, cmd.Query, cmd.AudioID)
	case CmdPlayNext:
		return h.playNext(ctx, cmd)
	case CmdSwap:
		return c.SwapQueue(ctx, cmd.From, cmd.To)
	case CmdRemovePosition:
		return c.RemoveByPosition(ctx, cmd.Index)
	case CmdRemoveID:
		return c.RemoveByID(ctx, cmd.AudioID)
	case CmdPlay:
		return c.Play()
	case CmdPause:
		return c.Pause()
	case CmdStop:
		return c.Stop()
	case CmdNext:
		return c.SkipToNext()
	case CmdPrevious:
		return c.SkipToPrevious()
	case CmdSkipTo:
		return c.SkipToQueueItem(cmd.Index)
	case CmdSeek:
		return c.SeekTo(time.Duration(cmd.PositionMs) * time.Millisecond)
	case CmdRepeat:
		return c.SetRepeatMode(playback.ParseRepeatMode(cmd.Mode))
	case CmdShuffle:
		return c.SetShuffleMode(playback.ParseShuffleMode(cmd.Mode))
	default:
		return errors.Wrapf(ErrUnknownCommand, "%q", cmd.Type)
	}
}

func (h *Handler) playAudios(ctx context.Context, cmd Command) error {
	audios, err := h.finder.FindAudios(ctx, cmd.AudioIDs)
	if err != nil {
		return errors.Wrap(err, "failed to look up audios")
	}

	title := queue.NewTitle(queue.TitleTypeAudios, "")
	if cmd.Title != "" {
		title = queue.ParseTitle(cmd.Title)
	}
	return h.conn.PlayAudios(ctx, audios, cmd.Index, title)
}

func (h *Handler) playNext(ctx context.Context, cmd Command) error {
	audios, err := h.finder.FindAudios(ctx, []string{cmd.AudioID})
	if err != nil {
		return errors.Wrap(err, "failed to look up audio")
	}
	if len(audios) == 0 {
		return errors.Wrapf(ErrAudioNotFound, "%s", cmd.AudioID)
	}
	return h.conn.PlayNextAudio(ctx, audios[0])
}
