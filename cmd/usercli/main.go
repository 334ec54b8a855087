// Package main provides the user CLI entry point.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/osa030/queuesync/internal/api/ws"
	"github.com/osa030/queuesync/internal/app/notification"
)

var (
	app    = kingpin.New("queuesync-usercli", "queuesync playback client")
	server = app.Flag("server", "Server websocket URL").Default("ws://localhost:8080/ws").Envar("QUEUESYNC_SERVER").String()

	// subscribe command
	subscribeCmd      = app.Command("subscribe", "Print the playback feed")
	subscribeProgress = subscribeCmd.Flag("progress", "Include progress ticks").Bool()

	// play command
	playCmd   = app.Command("play", "Play audios from the store")
	playIDs   = playCmd.Arg("audio-ids", "Audio IDs").Required().Strings()
	playIndex = playCmd.Flag("index", "Start position").Default("0").Int()
	playTitle = playCmd.Flag("title", "Queue title (type:value)").String()

	// album command
	albumCmd   = app.Command("album", "Play an album")
	albumID    = albumCmd.Arg("album-id", "Album ID, URL or URI").Required().String()
	albumIndex = albumCmd.Flag("index", "Start position").Default("0").Int()

	// artist command
	artistCmd   = app.Command("artist", "Play an artist's top tracks")
	artistID    = artistCmd.Arg("artist-id", "Artist ID, URL or URI").Required().String()
	artistIndex = artistCmd.Flag("index", "Start position").Default("0").Int()

	// search command
	searchCmd   = app.Command("search", "Play search results")
	searchQuery = searchCmd.Arg("query", "Search query").Required().String()
	searchAudio = searchCmd.Flag("audio", "Audio ID to start from").String()

	// play-next command
	playNextCmd = app.Command("play-next", "Insert an audio after the current one")
	playNextID  = playNextCmd.Arg("audio-id", "Audio ID").Required().String()

	// swap command
	swapCmd  = app.Command("swap", "Move a queue item")
	swapFrom = swapCmd.Arg("from", "From position").Required().Int()
	swapTo   = swapCmd.Arg("to", "To position").Required().Int()

	// remove command
	removeCmd      = app.Command("remove", "Remove a queue item by position")
	removePosition = removeCmd.Arg("position", "Queue position").Required().Int()

	// remove-id command
	removeIDCmd = app.Command("remove-id", "Remove every queue item with an audio ID")
	removeID    = removeIDCmd.Arg("audio-id", "Audio ID").Required().String()

	// transport commands
	resumeCmd   = app.Command("resume", "Resume playback")
	pauseCmd    = app.Command("pause", "Pause playback")
	stopCmd     = app.Command("stop", "Stop playback")
	nextCmd     = app.Command("next", "Skip to the next item")
	previousCmd = app.Command("previous", "Skip to the previous item").Alias("prev")
	skipToCmd   = app.Command("skip-to", "Skip to a queue position")
	skipToIndex = skipToCmd.Arg("position", "Queue position").Required().Int()
	seekCmd     = app.Command("seek", "Seek within the current item")
	seekTo      = seekCmd.Arg("position", "Position (e.g. 1m30s)").Required().Duration()
	repeatCmd   = app.Command("repeat", "Set the repeat mode")
	repeatMode  = repeatCmd.Arg("mode", "none, one or all").Required().Enum("none", "one", "all")
	shuffleCmd  = app.Command("shuffle", "Set the shuffle mode")
	shuffleMode = shuffleCmd.Arg("mode", "none or all").Required().Enum("none", "all")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	conn, _, err := websocket.DefaultDialer.Dial(*server, nil)
	if err != nil {
		fmt.Printf("Error: failed to connect to %s: %v\n", *server, err)
		os.Exit(1)
	}
	defer conn.Close()

	if command == subscribeCmd.FullCommand() {
		subscribe(conn, *subscribeProgress)
		return
	}

	var cmd ws.Command
	switch command {
	case playCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdPlayAudios, AudioIDs: *playIDs, Index: *playIndex, Title: *playTitle}
	case albumCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdPlayAlbum, AlbumID: *albumID, Index: *albumIndex}
	case artistCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdPlayArtist, ArtistID: *artistID, Index: *artistIndex}
	case searchCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdPlayQuery, Query: *searchQuery, AudioID: *searchAudio}
	case playNextCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdPlayNext, AudioID: *playNextID}
	case swapCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdSwap, From: *swapFrom, To: *swapTo}
	case removeCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdRemovePosition, Index: *removePosition}
	case removeIDCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdRemoveID, AudioID: *removeID}
	case resumeCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdPlay}
	case pauseCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdPause}
	case stopCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdStop}
	case nextCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdNext}
	case previousCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdPrevious}
	case skipToCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdSkipTo, Index: *skipToIndex}
	case seekCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdSeek, PositionMs: seekTo.Milliseconds()}
	case repeatCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdRepeat, Mode: *repeatMode}
	case shuffleCmd.FullCommand():
		cmd = ws.Command{Type: ws.CmdShuffle, Mode: *shuffleMode}
	}

	send(conn, cmd)
}

// send sends cmd and waits for its result.
func send(conn *websocket.Conn, cmd ws.Command) {
	cmd.ID = uuid.New().String()
	if err := conn.WriteJSON(cmd); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	_ = conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	for {
		var msg notification.Message
		if err := conn.ReadJSON(&msg); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if msg.Type != notification.TypeResult {
			continue
		}

		var result notification.ResultPayload
		if err := msg.Decode(&result); err != nil || result.ID != cmd.ID {
			continue
		}
		if !result.OK {
			fmt.Printf("Failed: %s\n", result.Error)
			os.Exit(1)
		}
		fmt.Printf("OK: %s\n", cmd.Type)
		return
	}
}

func subscribe(conn *websocket.Conn, progress bool) {
	fmt.Println("Subscribed to playback feed. Press Ctrl+C to exit.")

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	msgCh := make(chan *notification.Message)
	errCh := make(chan error, 1)
	go func() {
		for {
			var msg notification.Message
			if err := conn.ReadJSON(&msg); err != nil {
				errCh <- err
				return
			}
			msgCh <- &msg
		}
	}()

	for {
		select {
		case <-sigCh:
			fmt.Println("\nUnsubscribing...")
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case err := <-errCh:
			fmt.Printf("Feed closed: %v\n", err)
			return
		case msg := <-msgCh:
			if msg.Type == notification.TypeProgress && !progress {
				continue
			}
			printMessage(msg)
		}
	}
}

func printMessage(msg *notification.Message) {
	prefix := fmt.Sprintf("[%s #%d]", time.UnixMilli(msg.Timestamp).Format(time.TimeOnly), msg.SequenceNo)

	switch msg.Type {
	case notification.TypeConnected:
		var p notification.ConnectedPayload
		if msg.Decode(&p) == nil {
			fmt.Printf("%s connected=%v\n", prefix, p.Connected)
		}
	case notification.TypeQueue:
		var p notification.QueuePayload
		if msg.Decode(&p) != nil {
			return
		}
		fmt.Printf("%s queue: %s (%d items)\n", prefix, p.Title, len(p.Items))
		for i, a := range p.Items {
			marker := "  "
			if i == p.CurrentIndex {
				marker = "> "
			}
			fmt.Printf("  %s%2d. %s - %s [%s]\n", marker, i, a.Artist, a.Title, formatMs(a.DurationMs))
		}
	case notification.TypeState:
		var p notification.StatePayload
		if msg.Decode(&p) == nil {
			fmt.Printf("%s state: %s at %s (index %d)\n", prefix, p.State, formatMs(p.PositionMs), p.CurrentIndex)
		}
	case notification.TypeNowPlaying:
		var p notification.NowPlayingPayload
		if msg.Decode(&p) != nil {
			return
		}
		if p.MediaID == "" {
			fmt.Printf("%s now playing: nothing\n", prefix)
			return
		}
		fmt.Printf("%s now playing: %s - %s [%s]\n", prefix, p.Artist, p.Title, formatMs(p.DurationMs))
	case notification.TypeProgress:
		var p notification.ProgressPayload
		if msg.Decode(&p) == nil {
			fmt.Printf("%s %s %s / %s\n", prefix, progressBar(p.Progress, 30), formatMs(p.PositionMs), formatMs(p.TotalMs))
		}
	case notification.TypeMode:
		var p notification.ModePayload
		if msg.Decode(&p) == nil {
			fmt.Printf("%s mode: repeat=%s shuffle=%s\n", prefix, p.Repeat, p.Shuffle)
		}
	default:
		fmt.Printf("%s %s: %s\n", prefix, msg.Type, string(msg.Data))
	}
}

func formatMs(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func progressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
