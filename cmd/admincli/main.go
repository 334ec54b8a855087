// Package main provides the admin CLI entry point for record store
// maintenance.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/osa030/queuesync/internal/domain/audio"
	"github.com/osa030/queuesync/internal/infra/config"
	"github.com/osa030/queuesync/internal/infra/spotify"
	"github.com/osa030/queuesync/internal/infra/store"
)

var (
	app        = kingpin.New("queuesync-admincli", "queuesync record store admin client")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()

	// import-album command
	importAlbumCmd = app.Command("import-album", "Import an album from Spotify")
	importAlbumID  = importAlbumCmd.Arg("album-id", "Album ID, URL or URI").Required().String()

	// import-artist command
	importArtistCmd = app.Command("import-artist", "Import an artist's top tracks from Spotify")
	importArtistID  = importArtistCmd.Arg("artist-id", "Artist ID, URL or URI").Required().String()

	// import-track command
	importTrackCmd = app.Command("import-track", "Import a track from Spotify")
	importTrackID  = importTrackCmd.Arg("track-id", "Track ID, URL or URI").Required().String()

	// list command
	listCmd    = app.Command("list", "List stored audios")
	listLimit  = listCmd.Flag("limit", "Maximum rows").Default("50").Int()
	listOffset = listCmd.Flag("offset", "Rows to skip").Default("0").Int()

	// downloads command
	downloadsCmd = app.Command("downloads", "List downloaded audios")

	// add-download command
	addDownloadCmd  = app.Command("add-download", "Record a downloaded file for a stored audio")
	addDownloadID   = addDownloadCmd.Arg("audio-id", "Audio ID").Required().String()
	addDownloadPath = addDownloadCmd.Arg("file", "Downloaded file path").Required().ExistingFile()

	// queue command
	queueCmd = app.Command("queue", "Show the persisted queue")

	// remove command
	removeCmd = app.Command("remove", "Remove a stored audio")
	removeID  = removeCmd.Arg("audio-id", "Audio ID").Required().String()

	// clear command
	clearCmd = app.Command("clear", "Remove every stored audio")
	clearYes = clearCmd.Flag("yes", "Do not ask for confirmation").Short('y').Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		fail(err)
	}
	defer st.Close()

	ctx := context.Background()

	switch command {
	case importAlbumCmd.FullCommand():
		client := catalog(ctx, cfg)
		importAudios(ctx, st, func() ([]audio.Audio, error) {
			return client.AlbumAudios(ctx, *importAlbumID)
		})
	case importArtistCmd.FullCommand():
		client := catalog(ctx, cfg)
		importAudios(ctx, st, func() ([]audio.Audio, error) {
			return client.ArtistAudios(ctx, *importArtistID)
		})
	case importTrackCmd.FullCommand():
		client := catalog(ctx, cfg)
		importAudios(ctx, st, func() ([]audio.Audio, error) {
			a, err := client.GetAudio(ctx, *importTrackID)
			if err != nil {
				return nil, err
			}
			return []audio.Audio{a}, nil
		})
	case listCmd.FullCommand():
		list(ctx, st, *listLimit, *listOffset)
	case downloadsCmd.FullCommand():
		downloads(ctx, st)
	case addDownloadCmd.FullCommand():
		addDownload(ctx, st, *addDownloadID, *addDownloadPath)
	case queueCmd.FullCommand():
		showQueue(ctx, st)
	case removeCmd.FullCommand():
		if err := st.Delete(ctx, *removeID); err != nil {
			fail(err)
		}
		fmt.Printf("Removed %s\n", *removeID)
	case clearCmd.FullCommand():
		clearAll(ctx, st, *clearYes)
	}
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

func catalog(ctx context.Context, cfg *config.Config) *spotify.Client {
	if !cfg.HasSpotify() {
		fail(fmt.Errorf("spotify credentials are not configured"))
	}
	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		fail(err)
	}
	return client
}

func importAudios(ctx context.Context, st *store.Store, fetch func() ([]audio.Audio, error)) {
	audios, err := fetch()
	if err != nil {
		fail(err)
	}

	now := time.Now()
	for i := range audios {
		audios[i].AddedAt = now
	}
	if err := st.Upsert(ctx, audios); err != nil {
		fail(err)
	}

	fmt.Printf("Imported %d audios (%s total)\n", len(audios), formatDuration(audio.TotalDuration(audios)))
	for _, a := range audios {
		fmt.Printf("  %s: %s\n", a.ID, a.DisplayName())
	}
}

func list(ctx context.Context, st *store.Store, limit, offset int) {
	total, err := st.Count(ctx)
	if err != nil {
		fail(err)
	}
	audios, err := st.List(ctx, limit, offset)
	if err != nil {
		fail(err)
	}

	fmt.Printf("Audios (%s):\n", humanize.Comma(int64(total)))
	for _, a := range audios {
		fmt.Printf("  %s: %s [%s] (added %s)\n",
			a.ID, a.DisplayName(), formatDuration(a.Duration), humanize.Time(a.AddedAt))
	}
	if offset+len(audios) < total {
		fmt.Printf("  ... %d more\n", total-offset-len(audios))
	}
}

func downloads(ctx context.Context, st *store.Store) {
	items, err := st.Downloads(ctx)
	if err != nil {
		fail(err)
	}

	fmt.Printf("Downloads (%d):\n", len(items))
	for _, d := range items {
		fmt.Printf("  %s: %s [%s] %s\n", d.Audio.ID, d.Audio.DisplayName(), d.Status, d.FilePath)
	}
}

func addDownload(ctx context.Context, st *store.Store, id, path string) {
	a, err := st.Get(ctx, id)
	if err != nil {
		fail(err)
	}
	if err := st.SaveDownload(ctx, store.Download{Audio: a, FilePath: path, Status: store.DownloadCompleted}); err != nil {
		fail(err)
	}
	fmt.Printf("Recorded download of %s: %s\n", a.DisplayName(), path)
}

func showQueue(ctx context.Context, st *store.Store) {
	snap, err := st.LoadQueue(ctx)
	if err != nil {
		fail(err)
	}
	if snap == nil {
		fmt.Println("No queue saved")
		return
	}

	audios, err := st.FindAudios(ctx, snap.IDs)
	if err != nil {
		fail(err)
	}

	fmt.Printf("Queue: %s (%d items, saved %s)\n", snap.Title, len(snap.IDs), humanize.Time(snap.UpdatedAt))
	fmt.Printf("Repeat: %s, Shuffle: %s\n", snap.RepeatMode, snap.ShuffleMode)
	for i, id := range snap.IDs {
		marker := "  "
		if i == snap.CurrentIndex {
			marker = "> "
		}
		name := "(missing)"
		if idx := audio.IndexOf(audios, id); idx >= 0 {
			name = audios[idx].DisplayName()
		}
		fmt.Printf("  %s%2d. %s %s\n", marker, i, id, name)
	}
	if snap.HasCurrent() {
		fmt.Printf("Position: %s\n", formatDuration(snap.Position))
	}
}

func clearAll(ctx context.Context, st *store.Store, yes bool) {
	if !yes {
		fmt.Print("Remove every stored audio? [y/N]: ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted")
			return
		}
	}

	n, err := st.DeleteAll(ctx)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Removed %s audios\n", humanize.Comma(n))
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
