package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/himanishpuri/LiveSetlist/internal/audio"
	"github.com/himanishpuri/LiveSetlist/internal/config"
	"github.com/himanishpuri/LiveSetlist/pkg/livesetlist"
	"github.com/himanishpuri/LiveSetlist/pkg/logger"
)

// Global flags
var (
	envFile string
	dbPath  string
	backend string
)

func init() {
	// Global flags that can be used with any command
	flag.StringVar(&envFile, "env", ".env", "Dotenv file with provider credentials")
	flag.StringVar(&dbPath, "db", "", "Path to the session database (env: LIVESETLIST_DB_PATH)")
	flag.StringVar(&backend, "backend", "", "Storage backend: sqlite, badger, mongo or memory (env: LIVESETLIST_DB_BACKEND)")
}

// createService builds the service from the environment plus the global
// flags. extra options (the audio source) are applied last.
func createService(extra ...livesetlist.Option) (livesetlist.Service, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}
	log := logger.GetLogger()
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if cfg.Log.File != "" {
		log.SetFile(cfg.Log.File)
	}

	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if backend != "" {
		cfg.Storage.Backend = backend
	}

	opts := livesetlist.OptionsFromConfig(context.Background(), cfg, log)
	return livesetlist.NewService(append(opts, extra...)...)
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	log := logger.GetLogger()
	defer log.Sync()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "listen":
		handleListen(args)
	case "playlist":
		handlePlaylist(args)
	case "add":
		handleAdd(args)
	case "delete":
		handleDelete(args)
	case "confirm":
		handleConfirm(args)
	case "clear":
		handleClear()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
 _     _           ____       _   _ _     _
| |   (_)_   _____/ ___|  ___| |_| (_)___| |_
| |   | \ \ / / _ \___ \ / _ \ __| | / __| __|
| |___| |\ V /  __/___) |  __/ |_| | \__ \ |_
|_____|_| \_/ \___|____/ \___|\__|_|_|___/\__|

        Live Concert Setlist Recognition
`
	fmt.Println(banner)
}

func mustService(extra ...livesetlist.Option) livesetlist.Service {
	svc, err := createService(extra...)
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		logger.GetLogger().Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	return svc
}

func handleListen(args []string) {
	log := logger.GetLogger()

	listenCmd := flag.NewFlagSet("listen", flag.ExitOnError)
	artist := listenCmd.String("artist", "", "Artist performing (enables artist boost and setlist prediction)")
	input := listenCmd.String("input", "", "Audio file to replay as live input")
	speed := listenCmd.Float64("speed", 1, "Replay speed for --input (0 = as fast as possible)")
	device := listenCmd.String("device", "", "ffmpeg capture input, e.g. default or :0")
	format := listenCmd.String("format", "", "ffmpeg capture format, e.g. pulse, alsa or avfoundation")
	duration := listenCmd.Duration("duration", 0, "Stop after this long (0 = until interrupted or input ends)")
	listenCmd.Parse(args)

	var src audio.Source
	switch {
	case *input != "" && *device != "":
		fmt.Println("Error: cannot specify both --input and --device")
		os.Exit(1)
	case *input != "":
		fs := audio.NewFileSource(*input)
		fs.Speed = *speed
		src = fs
	case *device != "":
		src = audio.NewFFmpegSource(*format, *device)
	default:
		fmt.Println("Error: --input or --device required")
		fmt.Println("Usage: livesetlist listen --artist <artist> (--input <file> | --device <input> [--format <fmt>])")
		os.Exit(1)
	}

	printBanner()
	svc := mustService(livesetlist.WithSource(src))
	defer svc.Close()

	handler := func(d livesetlist.Detection, res livesetlist.AddResult) {
		switch res.Status {
		case livesetlist.Added:
			fmt.Printf("🎵 #%d \"%s\" by %s (score %.0f)\n", res.Entry.ID, res.Entry.Title, res.Entry.Artist, d.Candidate.Score)
		case livesetlist.Updated:
			fmt.Printf("🔁 #%d now \"%s\" by %s\n", res.Entry.ID, res.Entry.Title, res.Entry.Artist)
		default:
			log.Debugf("Detection %s (%s) not added: %s", d.ID, d.Candidate.Title, res.Reason)
		}
	}

	if !svc.Start(handler, *artist) {
		fmt.Println("❌ Could not start listening (are the ACR_HOST, ACR_ACCESS_KEY and ACR_ACCESS_SECRET settings complete?)")
		os.Exit(1)
	}
	fmt.Println("👂 Listening... press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	var timeout <-chan time.Time
	if *duration > 0 {
		timer := time.NewTimer(*duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		log.Info("Interrupted")
	case <-timeout:
		log.Infof("Listened for %s", *duration)
	case <-svc.Done():
		log.Info("Audio input ended")
	}

	fmt.Println("\n⏹  Stopping...")
	svc.Stop()
	printPlaylist(svc.GetPlaylist(false))
}

func handlePlaylist(args []string) {
	playlistCmd := flag.NewFlagSet("playlist", flag.ExitOnError)
	all := playlistCmd.Bool("all", false, "Include deleted entries")
	playlistCmd.Parse(args)

	svc := mustService()
	defer svc.Close()
	printPlaylist(svc.GetPlaylist(*all))
}

func printPlaylist(songs []livesetlist.SongEntry) {
	if len(songs) == 0 {
		fmt.Println("\n📭 Playlist is empty")
		return
	}

	fmt.Printf("\n📋 Setlist (%d song(s)):\n\n", len(songs))
	for i, song := range songs {
		marks := ""
		if song.Confirmed {
			marks += " ✔"
		}
		if song.IsDeleted {
			marks += " (deleted)"
		}
		fmt.Printf("%d. \"%s\" by %s (ID: %d)%s\n", i+1, song.Title, song.Artist, song.ID, marks)
		fmt.Printf("   Composer: %s\n", song.Composer)
		if song.Album != "" {
			fmt.Printf("   Album:    %s\n", song.Album)
		}
		if song.DurationMs > 0 {
			duration := song.DurationMs / 1000
			fmt.Printf("   Duration: %d:%02d\n", duration/60, duration%60)
		}
		fmt.Printf("   Heard at: %s (%s, score %.0f)\n", song.Timestamp.Local().Format("15:04:05"), song.Type, song.Score)
		fmt.Println()
	}
}

func handleAdd(args []string) {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	title := addCmd.String("title", "", "Song title (required)")
	artist := addCmd.String("artist", "", "Artist name")
	composer := addCmd.String("composer", "", "Composer; looked up when empty")
	wait := addCmd.Bool("wait", true, "Wait for the composer lookup before exiting")
	addCmd.Parse(args)

	if *title == "" {
		fmt.Println("Error: --title is required")
		fmt.Println("Usage: livesetlist add --title <title> [--artist <artist>] [--composer <composer>]")
		os.Exit(1)
	}

	svc := mustService()
	defer svc.Close()

	res := svc.AddManualSong(*title, *artist, *composer)
	if res.Status == livesetlist.Rejected {
		fmt.Printf("❌ Song not added: %s\n", res.Reason)
		os.Exit(1)
	}
	if *wait {
		svc.Wait()
	}

	fmt.Println("\n✅ Added song to the setlist!")
	for _, song := range svc.GetPlaylist(false) {
		if song.ID == res.Entry.ID {
			printPlaylist([]livesetlist.SongEntry{song})
		}
	}
}

func parseID(args []string, usage string) int64 {
	if len(args) < 1 {
		fmt.Println(usage)
		os.Exit(1)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		fmt.Printf("❌ Invalid song ID: %s\n", args[0])
		os.Exit(1)
	}
	return id
}

func handleDelete(args []string) {
	id := parseID(args, "Usage: livesetlist delete <song_id>")

	svc := mustService()
	defer svc.Close()

	if !svc.DeleteSong(id) {
		fmt.Printf("❌ Song not found (ID: %d)\n", id)
		os.Exit(1)
	}
	fmt.Printf("\n✅ Deleted song %d\n", id)
}

func handleConfirm(args []string) {
	id := parseID(args, "Usage: livesetlist confirm <song_id> [--undo]")
	confirmCmd := flag.NewFlagSet("confirm", flag.ExitOnError)
	undo := confirmCmd.Bool("undo", false, "Clear the confirmation instead")
	confirmCmd.Parse(args[1:])

	svc := mustService()
	defer svc.Close()

	if !svc.ConfirmSong(id, !*undo) {
		fmt.Printf("❌ Song not found (ID: %d)\n", id)
		os.Exit(1)
	}
	fmt.Printf("\n✅ Song %d confirmed: %t\n", id, !*undo)
}

func handleClear() {
	svc := mustService()
	defer svc.Close()

	if !svc.ClearSession() {
		fmt.Println("❌ Failed to clear the session")
		os.Exit(1)
	}
	fmt.Println("\n✅ Session cleared")
}

func printUsage() {
	fmt.Println("LiveSetlist - live concert setlist recognition")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  -env <file>        Dotenv file with provider credentials (default: .env)")
	fmt.Println("  -db <path>         Session database path (env: LIVESETLIST_DB_PATH)")
	fmt.Println("  -backend <name>    sqlite, badger, mongo or memory (env: LIVESETLIST_DB_BACKEND)")
	fmt.Println("\nUsage:")
	fmt.Println("  livesetlist [global-options] listen --artist <artist> --input <file> [--speed <x>] [--duration <d>]")
	fmt.Println("  livesetlist [global-options] listen --artist <artist> --device <input> [--format <fmt>]")
	fmt.Println("  livesetlist [global-options] playlist [--all]")
	fmt.Println("  livesetlist [global-options] add --title <title> [--artist <artist>] [--composer <composer>]")
	fmt.Println("  livesetlist [global-options] delete <song_id>")
	fmt.Println("  livesetlist [global-options] confirm <song_id> [--undo]")
	fmt.Println("  livesetlist [global-options] clear")
	fmt.Println("\nExamples:")
	fmt.Println("  # Recognise a recorded show, twice as fast as real time")
	fmt.Println("  livesetlist listen --artist \"Måneskin\" --input show.mp3 --speed 2")
	fmt.Println()
	fmt.Println("  # Listen to the default PulseAudio input for two hours")
	fmt.Println("  livesetlist listen --artist \"Måneskin\" --format pulse --device default --duration 2h")
}
