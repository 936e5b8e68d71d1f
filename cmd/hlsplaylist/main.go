// The hlsplaylist command checks, formats and replays HLS playlists.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agleyzer/hlsplaylist/internal/compat"
	"github.com/agleyzer/hlsplaylist/internal/config"
	"github.com/agleyzer/hlsplaylist/internal/live"
	"github.com/agleyzer/hlsplaylist/internal/loader"
	"github.com/agleyzer/hlsplaylist/pkg/hls"
)

const (
	version = "1.0.0"
)

func main() {
	// Parse command-line flags
	var (
		excess        = flag.Duration("excess", 0, "Allowable amount a segment may exceed the target duration (e.g., '1s')")
		strictVersion = flag.Bool("strict-version", false, "Reject playlists whose EXT-X-VERSION is lower than required")
		crossCheck    = flag.Bool("crosscheck", false, "Decode the playlist with grafov/m3u8 as well and report differences")
		resolve       = flag.Bool("resolve", false, "Resolve relative URIs against the playlist's path")
		verbose       = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion   = flag.Bool("version", false, "Show version and exit")
		windowSize    = flag.Int("window-size", config.DefaultWindowSize, "Number of segments in sliding window")
		advance       = flag.Int("advance", 0, "Number of segments to advance the window before printing it")
		loopAfter     = flag.Duration("loop-after", 0, "Maximum duration of content to use before looping (e.g., '10s', '1m30s'). Uses all segments if not specified")
		follow        = flag.Bool("follow", false, "Keep printing the window each target duration until interrupted")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "hlsplaylist - HLS playlist tool v%s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> <file|->\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  check     Parse and validate the playlist, then print a summary\n")
		fmt.Fprintf(os.Stderr, "  fmt       Parse the playlist and print its canonical form\n")
		fmt.Fprintf(os.Stderr, "  window    Print a live sliding window over a media playlist\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s check playlist.m3u8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --crosscheck check master.m3u8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  cat playlist.m3u8 | %s fmt -\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --window-size 3 --advance 10 --loop-after 30s window playlist.m3u8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --resolve --follow window playlist.m3u8\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("hlsplaylist v%s\n", version)
		os.Exit(0)
	}

	if flag.NArg() < 2 {
		fmt.Fprintf(os.Stderr, "Error: command and playlist are required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	opts := config.Options{
		Command:       flag.Arg(0),
		Source:        flag.Arg(1),
		Excess:        *excess,
		StrictVersion: *strictVersion,
		CrossCheck:    *crossCheck,
		Verbose:       *verbose,
		Resolve:       *resolve,
		WindowSize:    *windowSize,
		Advance:       *advance,
		LoopAfter:     *loopAfter,
		Follow:        *follow,
	}

	if err := opts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal", "signal", sig)
		cancel()
	}()

	// Run the application
	if err := run(ctx, opts, os.Stdin, os.Stdout, logger); err != nil {
		logger.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts config.Options, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	doc, err := loader.New(stdin, logger, opts.ParseOptions()...).Load(opts.Source)
	if err != nil {
		return err
	}

	if opts.CrossCheck {
		if err := crossCheck(doc, logger); err != nil {
			return err
		}
	}

	if opts.Resolve {
		p, err := doc.Absolute(opts.Excess)
		if err != nil {
			return fmt.Errorf("failed to resolve URIs: %w", err)
		}
		doc.Playlist = p
	}

	switch opts.Command {
	case config.CommandCheck:
		return printSummary(stdout, loader.Summarize(doc.Playlist), logger)
	case config.CommandFmt:
		if _, err := doc.Playlist.WriteTo(stdout); err != nil {
			return fmt.Errorf("failed to write playlist: %w", err)
		}
		return nil
	case config.CommandWindow:
		return printWindow(ctx, stdout, doc, opts, logger)
	default:
		return fmt.Errorf("unknown command %q", opts.Command)
	}
}

func crossCheck(doc *loader.Document, logger *slog.Logger) error {
	mismatches, err := compat.CrossCheck(doc.Text, doc.Playlist)
	if err != nil {
		return err
	}

	for _, m := range mismatches {
		logger.Warn("decoders disagree", "field", m.Field, "ours", m.Ours, "grafov", m.Theirs)
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("grafov/m3u8 disagrees on %d field(s)", len(mismatches))
	}

	logger.Debug("grafov/m3u8 agrees", "source", doc.Source)
	return nil
}

func printSummary(w io.Writer, s loader.Summary, logger *slog.Logger) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	if s.IsMaster {
		logger.Info("parsed master playlist", "variants", s.Variants, "renditions", s.Renditions)

		printf("kind: master\n")
		printf("version: %s\n", s.Version)
		printf("variants: %d\n", s.Variants)
		printf("iframe-variants: %d\n", s.IFrameVariants)
		printf("renditions: %d\n", s.Renditions)
	} else {
		logger.Info("parsed media playlist", "segments", s.Segments, "targetDuration", s.TargetDuration)

		printf("kind: media\n")
		printf("version: %s\n", s.Version)
		printf("segments: %d\n", s.Segments)
		printf("target-duration: %s\n", s.TargetDuration)
		printf("duration: %s\n", s.Duration)
		printf("endlist: %t\n", s.EndList)
	}

	if err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

func printWindow(ctx context.Context, w io.Writer, doc *loader.Document, opts config.Options, logger *slog.Logger) error {
	source, ok := doc.Playlist.(*hls.MediaPlaylist)
	if !ok {
		return fmt.Errorf("window requires a media playlist, %s is a master playlist", doc.Source)
	}

	// Apply loop-after if specified
	if opts.LoopAfter > 0 {
		b := source.ToBuilder()
		b.AllowableExcessDuration = opts.Excess
		b.Segments = calculateSegmentSubset(b.Segments, opts.LoopAfter)
		logger.Info("applied loop-after to media playlist",
			"originalSegments", len(source.Segments()),
			"includedSegments", len(b.Segments),
			"duration", opts.LoopAfter,
		)

		subset, err := b.Build()
		if err != nil {
			return fmt.Errorf("failed to apply loop-after: %w", err)
		}
		source = subset
	}

	window, err := live.New(source, opts.WindowSize, logger)
	if err != nil {
		return fmt.Errorf("failed to create live window: %w", err)
	}

	for i := 0; i < opts.Advance; i++ {
		window.Advance()
	}

	snapshot, err := window.Snapshot()
	if err != nil {
		return err
	}

	stats := window.Stats()
	logger.Info("live window ready",
		"sequence", stats.SequenceNumber,
		"position", stats.Position,
		"windowSize", stats.WindowSize,
	)

	publish := func(p *hls.MediaPlaylist) error {
		if _, err := p.WriteTo(w); err != nil {
			return fmt.Errorf("failed to write playlist: %w", err)
		}
		return nil
	}

	if err := publish(snapshot); err != nil {
		return err
	}
	if !opts.Follow {
		return nil
	}

	// Blocks until interrupted
	return window.Run(ctx, publish)
}

// calculateSegmentSubset returns a subset of segments that fit within the specified duration.
// It sums segment durations from the start until the threshold is reached.
// A segment is included if adding it doesn't exceed the threshold by more than 50%.
// Returns at least 1 segment even if the first segment exceeds the duration.
func calculateSegmentSubset(segments []hls.MediaSegment, maxDuration time.Duration) []hls.MediaSegment {
	if len(segments) == 0 {
		return segments
	}

	// If maxDuration is 0, return all segments
	if maxDuration == 0 {
		return segments
	}

	var totalDuration time.Duration
	var result []hls.MediaSegment

	for i, seg := range segments {
		// Always include at least the first segment
		if i == 0 {
			result = append(result, seg)
			totalDuration += seg.Inf.Duration
			continue
		}

		newTotal := totalDuration + seg.Inf.Duration
		if newTotal <= maxDuration {
			result = append(result, seg)
			totalDuration = newTotal
		} else {
			// Include if it doesn't exceed by more than 50%
			if newTotal-maxDuration <= maxDuration/2 {
				result = append(result, seg)
				totalDuration = newTotal
			}
			// Stop processing further segments
			break
		}
	}

	return result
}
