// Package main provides the entry point for the Readable CLI
// application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/flight505/Readable/internal/cache"
	"github.com/flight505/Readable/internal/config"
	"github.com/flight505/Readable/internal/history"
	"github.com/flight505/Readable/internal/player"
	"github.com/flight505/Readable/internal/synth"
	"github.com/flight505/Readable/internal/text"
	"github.com/flight505/Readable/ui"
	"github.com/flight505/Readable/utils"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	readmeNames = []string{"README.md", "README", "Readme.md", "Readme", "readme.md", "readme"}

	configFile string
	voiceFlag  string
	speedFlag  float64
	engineFlag string
	workers    int
	noCache    bool
	plain      bool
	tui        bool
	width      uint

	// appConfig is assembled from viper once per invocation, in
	// validateOptions.
	appConfig config.Config

	rootCmd = &cobra.Command{
		Use:   "readable [SOURCE]",
		Short: "Read anything aloud, right from the terminal",
		Long: paragraph(
			fmt.Sprintf("\nRead markdown, files, URLs or your clipboard %s. With no SOURCE and no piped input, whatever is on the clipboard is read.", keyword("out loud")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// source provides a readable text source.
type source struct {
	reader io.ReadCloser
	URL    string
}

// sourceFromArg parses an argument and creates a readable source for it.
func sourceFromArg(arg string) (*source, error) {
	// from stdin
	if arg == "-" {
		return &source{reader: os.Stdin}, nil
	}

	// a GitHub or GitLab URL (even without the protocol):
	src, err := readmeURL(arg)
	if src != nil && err == nil {
		// if there's an error, try next methods...
		return src, nil
	}

	// HTTP(S) URLs:
	if u, err := url.ParseRequestURI(arg); err == nil && strings.Contains(arg, "://") { //nolint:nestif
		if u.Scheme != "" {
			if u.Scheme != "http" && u.Scheme != "https" {
				return nil, fmt.Errorf("%s is not a supported protocol", u.Scheme)
			}
			// consumer of the source is responsible for closing the ReadCloser.
			resp, err := http.Get(u.String()) //nolint: noctx,bodyclose
			if err != nil {
				return nil, fmt.Errorf("unable to get url: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
			}
			return &source{resp.Body, u.String()}, nil
		}
	}

	// a directory:
	if len(arg) == 0 {
		// use the current working dir if no argument was supplied
		arg = "."
	}
	st, err := os.Stat(arg)
	if err == nil && st.IsDir() { //nolint:nestif
		var src *source
		_ = filepath.Walk(arg, func(path string, _ os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			for _, v := range readmeNames {
				if strings.EqualFold(filepath.Base(path), v) {
					r, err := os.Open(path)
					if err != nil {
						continue
					}

					u, _ := filepath.Abs(path)
					src = &source{r, u}

					// abort filepath.Walk
					return errors.New("source found")
				}
			}
			return nil
		})

		if src != nil {
			return src, nil
		}

		return nil, errors.New("missing readable source")
	}

	r, err := os.Open(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	u, err := filepath.Abs(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path: %w", err)
	}
	return &source{r, u}, nil
}

func validateOptions(cmd *cobra.Command) error {
	// an explicit --config overrides the default search places
	if configFile != "" && cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	appConfig = cfg

	tui = viper.GetBool("tui")
	width = viper.GetUint("width")

	// Detect terminal width
	if !cmd.Flags().Changed("width") { //nolint:nestif
		isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func execute(cmd *cobra.Command, args []string) error {
	// if stdin is a pipe then use stdin for input. note that you can
	// also explicitly use a - to read from stdin.
	if yes, err := stdinIsPipe(); err != nil {
		return err
	} else if yes {
		src := &source{reader: os.Stdin}
		defer src.reader.Close() //nolint:errcheck
		return executeSource(cmd, src)
	}

	// with no argument the clipboard is the source.
	if len(args) == 0 {
		content, err := clipboard.ReadAll()
		if err != nil {
			return fmt.Errorf("unable to read clipboard: %w", err)
		}
		if strings.TrimSpace(content) == "" {
			return errors.New("clipboard is empty")
		}
		log.Debug("Read from clipboard", "bytes", len(content))
		return executeContent(cmd, content, "")
	}

	for _, arg := range args {
		if err := executeArg(cmd, arg); err != nil {
			return err
		}
	}
	return nil
}

func executeArg(cmd *cobra.Command, arg string) error {
	src, err := sourceFromArg(arg)
	if err != nil {
		return err
	}
	defer src.reader.Close() //nolint:errcheck

	return executeSource(cmd, src)
}

func executeSource(cmd *cobra.Command, src *source) error {
	b, err := io.ReadAll(src.reader)
	if err != nil {
		return fmt.Errorf("unable to read from reader: %w", err)
	}

	path := ""
	if src.URL != "" && !isURL(src.URL) {
		path = src.URL
	}
	return executeContent(cmd, string(b), path)
}

// executeContent runs the reading pipeline: clean, chunk, validate, then
// print, speak, or hand off to the TUI.
func executeContent(cmd *cobra.Command, raw, path string) error {
	raw = string(utils.RemoveFrontmatter([]byte(raw)))

	speakable := text.NewCleaner(appConfig.Text.AnnounceCode).Clean(raw)

	validator := text.NewValidator(appConfig.Text.MaxLength, appConfig.Text.MaxChunks)
	if err := validator.ValidateText(speakable); err != nil {
		return err
	}

	chunks := text.NewChunker(appConfig.Text.ChunkChars).Chunk(speakable)
	if err := validator.ValidateChunks(chunks); err != nil {
		return err
	}
	log.Debug("Prepared text", "chars", len(speakable), "chunks", len(chunks))

	if plain {
		return printChunks(cmd.OutOrStdout(), chunks)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if tui || cmd.Flags().Changed("tui") {
		return runTUI(ctx, path, raw, speakable, chunks)
	}

	err := speak(ctx, speakable, chunks, appConfig.Voice, appConfig.Speed, true)
	if errors.Is(err, context.Canceled) {
		// interrupted by the user, not a failure
		return nil
	}
	return err
}

func printChunks(w io.Writer, chunks []string) error {
	for i, chunk := range chunks {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return fmt.Errorf("unable to write to writer: %w", err)
			}
		}
		if _, err := fmt.Fprintln(w, chunk); err != nil {
			return fmt.Errorf("unable to write to writer: %w", err)
		}
	}
	return nil
}

// speak synthesizes the chunks and plays them back to the end, blocking
// until the queue completes or ctx is cancelled.
func speak(ctx context.Context, fullText string, chunks []string, voice string, speed float64, record bool) error {
	engine, err := synth.Select(ctx, &appConfig)
	if err != nil {
		return err
	}
	log.Debug("Selected engine", "engine", engine.Name(), "voice", voice, "speed", speed)

	gen := synth.NewGenerator(engine, openCacheIfEnabled(), appConfig.Workers)

	progress := func(completed, total int) {
		fmt.Fprintf(os.Stderr, "\rGenerating audio %d/%d", completed, total)
	}
	results, err := gen.GenerateBatch(ctx, chunks, voice, speed, progress)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("synthesis aborted: %w", err)
	}

	playable := synth.Compact(results)
	if len(playable) == 0 {
		return synth.ErrNoAudio
	}
	if len(playable) < len(chunks) {
		log.Warn("Some chunks failed to synthesize", "failed", len(chunks)-len(playable), "total", len(chunks))
	}

	sink, err := player.NewOtoSink()
	if err != nil {
		return fmt.Errorf("unable to open audio device: %w", err)
	}
	queue, err := player.NewQueue(sink)
	if err != nil {
		return err
	}
	defer queue.Close() //nolint:errcheck

	done := make(chan struct{})
	queue.OnChunkChange = func(current, total int) {
		fmt.Fprintf(os.Stderr, "\rPlaying chunk %d/%d", current, total)
	}
	queue.OnQueueComplete = func() { close(done) }

	queue.LoadQueue(playable)
	queue.Play()

	if record {
		recordHistory(fullText, chunks, voice, speed)
	}

	select {
	case <-done:
		fmt.Fprintln(os.Stderr)
		return nil
	case <-ctx.Done():
		queue.Stop()
		fmt.Fprintln(os.Stderr)
		return ctx.Err()
	}
}

func runTUI(ctx context.Context, path, content, speakable string, chunks []string) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	cfg.Path = path
	cfg.GlamourMaxWidth = width

	engine, err := synth.Select(ctx, &appConfig)
	if err != nil {
		return err
	}

	sink, err := player.NewOtoSink()
	if err != nil {
		return fmt.Errorf("unable to open audio device: %w", err)
	}
	queue, err := player.NewQueue(sink)
	if err != nil {
		return err
	}
	defer queue.Close() //nolint:errcheck

	var store *history.Store
	if appConfig.History.Enabled {
		store, err = openHistory()
		if err != nil {
			log.Warn("History disabled", "err", err)
			store = nil
		}
	}

	sess := ui.Session{
		Content:   content,
		Speakable: speakable,
		Chunks:    chunks,
		Voice:     appConfig.Voice,
		Speed:     appConfig.Speed,
		Generator: synth.NewGenerator(engine, openCacheIfEnabled(), appConfig.Workers),
		Queue:     queue,
		History:   store,
		Reprocess: reprocessSource,
	}

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, sess).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

// reprocessSource rebuilds the reading pipeline for freshly loaded
// source text, for the TUI's file watcher.
func reprocessSource(raw string) (string, string, []string, error) {
	content := string(utils.RemoveFrontmatter([]byte(raw)))

	speakable := text.NewCleaner(appConfig.Text.AnnounceCode).Clean(content)

	validator := text.NewValidator(appConfig.Text.MaxLength, appConfig.Text.MaxChunks)
	if err := validator.ValidateText(speakable); err != nil {
		return "", "", nil, err
	}

	chunks := text.NewChunker(appConfig.Text.ChunkChars).Chunk(speakable)
	if err := validator.ValidateChunks(chunks); err != nil {
		return "", "", nil, err
	}
	return content, speakable, chunks, nil
}

func openCacheIfEnabled() *cache.Cache {
	if !appConfig.Cache.Enabled {
		return nil
	}
	c, err := cache.New(appConfig.Cache.Dir, appConfig.CacheMaxSizeBytes())
	if err != nil {
		log.Warn("Audio cache disabled", "err", err)
		return nil
	}
	return c
}

func openHistory() (*history.Store, error) {
	path, err := config.DefaultHistoryPath()
	if err != nil {
		return nil, err
	}
	return history.New(path, appConfig.History.Limit)
}

func recordHistory(fullText string, chunks []string, voice string, speed float64) {
	if !appConfig.History.Enabled {
		return
	}
	store, err := openHistory()
	if err != nil {
		log.Warn("History not recorded", "err", err)
		return
	}
	session := store.Add(fullText, chunks, voice, speed)
	log.Debug("Session recorded", "id", session.ID, "chunks", session.ChunkCount)
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().StringVar(&voiceFlag, "voice", "", "voice for synthesis")
	rootCmd.Flags().Float64Var(&speedFlag, "speed", 0, "playback speed (0.5 to 2.0)")
	rootCmd.Flags().StringVar(&engineFlag, "engine", "", "synthesis engine (kokoro, edge or mock)")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "parallel synthesis workers (1 to 16)")
	rootCmd.Flags().BoolVar(&noCache, "no-cache", false, "synthesize without the audio cache")
	rootCmd.Flags().BoolVarP(&plain, "plain", "p", false, "print the speakable text instead of playing it")
	rootCmd.Flags().BoolVarP(&tui, "tui", "t", false, "read in the interactive reader")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to detect)")

	// Config bindings
	_ = viper.BindPFlag("voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("speed", rootCmd.Flags().Lookup("speed"))
	_ = viper.BindPFlag("engine", rootCmd.Flags().Lookup("engine"))
	_ = viper.BindPFlag("workers", rootCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("tui", rootCmd.Flags().Lookup("tui"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))

	rootCmd.AddCommand(configCmd, manCmd, voicesCmd, cacheCmd, historyCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "readable")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "readable")}, dirs...)
	}

	if c := os.Getenv("READABLE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("readable")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("readable")
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "readable.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
