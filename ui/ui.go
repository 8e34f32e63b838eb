// Package ui provides the interactive reader for the readable
// application. It renders the source document in a scrollable viewport
// while the synthesized audio plays underneath, with a status bar
// tracking synthesis progress and the chunk being spoken.
package ui

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	te "github.com/muesli/termenv"

	"github.com/flight505/Readable/internal/player"
	"github.com/flight505/Readable/internal/synth"
	"github.com/flight505/Readable/utils"
)

const (
	statusMessageTimeout = time.Second * 3
	statusBarHeight      = 1
	ellipsis             = "…"
)

// NewProgram returns a new Tea program wired to the reading session.
func NewProgram(cfg Config, sess Session) *tea.Program {
	log.Debug(
		"starting reader",
		"glamour", cfg.GlamourEnabled,
		"watch", cfg.WatchFile,
		"chunks", len(sess.Chunks),
	)

	m := newModel(cfg, sess)
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Playback callbacks arrive on the playback goroutine. Forward them
	// into the program's message loop.
	sess.Queue.OnChunkChange = func(current, total int) {
		p.Send(chunkChangedMsg{current: current, total: total})
	}
	sess.Queue.OnQueueComplete = func() {
		p.Send(queueCompleteMsg{})
	}
	m.bridge.attach(p.Send)
	return p
}

// msgBridge forwards messages produced on non-UI goroutines into the
// running program.
type msgBridge struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func (b *msgBridge) attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

func (b *msgBridge) post(msg tea.Msg) {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	contentRenderedMsg      string
	fileLoadedMsg           string
	reloadMsg               struct{}
	statusMessageTimeoutMsg struct{}

	synthProgressMsg struct {
		completed int
		total     int
		round     int
	}

	synthDoneMsg struct {
		playable [][]byte
		skipped  int
		err      error
		round    int
	}

	chunkChangedMsg struct {
		current int
		total   int
	}

	queueCompleteMsg struct{}

	// playbackSyncMsg reports the queue status after a blocking queue
	// operation ran on a command goroutine.
	playbackSyncMsg struct {
		status player.Status
	}
)

// state is the top-level application state.
type state int

const (
	stateSynthesizing state = iota
	stateReading
)

func (s state) String() string {
	return map[state]string{
		stateSynthesizing: "synthesizing audio",
		stateReading:      "reading",
	}[s]
}

type model struct {
	cfg  Config
	sess Session

	bridge *msgBridge

	state    state
	viewport viewport.Model
	spinner  spinner.Model

	width int
	ready bool

	// Synthesis bookkeeping, updated from progress messages. round
	// identifies the current synthesis run so results from a superseded
	// run are ignored after a file reload.
	synthCompleted int
	synthTotal     int
	round          int

	// Playback bookkeeping. playable holds the synthesized audio in
	// reading order; current and total track the queue position.
	playable [][]byte
	current  int
	total    int
	mode     player.Mode
	recorded bool

	statusMessage string
	err           error

	watcher *fsnotify.Watcher
}

func newModel(cfg Config, sess Session) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := model{
		cfg:        cfg,
		sess:       sess,
		bridge:     &msgBridge{},
		state:      stateSynthesizing,
		spinner:    sp,
		synthTotal: len(sess.Chunks),
		mode:       player.ModeIdle,
	}
	m.initWatcher()
	return m
}

func (m *model) initWatcher() {
	if !m.cfg.WatchFile || m.cfg.Path == "" || m.sess.Reprocess == nil {
		return
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error("error creating fsnotify watcher", "error", err)
		return
	}
	m.watcher = w
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.startSynthesis()}
	if m.watcher != nil {
		cmds = append(cmds, m.watchFile)
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-statusBarHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - statusBarHeight
		}
		cmds = append(cmds, renderContent(m.sess.Content, m.cfg, m.viewport.Width))

	case contentRenderedMsg:
		m.viewport.SetContent(string(msg))

	case spinner.TickMsg:
		if m.state == stateSynthesizing {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case synthProgressMsg:
		if msg.round != m.round {
			break
		}
		m.synthCompleted = msg.completed
		m.synthTotal = msg.total

	case synthDoneMsg:
		if msg.round != m.round {
			break
		}
		m.state = stateReading
		if msg.err != nil {
			log.Error("synthesis failed", "error", msg.err)
			m.err = msg.err
			break
		}
		m.playable = msg.playable
		m.recordHistory()
		cmds = append(cmds, m.startPlaybackCmd())
		log.Debug("entering state", "state", m.state, "playable", len(msg.playable))
		if msg.skipped > 0 {
			cmds = append(cmds, m.showStatusMessage(fmt.Sprintf("%d chunks failed to synthesize, skipping them", msg.skipped)))
		}

	case chunkChangedMsg:
		m.current = msg.current
		m.total = msg.total
		m.mode = m.sess.Queue.Status().Mode

	case queueCompleteMsg:
		m.mode = player.ModeStopped
		cmds = append(cmds, m.showStatusMessage("Finished reading"))

	case playbackSyncMsg:
		m.mode = msg.status.Mode
		m.current = msg.status.Current
		m.total = msg.status.Total

	// The file was changed on disk and we're reloading it
	case reloadMsg:
		return m, loadSource(m.cfg.Path)

	case fileLoadedMsg:
		cmds = append(cmds, m.reprocess(string(msg))...)

	case statusMessageTimeoutMsg:
		m.statusMessage = ""

	case errMsg:
		log.Error("ui error", "error", msg.err)
		m.err = msg.err
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey reacts to a key press, reporting whether it consumed the
// key. Unconsumed keys fall through to the viewport for scrolling.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit, true

	case " ":
		if m.state != stateReading {
			return nil, false
		}
		return m.togglePlayback(), true

	case "n", "right":
		if m.state != stateReading {
			return nil, false
		}
		m.sess.Queue.Skip()
		m.syncPlayback()
		return nil, true

	case "s":
		if m.state != stateReading {
			return nil, false
		}
		return m.stopPlaybackCmd(), true

	case "r":
		if m.state != stateReading || len(m.playable) == 0 {
			return nil, false
		}
		return tea.Batch(m.startPlaybackCmd(), m.showStatusMessage("Restarted from the top")), true

	case "g", "home":
		m.viewport.GotoTop()
		return nil, true

	case "G", "end":
		m.viewport.GotoBottom()
		return nil, true
	}
	return nil, false
}

// togglePlayback pauses a playing queue, resumes a paused one and
// starts over when playback has finished or never started.
func (m *model) togglePlayback() tea.Cmd {
	switch m.sess.Queue.Status().Mode {
	case player.ModePlaying:
		m.sess.Queue.Pause()
	case player.ModePaused:
		m.sess.Queue.Play()
	default:
		if len(m.playable) == 0 {
			return nil
		}
		return m.startPlaybackCmd()
	}
	m.syncPlayback()
	return nil
}

// startPlaybackCmd loads the synthesized audio and starts playback on a
// command goroutine. LoadQueue waits for a previous playback loop to
// wind down, which must not happen on the update loop: the playback
// loop delivers its chunk notifications through Program.Send and would
// deadlock against a blocked Update.
func (m model) startPlaybackCmd() tea.Cmd {
	queue := m.sess.Queue
	playable := m.playable
	return func() tea.Msg {
		queue.LoadQueue(playable)
		queue.Play()
		return playbackSyncMsg{status: queue.Status()}
	}
}

// stopPlaybackCmd stops the queue on a command goroutine, for the same
// reason startPlaybackCmd runs off the update loop.
func (m model) stopPlaybackCmd() tea.Cmd {
	queue := m.sess.Queue
	return func() tea.Msg {
		queue.Stop()
		return playbackSyncMsg{status: queue.Status()}
	}
}

func (m *model) syncPlayback() {
	st := m.sess.Queue.Status()
	m.mode = st.Mode
	m.current = st.Current
	m.total = st.Total
}

func (m *model) recordHistory() {
	if m.sess.History == nil || m.recorded {
		return
	}
	m.sess.History.Add(m.sess.Speakable, m.sess.Chunks, m.sess.Voice, m.sess.Speed)
	m.recorded = true
}

func (m *model) showStatusMessage(text string) tea.Cmd {
	m.statusMessage = text
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{}
	})
}

// reprocess rebuilds the reading session from freshly loaded source
// text and kicks off a new synthesis round.
func (m *model) reprocess(raw string) []tea.Cmd {
	var cmds []tea.Cmd
	if m.watcher != nil {
		cmds = append(cmds, m.watchFile)
	}

	content, speakable, chunks, err := m.sess.Reprocess(raw)
	if err != nil {
		log.Warn("reloaded file has no readable content", "error", err)
		cmds = append(cmds, m.showStatusMessage("Reload failed: "+err.Error()))
		return cmds
	}

	cmds = append(cmds, m.stopPlaybackCmd())
	m.sess.Content = content
	m.sess.Speakable = speakable
	m.sess.Chunks = chunks
	m.playable = nil
	m.recorded = false
	m.err = nil
	m.state = stateSynthesizing
	m.round++
	m.synthCompleted = 0
	m.synthTotal = len(chunks)
	m.current = 0
	m.total = 0
	m.mode = player.ModeIdle

	cmds = append(cmds,
		m.spinner.Tick,
		m.startSynthesis(),
		renderContent(content, m.cfg, m.viewport.Width),
		m.showStatusMessage("File changed, reloading"),
	)
	return cmds
}

// startSynthesis generates audio for every chunk off the UI goroutine.
// Progress lands as messages via the bridge, the final result as a
// synthDoneMsg.
func (m model) startSynthesis() tea.Cmd {
	gen := m.sess.Generator
	chunks := m.sess.Chunks
	voice := m.sess.Voice
	speed := m.sess.Speed
	bridge := m.bridge
	round := m.round

	return func() tea.Msg {
		progress := func(completed, total int) {
			bridge.post(synthProgressMsg{completed: completed, total: total, round: round})
		}
		results, err := gen.GenerateBatch(context.Background(), chunks, voice, speed, progress)
		if err != nil {
			return synthDoneMsg{err: err, round: round}
		}
		playable := synth.Compact(results)
		if len(playable) == 0 {
			return synthDoneMsg{err: synth.ErrNoAudio, round: round}
		}
		return synthDoneMsg{playable: playable, skipped: len(chunks) - len(playable), round: round}
	}
}

func loadSource(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return errMsg{err}
		}
		return fileLoadedMsg(data)
	}
}

// watchFile blocks until the source file changes on disk. The watch is
// on the containing directory so editors that replace the file are
// seen too.
func (m model) watchFile() tea.Msg {
	dir := filepath.Dir(m.cfg.Path)
	if err := m.watcher.Add(dir); err != nil {
		log.Error("error adding dir to fsnotify watcher", "error", err)
		return nil
	}

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != m.cfg.Path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			return reloadMsg{}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "error", err)
		}
	}
}

func (m model) View() string {
	if !m.ready {
		return "\n  Loading…"
	}

	var b strings.Builder
	fmt.Fprint(&b, m.viewport.View()+"\n")
	m.statusBarView(&b)
	return b.String()
}

func (m model) statusBarView(b *strings.Builder) {
	const (
		minPercent               float64 = 0.0
		maxPercent               float64 = 1.0
		percentToStringMagnitude float64 = 100.0
	)

	showStatusMessage := m.statusMessage != ""

	// Logo
	logo := readableLogoView()

	// Scroll percent
	percent := math.Max(minPercent, math.Min(maxPercent, m.viewport.ScrollPercent()))
	scrollPercent := fmt.Sprintf(" %3.f%% ", percent*percentToStringMagnitude)
	if showStatusMessage {
		scrollPercent = statusBarMessageScrollPosStyle(scrollPercent)
	} else {
		scrollPercent = statusBarScrollPosStyle(scrollPercent)
	}

	// "Quit" note
	var helpNote string
	if showStatusMessage {
		helpNote = statusBarMessageHelpStyle(" q Quit ")
	} else {
		helpNote = statusBarHelpStyle(" q Quit ")
	}

	// Note with synthesis or playback state
	var note string
	if showStatusMessage {
		note = m.statusMessage
	} else {
		note = m.playbackNote()
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(scrollPercent)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	if showStatusMessage {
		note = statusBarMessageStyle(note)
	} else {
		note = statusBarNoteStyle(note)
	}

	// Empty space
	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(scrollPercent)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := strings.Repeat(" ", padding)
	if showStatusMessage {
		emptySpace = statusBarMessageStyle(emptySpace)
	} else {
		emptySpace = statusBarNoteStyle(emptySpace)
	}

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		scrollPercent,
		helpNote,
	)
}

// playbackNote describes what the reader is doing right now.
func (m model) playbackNote() string {
	title := m.noteTitle()

	if m.err != nil {
		return title + " | Error: " + m.err.Error()
	}

	if m.state == stateSynthesizing {
		if m.synthTotal > 0 {
			return fmt.Sprintf("%s | %s Synthesizing audio (%d/%d)", title, m.spinner.View(), m.synthCompleted, m.synthTotal)
		}
		return fmt.Sprintf("%s | %s Synthesizing audio", title, m.spinner.View())
	}

	voice := fmt.Sprintf("%s %.1fx", m.sess.Voice, m.sess.Speed)

	switch m.mode {
	case player.ModePlaying:
		return fmt.Sprintf("%s | Playing (%d/%d) %.0f%% | %s", title, m.current, m.total, m.chunkPercent(), voice)
	case player.ModePaused:
		return fmt.Sprintf("%s | Paused (%d/%d) | %s. Press space to resume", title, m.current, m.total, voice)
	case player.ModeStopped:
		return title + " | Stopped. Press space to play again"
	default:
		return title + " | Press space to play"
	}
}

func (m model) noteTitle() string {
	if m.cfg.Path == "" {
		return "Reading"
	}
	return filepath.Base(m.cfg.Path)
}

func (m model) chunkPercent() float64 {
	if m.total == 0 {
		return 0
	}
	return 100 * float64(m.current) / float64(m.total)
}

func renderContent(content string, cfg Config, width int) tea.Cmd {
	return func() tea.Msg {
		rendered, err := glamourRender(content, cfg, width)
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
			return contentRenderedMsg(content)
		}
		return contentRenderedMsg(rendered)
	}
}

// glamourRender renders markdown for the viewport. Source files that
// are not markdown are wrapped in a fenced code block first.
func glamourRender(content string, cfg Config, viewportWidth int) (string, error) {
	if !cfg.GlamourEnabled {
		return content, nil
	}

	isCode := cfg.Path != "" && !utils.IsMarkdownFile(cfg.Path)
	width := max(0, min(int(cfg.GlamourMaxWidth), viewportWidth)) //nolint:gosec
	if isCode {
		width = 0
	}

	var styleOption glamour.TermRendererOption
	if isCode {
		styleOption = utils.GlamourStyle(true)
	} else if te.HasDarkBackground() {
		styleOption = glamour.WithStylePath(styles.DarkStyle)
	} else {
		styleOption = glamour.WithStylePath(styles.LightStyle)
	}

	r, err := glamour.NewTermRenderer(
		styleOption,
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}

	src := content
	if isCode {
		src = utils.WrapCodeBlock(src, filepath.Ext(cfg.Path))
	}

	out, err := r.Render(src)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	if isCode {
		out = strings.TrimSpace(out)
	}
	return out, nil
}
