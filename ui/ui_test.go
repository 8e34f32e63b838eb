package ui

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/flight505/Readable/internal/history"
	"github.com/flight505/Readable/internal/player"
)

var errTest = errors.New("boom")

// newTestModel builds a model around a real queue driven by a mock
// sink, so key handling can be exercised without an audio device.
func newTestModel(t *testing.T) (model, *player.MockSink) {
	t.Helper()

	sink := player.NewMockSink()
	queue, err := player.NewQueue(sink)
	if err != nil {
		t.Fatalf("NewQueue() returned error: %v", err)
	}
	t.Cleanup(func() { queue.Close() })

	sess := Session{
		Content:   "# Title\n\nBody text.",
		Speakable: "Title. Body text.",
		Chunks:    []string{"Title.", "Body text."},
		Voice:     "af_bella",
		Speed:     1.0,
		Queue:     queue,
	}
	return newModel(Config{GlamourEnabled: true}, sess), sink
}

func testAudio() [][]byte {
	return [][]byte{[]byte("chunk one audio"), []byte("chunk two audio")}
}

func keyMsg(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// runPlayback executes a queue command and feeds the resulting snapshot
// back through Update, the way the program's event loop would.
func runPlayback(t *testing.T, m *model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("Expected a playback command")
	}
	msg := cmd()
	if _, ok := msg.(playbackSyncMsg); !ok {
		t.Fatalf("Expected a queue snapshot message, got %T", msg)
	}
	next, _ := m.Update(msg)
	*m = next.(model)
}

func TestStateString(t *testing.T) {
	if got := stateSynthesizing.String(); got != "synthesizing audio" {
		t.Errorf("stateSynthesizing.String() = %q", got)
	}
	if got := stateReading.String(); got != "reading" {
		t.Errorf("stateReading.String() = %q", got)
	}
}

func TestMsgBridge(t *testing.T) {
	var got []tea.Msg
	b := &msgBridge{}

	// Posting before a program is attached must not panic.
	b.post(queueCompleteMsg{})

	b.attach(func(msg tea.Msg) { got = append(got, msg) })
	b.post(chunkChangedMsg{current: 1, total: 2})

	if len(got) != 1 {
		t.Fatalf("Expected 1 forwarded message, got %d", len(got))
	}
	if _, ok := got[0].(chunkChangedMsg); !ok {
		t.Errorf("Forwarded message has type %T", got[0])
	}
}

func TestHandleKeyQuit(t *testing.T) {
	m, _ := newTestModel(t)

	cmd, handled := m.handleKey(keyMsg("q"))
	if !handled {
		t.Fatal("Expected q to be handled")
	}
	if cmd == nil {
		t.Fatal("Expected a command for q")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected q to produce a quit message")
	}
}

func TestHandleKeySpaceTogglesPlayback(t *testing.T) {
	m, _ := newTestModel(t)
	m.state = stateReading
	m.playable = testAudio()

	cmd, _ := m.handleKey(keyMsg(" "))
	runPlayback(t, &m, cmd)
	if m.mode != player.ModePlaying {
		t.Fatalf("Expected playing after first space, got %v", m.mode)
	}

	m.handleKey(keyMsg(" "))
	if m.mode != player.ModePaused {
		t.Fatalf("Expected paused after second space, got %v", m.mode)
	}

	m.handleKey(keyMsg(" "))
	if m.mode != player.ModePlaying {
		t.Fatalf("Expected playing after third space, got %v", m.mode)
	}
}

func TestHandleKeySkipAndStop(t *testing.T) {
	m, _ := newTestModel(t)
	m.state = stateReading
	m.playable = testAudio()

	cmd, _ := m.handleKey(keyMsg(" "))
	runPlayback(t, &m, cmd)

	m.handleKey(keyMsg("n"))
	if m.current != 2 {
		t.Errorf("Expected cursor on chunk 2 after skip, got %d", m.current)
	}

	cmd, _ = m.handleKey(keyMsg("s"))
	runPlayback(t, &m, cmd)
	if m.mode != player.ModeStopped {
		t.Errorf("Expected stopped after s, got %v", m.mode)
	}
}

func TestStartPlaybackCmd(t *testing.T) {
	m, _ := newTestModel(t)
	m.state = stateReading
	m.playable = testAudio()

	runPlayback(t, &m, m.startPlaybackCmd())

	if m.mode != player.ModePlaying {
		t.Fatalf("Expected playing after start, got %v", m.mode)
	}
	if m.current != 1 || m.total != 2 {
		t.Errorf("Expected position 1/2, got %d/%d", m.current, m.total)
	}
}

func TestHandleKeyIgnoredWhileSynthesizing(t *testing.T) {
	m, _ := newTestModel(t)

	for _, key := range []string{" ", "n", "s"} {
		if _, handled := m.handleKey(keyMsg(key)); handled {
			t.Errorf("Expected %q to be ignored while synthesizing", key)
		}
	}
}

func TestUpdateSynthDoneStartsPlayback(t *testing.T) {
	m, _ := newTestModel(t)

	next, cmd := m.Update(synthDoneMsg{playable: testAudio(), skipped: 1, round: 0})
	nm := next.(model)

	if nm.state != stateReading {
		t.Errorf("Expected reading state, got %v", nm.state)
	}
	if len(nm.playable) != 2 {
		t.Errorf("Expected 2 playable chunks, got %d", len(nm.playable))
	}
	if cmd == nil {
		t.Error("Expected a command to start playback")
	}
	if nm.statusMessage == "" {
		t.Error("Expected a status message about skipped chunks")
	}
}

func TestUpdateSynthDoneFailure(t *testing.T) {
	m, _ := newTestModel(t)

	next, _ := m.Update(synthDoneMsg{err: errTest, round: 0})
	nm := next.(model)

	if nm.state != stateReading {
		t.Errorf("Expected reading state after failure, got %v", nm.state)
	}
	if nm.err == nil {
		t.Error("Expected the error to be recorded")
	}
	if nm.mode == player.ModePlaying {
		t.Error("Playback must not start after a failed synthesis")
	}
}

func TestUpdateIgnoresStaleSynthesisRound(t *testing.T) {
	m, _ := newTestModel(t)
	m.round = 2

	next, _ := m.Update(synthDoneMsg{playable: testAudio(), round: 1})
	nm := next.(model)

	if nm.state != stateSynthesizing {
		t.Errorf("Stale round must be ignored, got state %v", nm.state)
	}

	next, _ = nm.Update(synthProgressMsg{completed: 5, total: 9, round: 1})
	nm = next.(model)
	if nm.synthCompleted != 0 {
		t.Errorf("Stale progress must be ignored, got %d", nm.synthCompleted)
	}
}

func TestUpdateSynthProgress(t *testing.T) {
	m, _ := newTestModel(t)

	next, _ := m.Update(synthProgressMsg{completed: 3, total: 8, round: 0})
	nm := next.(model)

	if nm.synthCompleted != 3 || nm.synthTotal != 8 {
		t.Errorf("Expected progress 3/8, got %d/%d", nm.synthCompleted, nm.synthTotal)
	}
}

func TestUpdateChunkChanged(t *testing.T) {
	m, _ := newTestModel(t)
	m.state = stateReading

	next, _ := m.Update(chunkChangedMsg{current: 2, total: 3})
	nm := next.(model)

	if nm.current != 2 || nm.total != 3 {
		t.Errorf("Expected position 2/3, got %d/%d", nm.current, nm.total)
	}
}

func TestUpdateQueueComplete(t *testing.T) {
	m, _ := newTestModel(t)
	m.state = stateReading
	m.mode = player.ModePlaying

	next, _ := m.Update(queueCompleteMsg{})
	nm := next.(model)

	if nm.mode != player.ModeStopped {
		t.Errorf("Expected stopped after completion, got %v", nm.mode)
	}
	if nm.statusMessage == "" {
		t.Error("Expected a completion status message")
	}
}

func TestRecordHistoryOnce(t *testing.T) {
	m, _ := newTestModel(t)
	store, err := history.New(filepath.Join(t.TempDir(), "history.json.zst"), 10)
	if err != nil {
		t.Fatalf("history.New() returned error: %v", err)
	}
	m.sess.History = store

	m.recordHistory()
	m.recordHistory()

	if store.Len() != 1 {
		t.Errorf("Expected exactly one history entry, got %d", store.Len())
	}
}

func TestReprocessRestartsSynthesis(t *testing.T) {
	m, _ := newTestModel(t)
	m.state = stateReading
	m.playable = testAudio()
	m.recorded = true
	m.sess.Reprocess = func(raw string) (string, string, []string, error) {
		return raw, "cleaned prose", []string{"cleaned prose"}, nil
	}

	cmds := m.reprocess("fresh text")

	if m.state != stateSynthesizing {
		t.Errorf("Expected synthesizing after reload, got %v", m.state)
	}
	if m.round != 1 {
		t.Errorf("Expected round 1 after reload, got %d", m.round)
	}
	if m.sess.Speakable != "cleaned prose" {
		t.Errorf("Expected reprocessed prose, got %q", m.sess.Speakable)
	}
	if m.recorded {
		t.Error("Reload must allow the new content to be recorded")
	}
	if len(cmds) == 0 {
		t.Error("Expected reload to produce follow-up commands")
	}
}

func TestReprocessKeepsSessionOnError(t *testing.T) {
	m, _ := newTestModel(t)
	m.state = stateReading
	m.sess.Reprocess = func(raw string) (string, string, []string, error) {
		return "", "", nil, errTest
	}

	m.reprocess("broken")

	if m.state != stateReading {
		t.Errorf("Expected state to survive a failed reload, got %v", m.state)
	}
	if m.sess.Speakable == "" {
		t.Error("Expected the old session text to survive a failed reload")
	}
	if m.statusMessage == "" {
		t.Error("Expected a reload failure status message")
	}
}

func TestPlaybackNote(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *model)
		want   string
	}{
		{
			name:   "synthesizing",
			mutate: func(m *model) { m.synthCompleted = 1; m.synthTotal = 4 },
			want:   "Synthesizing audio (1/4)",
		},
		{
			name: "playing",
			mutate: func(m *model) {
				m.state = stateReading
				m.mode = player.ModePlaying
				m.current, m.total = 2, 4
			},
			want: "Playing (2/4) 50%",
		},
		{
			name: "paused",
			mutate: func(m *model) {
				m.state = stateReading
				m.mode = player.ModePaused
				m.current, m.total = 2, 4
			},
			want: "Paused (2/4)",
		},
		{
			name:   "stopped",
			mutate: func(m *model) { m.state = stateReading; m.mode = player.ModeStopped },
			want:   "Stopped",
		},
		{
			name:   "idle",
			mutate: func(m *model) { m.state = stateReading; m.mode = player.ModeIdle },
			want:   "Press space to play",
		},
		{
			name:   "error",
			mutate: func(m *model) { m.err = errTest },
			want:   "Error: boom",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m, _ := newTestModel(t)
			test.mutate(&m)

			if got := m.playbackNote(); !strings.Contains(got, test.want) {
				t.Errorf("playbackNote() = %q, expected it to contain %q", got, test.want)
			}
		})
	}
}

func TestNoteTitle(t *testing.T) {
	m, _ := newTestModel(t)
	if got := m.noteTitle(); got != "Reading" {
		t.Errorf("Expected fallback title, got %q", got)
	}

	m.cfg.Path = "/docs/notes.md"
	if got := m.noteTitle(); got != "notes.md" {
		t.Errorf("Expected base name title, got %q", got)
	}
}

func TestGlamourRenderDisabled(t *testing.T) {
	content := "# Title\n\nplain"
	out, err := glamourRender(content, Config{GlamourEnabled: false}, 80)
	if err != nil {
		t.Fatalf("glamourRender() returned error: %v", err)
	}
	if out != content {
		t.Error("Expected content unchanged when rendering is disabled")
	}
}

func TestGlamourRenderMarkdown(t *testing.T) {
	cfg := Config{GlamourEnabled: true, GlamourMaxWidth: 80}
	out, err := glamourRender("# Title\n\nBody text.", cfg, 80)
	if err != nil {
		t.Fatalf("glamourRender() returned error: %v", err)
	}
	if !strings.Contains(out, "Title") {
		t.Errorf("Rendered output lost the heading: %q", out)
	}
}

func TestGlamourRenderWrapsSourceCode(t *testing.T) {
	cfg := Config{GlamourEnabled: true, GlamourMaxWidth: 80, Path: "main.go"}
	out, err := glamourRender("package main", cfg, 80)
	if err != nil {
		t.Fatalf("glamourRender() returned error: %v", err)
	}
	if !strings.Contains(out, "package main") {
		t.Errorf("Rendered output lost the source text: %q", out)
	}
}
