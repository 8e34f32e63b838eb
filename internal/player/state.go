package player

// Mode represents the playback queue state.
type Mode int

const (
	// ModeIdle indicates no playback has started on the loaded queue.
	ModeIdle Mode = iota
	// ModePlaying indicates a chunk is being rendered.
	ModePlaying
	// ModePaused indicates playback is suspended mid-chunk.
	ModePaused
	// ModeStopped indicates playback ended, by request or because the
	// queue ran out.
	ModeStopped
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModePlaying:
		return "playing"
	case ModePaused:
		return "paused"
	case ModeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Active reports whether a playback loop currently owns the queue.
func (m Mode) Active() bool {
	return m == ModePlaying || m == ModePaused
}

// CanPause reports whether Pause is valid in this mode.
func (m Mode) CanPause() bool {
	return m == ModePlaying
}
