package player

// Sink is the boundary to the audio device. The queue materializes one
// chunk at a time as a WAV file and drives the sink through it.
type Sink interface {
	// Start begins playback of the WAV file at path, replacing whatever
	// chunk was loaded before.
	Start(path string) error

	// Pause suspends the current chunk; Resume continues it in place.
	Pause()
	Resume()

	// Busy reports whether the sink is still rendering the current
	// chunk. A paused sink is not busy.
	Busy() bool

	// Stop halts and unloads the current chunk.
	Stop()

	// Close releases the audio device.
	Close() error
}
