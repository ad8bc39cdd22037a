package player

import (
	"fmt"
	"time"
)

// DefaultSyncThreshold is the drift, in milliseconds, past which the
// server timeline forces a hard seek. Below it the player is left
// alone so small jitter does not cause visible stutter.
const DefaultSyncThreshold = 2000

// TimeState tracks the playback position together with a marker that
// distinguishes externally driven updates from the player reporting its
// own progress. The toggle flips exactly once per external update and
// never on internal ones; whoever drives the real player watches the
// toggle to know when an actual seek command is due.
type TimeState struct {
	time             int64
	externallyToggle bool
}

func (t *TimeState) Time() int64 {
	return t.time
}

func (t *TimeState) ExternallyToggle() bool {
	return t.externallyToggle
}

// Update records an externally driven position change and flips the toggle.
func (t *TimeState) Update(ms int64) {
	t.time = ms
	t.externallyToggle = !t.externallyToggle
}

// UpdateInternally records the player's own reported progress.
func (t *TimeState) UpdateInternally(ms int64) {
	t.time = ms
}

// State is the local mirror of the server-authoritative playback
// timeline for the currently loaded media. All methods must be called
// from the owning channel session's dispatch goroutine.
type State struct {
	TimeState TimeState

	syncThreshold int64
	playing       bool
	mrl           string
	length        int64
	volume        int
	muted         bool
	buffering     bool

	adapter Adapter
}

func NewState(syncThreshold int64) *State {
	if syncThreshold <= 0 {
		syncThreshold = DefaultSyncThreshold
	}
	return &State{
		syncThreshold: syncThreshold,
		playing:       true,
		length:        -1,
		volume:        50,
		adapter:       NopAdapter{},
	}
}

// SetAdapter attaches the player that receives seek/pause commands.
func (s *State) SetAdapter(a Adapter) {
	if a == nil {
		a = NopAdapter{}
	}
	s.adapter = a
}

// Sync reconciles the local timeline with a server position report.
// Position is corrected only when drift exceeds the threshold; the
// play/pause state is corrected unconditionally.
func (s *State) Sync(serverTime int64, paused bool) {
	drift := serverTime - s.TimeState.Time()
	if drift < 0 {
		drift = -drift
	}
	if drift > s.syncThreshold {
		s.TimeState.Update(serverTime)
		s.adapter.Seek(serverTime)
	}

	if !paused && !s.playing {
		s.Play()
	} else if paused && s.playing {
		s.Pause()
	}
}

// SeekTo is a user-initiated scrub. It takes the same path as a server
// correction: one external update, one real seek.
func (s *State) SeekTo(ms int64) {
	s.TimeState.Update(ms)
	s.adapter.Seek(ms)
}

// UpdateInternally is the player adapter's natural-playback heartbeat.
func (s *State) UpdateInternally(ms int64) {
	s.TimeState.UpdateInternally(ms)
}

func (s *State) Play() {
	s.playing = true
	s.adapter.Unpause()
}

func (s *State) Pause() {
	s.playing = false
	s.adapter.Pause()
}

func (s *State) Playing() bool {
	return s.playing
}

// SetMRL replaces the loaded media. Playback defaults to playing; the
// adapter starts the new media from zero itself, so the position is
// deliberately left untouched here.
func (s *State) SetMRL(mrl string) {
	s.mrl = mrl
	s.playing = true
	if mrl != "" {
		s.adapter.Load(mrl)
	}
}

func (s *State) MRL() string {
	return s.mrl
}

func (s *State) SetLength(ms int64) {
	s.length = ms
}

func (s *State) Length() int64 {
	return s.length
}

func (s *State) SetVolume(percent int) {
	s.volume = percent
	s.adapter.SetVolume(percent)
}

func (s *State) Volume() int {
	return s.volume
}

func (s *State) Mute() {
	s.muted = true
	s.adapter.Mute()
}

func (s *State) Unmute() {
	s.muted = false
	s.adapter.Unmute()
}

func (s *State) Muted() bool {
	return s.muted
}

func (s *State) SetBuffering(buffering bool) {
	s.buffering = buffering
}

func (s *State) Buffering() bool {
	return s.buffering
}

// Reset clears the timeline for a full channel reset. The synchronizer
// is reset rather than carried across reconnects.
func (s *State) Reset() {
	s.TimeState = TimeState{}
	s.playing = true
	s.mrl = ""
	s.length = -1
	s.buffering = false
}

func (s *State) CurrentTimeString() string {
	return DurationString(s.TimeState.Time())
}

func (s *State) LengthString() string {
	return DurationString(s.length)
}

// DurationString renders milliseconds as M:SS, or H:MM:SS past an hour.
func DurationString(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	d := time.Duration(ms) * time.Millisecond
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	if hours == 0 {
		return fmt.Sprintf("%d:%02d", minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
}
