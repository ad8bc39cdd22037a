package player

// Adapter is the command surface of an embedded video player. The
// synchronizer drives it on externally originated changes (server sync,
// user scrubbing, media change); the adapter reports natural playback
// progress back through State.UpdateInternally on its own heartbeat.
type Adapter interface {
	Load(url string)
	Seek(ms int64)
	Pause()
	Unpause()
	SetVolume(percent int)
	Mute()
	Unmute()
	Duration() int64
	Position() int64
}

// NopAdapter discards every command. It stands in when no local player
// is attached, e.g. chat-only sessions.
type NopAdapter struct{}

func (NopAdapter) Load(string)    {}
func (NopAdapter) Seek(int64)     {}
func (NopAdapter) Pause()         {}
func (NopAdapter) Unpause()       {}
func (NopAdapter) SetVolume(int)  {}
func (NopAdapter) Mute()          {}
func (NopAdapter) Unmute()        {}
func (NopAdapter) Duration() int64 { return -1 }
func (NopAdapter) Position() int64 { return 0 }
