package domain

// MediaItem describes one playable entry as the server reports it.
// Type is the server's logical type tag ("yt" for the recognized video
// host, "fi" for a direct file locator).
type MediaItem struct {
	ID       string
	Title    string
	Type     string
	Duration string
	Seconds  int64
}

type PlaylistItem struct {
	UID     int
	Temp    bool
	QueueBy string
	Media   MediaItem
}

func NewPlaylistItem(uid int, temp bool, queueBy string, media MediaItem) PlaylistItem {
	return PlaylistItem{
		UID:     uid,
		Temp:    temp,
		QueueBy: queueBy,
		Media:   media,
	}
}
