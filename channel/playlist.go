package channel

import "github.com/yono39/cytui/domain"

// PlaylistState mirrors the server-authoritative queue. Ordering is
// mutated only by explicit insert/move/delete events and never
// re-sorted locally.
type PlaylistState struct {
	items   []domain.PlaylistItem
	rawTime int64
	count   int
	time    string
	locked  bool
}

func NewPlaylistState() *PlaylistState {
	return &PlaylistState{}
}

func (p *PlaylistState) SetItems(items []domain.PlaylistItem) {
	p.items = append([]domain.PlaylistItem(nil), items...)
}

func (p *PlaylistState) Items() []domain.PlaylistItem {
	return p.items
}

func (p *PlaylistState) AddFirst(item domain.PlaylistItem) {
	p.items = append([]domain.PlaylistItem{item}, p.items...)
}

// AddAfter inserts item directly after the entry with afterUID, or at
// the end when the anchor is unknown (the snapshot will correct us).
func (p *PlaylistState) AddAfter(item domain.PlaylistItem, afterUID int) {
	idx := p.indexOf(afterUID)
	if idx < 0 {
		p.items = append(p.items, item)
		return
	}
	p.items = append(p.items, domain.PlaylistItem{})
	copy(p.items[idx+2:], p.items[idx+1:])
	p.items[idx+1] = item
}

func (p *PlaylistState) Delete(uid int) bool {
	idx := p.indexOf(uid)
	if idx < 0 {
		return false
	}
	p.items = append(p.items[:idx], p.items[idx+1:]...)
	return true
}

func (p *PlaylistState) MoveAfter(uid, afterUID int) {
	idx := p.indexOf(uid)
	if idx < 0 {
		return
	}
	item := p.items[idx]
	p.items = append(p.items[:idx], p.items[idx+1:]...)
	p.AddAfter(item, afterUID)
}

func (p *PlaylistState) MoveToStart(uid int) {
	idx := p.indexOf(uid)
	if idx < 0 {
		return
	}
	item := p.items[idx]
	p.items = append(p.items[:idx], p.items[idx+1:]...)
	p.AddFirst(item)
}

func (p *PlaylistState) SetMeta(rawTime int64, count int, time string) {
	p.rawTime = rawTime
	p.count = count
	p.time = time
}

func (p *PlaylistState) Meta() (rawTime int64, count int, time string) {
	return p.rawTime, p.count, p.time
}

func (p *PlaylistState) SetLocked(locked bool) {
	p.locked = locked
}

func (p *PlaylistState) Locked() bool {
	return p.locked
}

func (p *PlaylistState) Reset() {
	*p = PlaylistState{}
}

func (p *PlaylistState) indexOf(uid int) int {
	for i, item := range p.items {
		if item.UID == uid {
			return i
		}
	}
	return -1
}
