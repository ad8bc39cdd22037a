package channel

import "github.com/yono39/cytui/domain"

// PollState tracks the channel's single active poll. A new poll
// unconditionally replaces whatever came before it.
type PollState struct {
	active bool
	closed bool
	poll   domain.Poll
	chosen int
}

func NewPollState() *PollState {
	return &PollState{chosen: -1}
}

func (p *PollState) StartNew(poll domain.Poll) {
	p.poll = poll
	p.active = true
	p.closed = false
	p.chosen = -1
}

// Update refreshes option counts for the current poll.
func (p *PollState) Update(poll domain.Poll) {
	if !p.active {
		return
	}
	p.poll = poll
}

func (p *PollState) Close() {
	p.closed = true
}

// Choose records the locally cast vote so the UI can highlight it.
func (p *PollState) Choose(option int) {
	if !p.active || p.closed {
		return
	}
	p.chosen = option
}

func (p *PollState) Active() bool {
	return p.active
}

func (p *PollState) Closed() bool {
	return p.closed
}

func (p *PollState) Current() domain.Poll {
	return p.poll
}

func (p *PollState) Chosen() int {
	return p.chosen
}

func (p *PollState) Reset() {
	*p = PollState{chosen: -1}
}
