package domain

import "time"

type PollOption struct {
	Name  string
	Count int
	Index int
}

// Percent is this option's share of all votes, 0 when the poll is empty.
func (o PollOption) Percent(total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(o.Count) / float64(total) * 100
}

type Poll struct {
	Title     string
	Initiator string
	Timestamp time.Time
	Options   []PollOption
}

func NewPoll(title, initiator string, ts time.Time, options []string, counts []int) Poll {
	opts := make([]PollOption, 0, len(options))
	for i, name := range options {
		count := 0
		if i < len(counts) {
			count = counts[i]
		}
		opts = append(opts, PollOption{Name: name, Count: count, Index: i})
	}
	return Poll{
		Title:     title,
		Initiator: initiator,
		Timestamp: ts,
		Options:   opts,
	}
}

func (p Poll) TotalCount() int {
	total := 0
	for _, o := range p.Options {
		total += o.Count
	}
	return total
}
