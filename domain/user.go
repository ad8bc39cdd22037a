package domain

type User struct {
	Name  string
	Rank  float64
	AFK   bool
	Muted bool
}

func NewUser(name string, rank float64, afk, muted bool) User {
	return User{
		Name:  name,
		Rank:  rank,
		AFK:   afk,
		Muted: muted,
	}
}

type Emote struct {
	Name  string
	Image string
}

func NewEmote(name, image string) Emote {
	return Emote{Name: name, Image: image}
}
