package channel

import (
	"testing"
	"time"

	"github.com/yono39/cytui/domain"
)

func TestChatHistoryBounded(t *testing.T) {
	c := NewChatState(3)
	for i, text := range []string{"a", "b", "c", "d", "e"} {
		c.Add(domain.NewUserMessage(time.Now().Add(time.Duration(i)), "u", text))
	}

	msgs := c.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	if msgs[0].Text != "c" || msgs[2].Text != "e" {
		t.Fatalf("kept = %q..%q, want the newest three", msgs[0].Text, msgs[2].Text)
	}
}

func TestEmoteUpdateAndRemove(t *testing.T) {
	c := NewChatState(10)
	c.SetEmotes([]domain.Emote{
		domain.NewEmote("pog", "pog-v1.png"),
		domain.NewEmote("lul", "lul.png"),
	})

	c.UpdateEmote(domain.NewEmote("pog", "pog-v2.png"))
	c.UpdateEmote(domain.NewEmote("new", "new.png"))

	emotes := c.Emotes()
	if len(emotes) != 3 {
		t.Fatalf("len = %d, want 3", len(emotes))
	}
	if emotes[0].Image != "pog-v2.png" {
		t.Fatalf("update did not replace in place: %+v", emotes[0])
	}

	c.RemoveEmote(domain.NewEmote("lul", "lul.png"))
	if len(c.Emotes()) != 2 {
		t.Fatalf("remove failed: %+v", c.Emotes())
	}
}

func TestUserListSorting(t *testing.T) {
	u := NewUserList()
	u.SetUsers([]domain.User{
		domain.NewUser("zed", 0, false, false),
		domain.NewUser("Mod", 3, false, false),
		domain.NewUser("anna", 0, false, false),
	})

	users := u.Users()
	if users[0].Name != "Mod" || users[1].Name != "anna" || users[2].Name != "zed" {
		t.Fatalf("order = %v", users)
	}
}

func TestUserListAddReplacesAndAFK(t *testing.T) {
	u := NewUserList()
	u.SetUsers([]domain.User{domain.NewUser("bob", 0, false, false)})

	u.Add(domain.NewUser("bob", 2, false, true))
	if len(u.Users()) != 1 || u.Users()[0].Rank != 2 || !u.Users()[0].Muted {
		t.Fatalf("add did not replace existing user: %+v", u.Users())
	}

	u.SetAFK("bob", true)
	if !u.Users()[0].AFK {
		t.Fatalf("afk flag not set")
	}

	u.Remove("bob")
	if len(u.Users()) != 0 {
		t.Fatalf("remove failed")
	}
}
