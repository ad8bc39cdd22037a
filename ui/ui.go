package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-shellwords"
	"github.com/rivo/tview"

	"github.com/yono39/cytui/channel"
	"github.com/yono39/cytui/domain"
	"github.com/yono39/cytui/history"
)

const pastMessagesLimit = 50

// UI is the full-screen watch view: chat log and input on the left,
// roster and playlist on the right, playback and poll state in the
// header. It renders snapshots built on the session's dispatch
// goroutine, so it never reads live session state concurrently.
type UI struct {
	app        *tview.Application
	chatView   *tview.TextView
	sideView   *tview.TextView
	statusView *tview.TextView
	input      *tview.InputField

	session     *channel.Session
	store       *history.Store
	channelName string
}

func New(sess *channel.Session, store *history.Store, channelName string) *UI {
	u := &UI{
		app:         tview.NewApplication(),
		session:     sess,
		store:       store,
		channelName: channelName,
	}

	u.chatView = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetScrollable(true).
		ScrollToEnd()

	u.sideView = tview.NewTextView().
		SetDynamicColors(true)

	u.statusView = tview.NewTextView().
		SetDynamicColors(true)

	u.input = tview.NewInputField().
		SetLabel("❯❯ ").
		SetFieldWidth(0).
		SetAcceptanceFunc(tview.InputFieldMaxLength(320))

	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(u.statusView, 1, 0, false).
		AddItem(u.chatView, 0, 1, false).
		AddItem(u.input, 1, 0, true)

	flex := tview.NewFlex().
		AddItem(left, 0, 3, true).
		AddItem(u.sideView, 28, 0, false)

	u.app.SetRoot(flex, true).SetFocus(u.input)
	return u
}

// Run loads recent history, hooks redraws to session updates and
// blocks in the tview event loop until quit.
func (u *UI) Run() error {
	u.loadHistory()

	u.session.SetOnUpdate(func() {
		// Runs on the dispatch goroutine: snapshot first, draw later.
		chat := u.renderChat()
		side := u.renderSidebar()
		status := u.renderStatus()
		u.app.QueueUpdateDraw(func() {
			u.chatView.SetText(chat)
			u.chatView.ScrollToEnd()
			u.sideView.SetText(side)
			u.statusView.SetText(status)
		})
	})

	u.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(u.input.GetText())
		u.input.SetText("")
		if text == "" {
			return
		}
		u.handleInput(text)
	})

	u.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			u.app.Stop()
			return nil
		}
		return event
	})

	return u.app.Run()
}

func (u *UI) loadHistory() {
	if u.store == nil {
		return
	}
	past, err := u.store.Recent(u.channelName, pastMessagesLimit)
	if err != nil {
		fmt.Fprintf(u.chatView, "[red]can't load history: %v\n", err)
		return
	}
	for _, msg := range past {
		fmt.Fprintf(u.chatView, "[gray][%s] %s: %s\n",
			msg.Time.Format("15:04:05"), msg.User, tview.Escape(msg.Text))
	}
}

// handleInput routes slash commands and plain chat lines.
func (u *UI) handleInput(text string) {
	if !strings.HasPrefix(text, "/") {
		u.session.SendChat(text)
		return
	}

	args, err := shellwords.Parse(strings.TrimPrefix(text, "/"))
	if err != nil || len(args) == 0 {
		u.echo("[red]bad command: " + tview.Escape(text))
		return
	}

	switch args[0] {
	case "login":
		if len(args) < 2 {
			u.echo("[red]usage: /login <name> [password]")
			return
		}
		password := ""
		if len(args) > 2 {
			password = args[2]
		}
		u.session.LoginAs(args[1], password, true)
	case "queue":
		if len(args) < 2 {
			u.echo("[red]usage: /queue <url> [next] [temp]")
			return
		}
		putLast := true
		temp := false
		for _, flag := range args[2:] {
			switch flag {
			case "next":
				putLast = false
			case "temp":
				temp = true
			}
		}
		u.session.QueueMedia(args[1], putLast, temp)
	case "vote":
		if len(args) < 2 {
			u.echo("[red]usage: /vote <option>")
			return
		}
		option, err := strconv.Atoi(args[1])
		if err != nil {
			u.echo("[red]vote option must be a number")
			return
		}
		u.session.Vote(option)
	case "seek":
		if len(args) < 2 {
			u.echo("[red]usage: /seek <seconds>")
			return
		}
		seconds, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			u.echo("[red]seek position must be a number")
			return
		}
		u.session.SeekTo(seconds * 1000)
	case "logout":
		u.session.Logout()
	case "disconnect":
		u.session.Disconnect()
	case "reconnect":
		u.session.Reconnect()
	case "quit":
		u.app.Stop()
	default:
		u.echo("[red]unknown command: /" + tview.Escape(args[0]))
	}
}

func (u *UI) echo(line string) {
	u.app.QueueUpdateDraw(func() {
		fmt.Fprintln(u.chatView, line)
	})
}

// --- render snapshots (dispatch goroutine only) ---

func (u *UI) renderChat() string {
	var b strings.Builder
	for _, msg := range u.session.Chat.Messages() {
		switch msg.Type {
		case domain.MessageUser:
			fmt.Fprintf(&b, "[white][%s] [blue]%s[white]: %s\n",
				msg.Time.Format("15:04:05"), tview.Escape(msg.User), tview.Escape(msg.Text))
		case domain.MessageSystem:
			fmt.Fprintf(&b, "[yellow]%s\n", tview.Escape(msg.Text))
		case domain.MessageAnnouncement:
			fmt.Fprintf(&b, "[green]%s\n", tview.Escape(msg.Text))
		case domain.MessageConnection:
			color := "green"
			if msg.Connection == domain.ConnectionDisconnected {
				color = "red"
			}
			fmt.Fprintf(&b, "[%s]— %s —\n", color, tview.Escape(msg.Text))
		}
	}
	return b.String()
}

func (u *UI) renderSidebar() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[::b]Users (%d)[-:-:-]\n", u.session.Users.Count())
	for _, user := range u.session.Users.Users() {
		marker := ""
		if user.AFK {
			marker = " [gray](afk)"
		}
		if user.Rank >= 2 {
			fmt.Fprintf(&b, "[red]@%s[white]%s\n", tview.Escape(user.Name), marker)
		} else {
			fmt.Fprintf(&b, "%s%s\n", tview.Escape(user.Name), marker)
		}
	}

	items := u.session.Playlist.Items()
	_, count, total := u.session.Playlist.Meta()
	fmt.Fprintf(&b, "\n[::b]Playlist (%d, %s)[-:-:-]\n", count, total)
	for _, item := range items {
		fmt.Fprintf(&b, "[white]%s [gray]%s\n", tview.Escape(item.Media.Title), item.Media.Duration)
	}

	if u.session.Poll.Active() {
		poll := u.session.Poll.Current()
		total := poll.TotalCount()
		state := ""
		if u.session.Poll.Closed() {
			state = " (closed)"
		}
		fmt.Fprintf(&b, "\n[::b]Poll%s: %s[-:-:-]\n", state, tview.Escape(poll.Title))
		for _, option := range poll.Options {
			chosen := " "
			if option.Index == u.session.Poll.Chosen() {
				chosen = "*"
			}
			fmt.Fprintf(&b, "%s %d. %s — %d (%.0f%%)\n",
				chosen, option.Index, tview.Escape(option.Name), option.Count, option.Percent(total))
		}
	}
	return b.String()
}

func (u *UI) renderStatus() string {
	status := u.session.Status()
	player := u.session.Player

	who := "guest"
	if status.CurrentUser != "" {
		who = status.CurrentUser
	}
	where := status.CurrentChannel
	if where == "" {
		where = fmt.Sprintf("(%s)", status.State)
	}
	line := fmt.Sprintf("[::b]%s[-:-:-] as %s", where, who)
	if status.DisconnectReason != "" {
		line += fmt.Sprintf(" [red]%s", tview.Escape(status.DisconnectReason))
	}
	if player.MRL() != "" {
		playState := "▶"
		if !player.Playing() {
			playState = "⏸"
		}
		line += fmt.Sprintf("  %s %s / %s", playState, player.CurrentTimeString(), player.LengthString())
	}
	return line
}
