package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"studygroup-service/internal/chatclient"
	"studygroup-service/internal/models"
)

var (
	nameStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	selfStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	aiStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	systemStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
	metaStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	pendingStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	reactionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

const chatHelp = `commands:
  /reply <message-id> <text>   reply to a message
  /react <message-id> <emoji>  toggle a reaction (palette: %s)
  /refresh                     reload messages from the server
  /quit                        leave the chat
  @ai <question>               ask the AI assistant`

type printer struct {
	mu  sync.Mutex
	out io.Writer
	me  string
}

func (p *printer) line(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

func (p *printer) message(e chatclient.Entry) {
	m := e.Message
	var sender string
	switch {
	case m.Sender == models.SenderSystem:
		p.line(systemStyle.Render(m.Text))
		return
	case m.Sender == models.SenderAssistant:
		sender = aiStyle.Render(m.Sender)
	case m.Sender == p.me:
		sender = selfStyle.Render(m.Sender)
	default:
		sender = nameStyle.Render(m.Sender)
	}

	text := m.Text
	if e.State == chatclient.Displayed {
		text = pendingStyle.Render(text + " (sending)")
	}
	head := fmt.Sprintf("%s %s %s", metaStyle.Render("["+m.Timestamp+"]"), sender, metaStyle.Render(m.ID))
	if m.ParentID != "" {
		head += metaStyle.Render(" ↳ " + m.ParentID)
	}
	line := head + "\n  " + text
	if len(m.Reactions) > 0 {
		parts := make([]string, 0, len(m.Reactions))
		for _, symbol := range reactionOrder(m.Reactions) {
			parts = append(parts, fmt.Sprintf("%s %d", symbol, len(m.Reactions[symbol])))
		}
		line += "\n  " + reactionStyle.Render(strings.Join(parts, "  "))
	}
	p.line(line)
}

// reactionOrder lists palette symbols first, then any others sorted.
func reactionOrder(r models.Reactions) []string {
	out := make([]string, 0, len(r))
	inPalette := make(map[string]bool, len(chatclient.Palette))
	for _, symbol := range chatclient.Palette {
		inPalette[symbol] = true
		if len(r[symbol]) > 0 {
			out = append(out, symbol)
		}
	}
	var rest []string
	for symbol, who := range r {
		if !inPalette[symbol] && len(who) > 0 {
			rest = append(rest, symbol)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func (p *printer) render(ev chatclient.Event) {
	switch ev.Kind {
	case chatclient.EventRendered:
		p.message(ev.Entry)
	case chatclient.EventRolledBack:
		p.line(errorStyle.Render(fmt.Sprintf("message %s was not sent: %v", ev.Entry.Message.ID, ev.Err)))
	case chatclient.EventReplaced:
		if ev.Err == nil {
			p.message(ev.Entry)
		}
	case chatclient.EventAssistantPending:
		p.line(aiStyle.Render("AI is typing..."))
	case chatclient.EventAssistantDone:
		if ev.Err != nil {
			p.line(errorStyle.Render(fmt.Sprintf("assistant failed: %v", ev.Err)))
			return
		}
		p.message(ev.Entry)
	}
}

func runChat(ctx context.Context, tr chatclient.Transport, groupID string, in io.Reader, out io.Writer) error {
	p := &printer{out: out, me: username}
	room := chatclient.NewRoom(tr, groupID, username, chatclient.WithRenderer(p.render))
	if err := room.Load(ctx); err != nil {
		return err
	}
	p.line(metaStyle.Render(fmt.Sprintf(chatHelp, strings.Join(chatclient.Palette, " "))))

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "/quit":
			room.Wait()
			return nil
		case "/refresh":
			if err := room.Refresh(ctx); err != nil {
				p.line(errorStyle.Render(err.Error()))
				continue
			}
			for _, e := range room.Entries() {
				p.message(e)
			}
		case "/reply":
			parent, text, ok := strings.Cut(rest, " ")
			if !ok {
				p.line(errorStyle.Render("usage: /reply <message-id> <text>"))
				continue
			}
			_, _ = room.Send(ctx, text, parent)
		case "/react":
			id, emoji, ok := strings.Cut(rest, " ")
			if !ok {
				p.line(errorStyle.Render("usage: /react <message-id> <emoji>"))
				continue
			}
			if _, err := room.ToggleReaction(ctx, id, strings.TrimSpace(emoji)); errors.Is(err, chatclient.ErrUnknownMessage) {
				p.line(errorStyle.Render("no such message: " + id))
			}
		default:
			_, _ = room.Send(ctx, line, "")
		}
	}
	room.Wait()
	return scanner.Err()
}
