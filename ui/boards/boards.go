package boards

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/ui/common"
	"github.com/deemkeen/glyptodon/util"
	"github.com/google/uuid"
)

var (
	nameStyle = lipgloss.NewStyle().
			Align(lipgloss.Left).
			Foreground(lipgloss.Color(common.COLOR_LIGHTBLUE)).
			Bold(true)

	descStyle = lipgloss.NewStyle().
			Align(lipgloss.Left)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_MAGENTA)).
			Bold(true)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)
)

type Model struct {
	Boards   []domain.Board
	Cursor   int
	Creating bool
	NewName  textinput.Model
	ctx      *app.Context
	acc      domain.Account
	width    int
	height   int
}

func InitialModel(ctx *app.Context, acc domain.Account, width, height int) Model {
	name := textinput.New()
	name.Placeholder = "boardname"
	name.CharLimit = 50
	name.Width = 30

	return Model{
		Boards:  []domain.Board{},
		Cursor:  0,
		NewName: name,
		ctx:     ctx,
		acc:     acc,
		width:   width,
		height:  height,
	}
}

func (m Model) Init() tea.Cmd {
	return loadBoards(m.ctx)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case boardsLoadedMsg:
		m.Boards = msg.boards
		if m.Cursor >= len(m.Boards) {
			m.Cursor = 0
		}
		return m, nil

	case tea.KeyMsg:
		if m.Creating {
			switch msg.String() {
			case "enter":
				name := util.NormalizeInput(m.NewName.Value())
				m.Creating = false
				m.NewName.Blur()
				m.NewName.SetValue("")
				if name == "" {
					return m, nil
				}
				return m, createBoardModelCmd(m.ctx, m.acc, name)
			case "esc":
				m.Creating = false
				m.NewName.Blur()
				m.NewName.SetValue("")
				return m, nil
			}
			m.NewName, cmd = m.NewName.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if len(m.Boards) > 0 && m.Cursor < len(m.Boards)-1 {
				m.Cursor++
			}
		case "enter":
			if len(m.Boards) > 0 {
				selected := m.Boards[m.Cursor]
				return m, func() tea.Msg {
					return common.BoardSelectedMsg{BoardName: selected.Name}
				}
			}
		case "n":
			m.Creating = true
			return m, m.NewName.Focus()
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("boards (%d)", len(m.Boards))))
	s.WriteString("\n\n")

	if m.Creating {
		s.WriteString("Name the new board:\n\n")
		s.WriteString(m.NewName.View())
		s.WriteString("\n\n")
		s.WriteString(common.HelpStyle.Render("enter: create • esc: cancel"))
		return s.String()
	}

	if len(m.Boards) == 0 {
		s.WriteString(emptyStyle.Render("No boards yet.\nPress n to create the first one!"))
	} else {
		for i, board := range m.Boards {
			name := nameStyle.Render("+" + board.Name)
			if i == m.Cursor {
				name = selectedStyle.Render("> +" + board.Name)
			}
			desc := descStyle.Render(truncate(board.Description, 120))

			s.WriteString(lipgloss.JoinVertical(lipgloss.Left, name, desc))
			s.WriteString("\n\n")
		}
	}

	return s.String()
}

// boardsLoadedMsg is sent when the local board list is loaded
type boardsLoadedMsg struct {
	boards []domain.Board
}

func loadBoards(ctx *app.Context) tea.Cmd {
	return func() tea.Msg {
		err, boards := ctx.DB.ReadLocalBoards()
		if err != nil {
			log.Printf("Boards: failed to load board list: %v", err)
			return boardsLoadedMsg{boards: []domain.Board{}}
		}
		if boards == nil {
			return boardsLoadedMsg{boards: []domain.Board{}}
		}
		return boardsLoadedMsg{boards: *boards}
	}
}

// createBoardModelCmd provisions a local board with its own Group actor
// keypair and installs the creator as the rank 0 moderator.
func createBoardModelCmd(ctx *app.Context, acc domain.Account, name string) tea.Cmd {
	return func() tea.Msg {
		keyPair := util.GeneratePemKeypair()
		now := time.Now()

		board := &domain.Board{
			Id:              uuid.New(),
			Name:            name,
			Title:           name,
			Domain:          ctx.Conf.Conf.SslDomain,
			Local:           true,
			ActorURI:        activitypub.BoardURI(ctx.Conf, name),
			InboxURI:        activitypub.BoardInboxURI(ctx.Conf, name),
			SharedInboxURI:  activitypub.SharedInboxURI(ctx.Conf),
			OutboxURI:       activitypub.BoardOutboxURI(ctx.Conf, name),
			ModeratorsURI:   activitypub.BoardModeratorsURI(ctx.Conf, name),
			FeaturedURI:     activitypub.BoardFeaturedURI(ctx.Conf, name),
			PublicKeyPem:    keyPair.Public,
			PrivateKeyPem:   keyPair.Private,
			EnableDownvotes: ctx.Conf.Conf.EnableDownvotes,
			CreatedAt:       now,
			LastRefreshedAt: now,
		}

		if err := ctx.DB.CreateBoard(board); err != nil {
			log.Printf("Boards: board %s could not be created: %v", name, err)
			return common.UpdateBoardList
		}

		mod := &domain.BoardMod{
			Id:        uuid.New(),
			BoardId:   board.Id,
			ActorURI:  activitypub.PersonURI(ctx.Conf, acc.Username),
			Rank:      0,
			CreatedAt: now,
		}
		if err := ctx.DB.CreateBoardMod(mod); err != nil {
			log.Printf("Boards: could not install %s as moderator of +%s: %v",
				acc.Username, name, err)
		}

		log.Printf("Boards: created board +%s", name)
		return common.UpdateBoardList
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
