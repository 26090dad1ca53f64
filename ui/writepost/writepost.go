package writepost

import (
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
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

const MaxBodyLetters = 5000

type Model struct {
	Title     textinput.Model
	Body      textarea.Model
	Err       util.ErrMsg
	BoardName string // target board, set via BoardSelectedMsg
	ctx       *app.Context
	acc       domain.Account
	width     int
}

func InitialModel(ctx *app.Context, acc domain.Account, contentWidth int) Model {
	width := common.DefaultWritePostWidth(contentWidth)

	title := textinput.New()
	title.Placeholder = "post title"
	title.CharLimit = 200
	title.Width = 30
	title.Focus()

	body := textarea.New()
	body.Placeholder = "write something"
	body.CharLimit = MaxBodyLetters
	body.ShowLineNumbers = false
	body.SetWidth(30)

	return Model{
		Title: title,
		Body:  body,
		Err:   nil,
		ctx:   ctx,
		acc:   acc,
		width: width,
	}
}

func createPostModelCmd(ctx *app.Context, acc domain.Account, boardName, title, body string) tea.Cmd {
	return func() tea.Msg {
		err, board := ctx.DB.ReadBoardByName(boardName, ctx.Conf.Conf.SslDomain)
		if err != nil {
			log.Printf("WritePost: board %s not found: %v", boardName, err)
			return common.UpdateBoardList
		}

		post := &domain.Post{
			Id:        uuid.New(),
			BoardId:   board.Id,
			AuthorURI: activitypub.PersonURI(ctx.Conf, acc.Username),
			Title:     title,
			Body:      body,
			Local:     true,
			CreatedAt: time.Now(),
		}
		post.ObjectURI = activitypub.PostURI(ctx.Conf, post.Id)

		if err := ctx.DB.CreatePost(post); err != nil {
			log.Println("WritePost: post could not be saved!")
			return common.UpdateBoardList
		}

		// Federate in the background so the UI never blocks on the network
		if ctx.Conf.Conf.WithFederation {
			go func() {
				env := activitypub.NewCreatePost(ctx.Conf, post.AuthorURI, post, board)
				if err := activitypub.FederateActivity(ctx, env, board, false); err != nil {
					log.Printf("WritePost: failed to federate post: %v", err)
				} else {
					log.Printf("WritePost: post federated to +%s", board.Name)
				}
			}()
		}

		return common.UpdateBoardList
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case common.BoardSelectedMsg:
		m.BoardName = msg.BoardName
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyTab:
			// tab switches panes at the top level, keep it out of the textarea
			return m, nil
		case tea.KeyCtrlA:
			if m.Title.Focused() {
				m.Title.Blur()
				cmds = append(cmds, m.Body.Focus())
			} else {
				m.Body.Blur()
				cmds = append(cmds, m.Title.Focus())
			}
		case tea.KeyCtrlS:
			if m.BoardName == "" {
				log.Println("WritePost: no board selected")
				return m, nil
			}
			title := util.NormalizeInput(m.Title.Value())
			body := util.NormalizeInput(m.Body.Value())
			if title == "" {
				return m, nil
			}
			m.Title.SetValue("")
			m.Body.SetValue("")
			return m, createPostModelCmd(m.ctx, m.acc, m.BoardName, title, body)
		case tea.KeyCtrlC:
			return m, tea.Quit
		}

	case util.ErrMsg:
		m.Err = msg
		return m, nil
	}

	m.Title, cmd = m.Title.Update(msg)
	cmds = append(cmds, cmd)
	m.Body, cmd = m.Body.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	target := "no board selected (pick one in the boards pane)"
	if m.BoardName != "" {
		target = "+" + m.BoardName
	}

	inputs := lipgloss.NewStyle().PaddingLeft(5).PaddingRight(5).Margin(2).
		Render(m.Title.View() + "\n\n" + m.Body.View())
	help := common.HelpStyle.PaddingLeft(7).Render(
		fmt.Sprintf("posting to: %s\n\nswitch field: ctrl+a • submit post: ctrl+s", target))
	caption := common.CaptionStyle.PaddingLeft(7).Render("new post")

	return fmt.Sprintf("%s\n\n%s\n\n%s", caption, inputs, help)
}
