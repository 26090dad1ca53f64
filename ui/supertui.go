package ui

import (
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/ui/activities"
	"github.com/deemkeen/glyptodon/ui/boards"
	"github.com/deemkeen/glyptodon/ui/common"
	"github.com/deemkeen/glyptodon/ui/createuser"
	"github.com/deemkeen/glyptodon/ui/header"
	"github.com/deemkeen/glyptodon/ui/writepost"
)

var (
	modelStyle = lipgloss.NewStyle().
			Align(lipgloss.Top, lipgloss.Top).
			BorderStyle(lipgloss.HiddenBorder()).MarginLeft(1)
	focusedModelStyle = lipgloss.NewStyle().
				Align(lipgloss.Top, lipgloss.Top).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color(common.COLOR_LIGHTBLUE)).MarginLeft(1)
)

type MainModel struct {
	ctx             *app.Context
	width           int
	height          int
	headerModel     header.Model
	account         domain.Account
	state           common.SessionState
	newUserModel    createuser.Model
	writeModel      writepost.Model
	boardsModel     boards.Model
	activitiesModel activities.Model
}

func updateUserModelCmd(ctx *app.Context, acc *domain.Account, displayName, summary string) tea.Cmd {
	return func() tea.Msg {
		acc.FirstTimeLogin = domain.FALSE
		err := ctx.DB.UpdateProfileById(acc.Id, acc.Username, displayName, summary)
		if err != nil {
			log.Println(fmt.Sprintf("User %s could not be updated!", acc.Username))
		}
		return nil
	}
}

func NewModel(ctx *app.Context, acc domain.Account, width int, height int) MainModel {

	width = common.DefaultWindowWidth(width)
	height = common.DefaultWindowHeight(height)

	m := MainModel{ctx: ctx, state: common.WritePostView}
	m.newUserModel = createuser.InitialModel()
	m.writeModel = writepost.InitialModel(ctx, acc, width)
	m.boardsModel = boards.InitialModel(ctx, acc, width, height)
	m.activitiesModel = activities.InitialModel(ctx, width, height)
	m.headerModel = header.Model{Width: width, Acc: &acc}
	m.account = acc
	m.width = width
	m.height = height
	return m
}

func (m MainModel) Init() tea.Cmd {
	var cmds []tea.Cmd

	// Load the board list on startup
	cmds = append(cmds, m.boardsModel.Init())

	if m.account.FirstTimeLogin == domain.TRUE {
		cmds = append(cmds, func() tea.Msg {
			return common.CreateUserView
		})
	} else {
		cmds = append(cmds, func() tea.Msg {
			return common.BoardsView
		})
	}

	return tea.Batch(cmds...)
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.headerModel.Width = msg.Width
		return m, nil

	case common.SessionState:
		switch msg {
		case common.CreateUserView:
			m.state = common.CreateUserView
		case common.WritePostView:
			m.state = common.WritePostView
		case common.BoardsView:
			m.state = common.BoardsView
		case common.ActivitiesView:
			m.state = common.ActivitiesView
		case common.UpdateBoardList:
			return m, m.boardsModel.Init()
		case common.UpdateActivityList:
			return m, m.activitiesModel.Init()
		}

	case common.BoardSelectedMsg:
		// Route the selection to the write pane and move focus there
		m.writeModel, cmd = m.writeModel.Update(msg)
		m.state = common.WritePostView
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			if m.state == common.CreateUserView {
				return m, nil
			}
			oldState := m.state
			switch m.state {
			case common.WritePostView:
				m.state = common.BoardsView
			case common.BoardsView:
				m.state = common.ActivitiesView
			case common.ActivitiesView:
				m.state = common.WritePostView
			}
			if oldState != m.state {
				cmds = append(cmds, getViewInitCmd(m.state, &m))
			}
		case "shift+tab":
			if m.state == common.CreateUserView {
				return m, nil
			}
			oldState := m.state
			switch m.state {
			case common.WritePostView:
				m.state = common.ActivitiesView
			case common.BoardsView:
				m.state = common.WritePostView
			case common.ActivitiesView:
				m.state = common.BoardsView
			}
			if oldState != m.state {
				cmds = append(cmds, getViewInitCmd(m.state, &m))
			}
		case "enter":
			if m.state == common.CreateUserView && m.newUserModel.Step == 2 {
				m.state = common.BoardsView
				m.account.Username = m.newUserModel.TextInput.Value()
				m.headerModel = header.Model{Width: m.width, Acc: &m.account}
				// The panes captured the placeholder username, rebuild them
				m.writeModel = writepost.InitialModel(m.ctx, m.account, m.width)
				m.boardsModel = boards.InitialModel(m.ctx, m.account, m.width, m.height)
				return m, tea.Batch(
					updateUserModelCmd(m.ctx, &m.account,
						m.newUserModel.DisplayName.Value(),
						m.newUserModel.Bio.Value()),
					m.boardsModel.Init())
			}
		}
	}

	// Non-keyboard messages go to all sub-models so their loaded-data
	// messages always arrive; keyboard input goes only to the active view.
	if _, isKeyMsg := msg.(tea.KeyMsg); !isKeyMsg {
		m.headerModel, _ = m.headerModel.Update(msg)
		m.boardsModel, cmd = m.boardsModel.Update(msg)
		cmds = append(cmds, cmd)
		m.activitiesModel, cmd = m.activitiesModel.Update(msg)
		cmds = append(cmds, cmd)
		m.writeModel, cmd = m.writeModel.Update(msg)
		cmds = append(cmds, cmd)
	}

	if _, ok := msg.(tea.KeyMsg); ok {
		switch m.state {
		case common.CreateUserView:
			m.newUserModel, cmd = m.newUserModel.Update(msg)
		case common.WritePostView:
			m.writeModel, cmd = m.writeModel.Update(msg)
		case common.BoardsView:
			m.boardsModel, cmd = m.boardsModel.Update(msg)
		case common.ActivitiesView:
			m.activitiesModel, cmd = m.activitiesModel.Update(msg)
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m MainModel) View() string {

	var s string

	model := m.currentFocusedModel()

	availableHeight := m.height - 10 // header and help text
	leftPanelWidth := m.width / 3
	rightPanelWidth := m.width - leftPanelWidth - 6 // borders and margins

	writeStyleStr := lipgloss.NewStyle().
		MaxHeight(availableHeight).
		Height(availableHeight).
		Width(leftPanelWidth).
		MaxWidth(leftPanelWidth).
		Render(m.writeModel.View())

	boardsStyleStr := lipgloss.NewStyle().
		MaxHeight(availableHeight).
		Height(availableHeight).
		Width(rightPanelWidth).
		MaxWidth(rightPanelWidth).
		Margin(1).
		Render(m.boardsModel.View())

	activitiesStyleStr := lipgloss.NewStyle().
		MaxHeight(availableHeight).
		Height(availableHeight).
		Width(rightPanelWidth).
		MaxWidth(rightPanelWidth).
		Margin(1).
		Render(m.activitiesModel.View())

	if m.state == common.CreateUserView {
		s = createuser.Style.Width(m.width).Render(m.newUserModel.View())
		return s
	}

	navContainer := lipgloss.NewStyle().Render(m.headerModel.View())
	s += navContainer + "\n"

	switch m.state {
	case common.WritePostView:
		s += lipgloss.JoinHorizontal(lipgloss.Top,
			focusedModelStyle.Render(writeStyleStr),
			modelStyle.Render(boardsStyleStr))
	case common.BoardsView:
		s += lipgloss.JoinHorizontal(lipgloss.Top,
			modelStyle.Render(writeStyleStr),
			focusedModelStyle.Render(boardsStyleStr))
	case common.ActivitiesView:
		s += lipgloss.JoinHorizontal(lipgloss.Top,
			modelStyle.Render(writeStyleStr),
			focusedModelStyle.Render(activitiesStyleStr))
	}

	var viewCommands string
	switch m.state {
	case common.BoardsView:
		viewCommands = "↑/↓: select • enter: post here • n: new board"
	case common.ActivitiesView:
		viewCommands = "↑/↓: scroll"
	case common.WritePostView:
		viewCommands = "ctrl+a: switch field • ctrl+s: submit"
	default:
		viewCommands = " "
	}

	s += common.HelpStyle.Render(fmt.Sprintf(
		"focused > %s\t\tkeys > tab: next • shift+tab: prev • %s • ctrl-c: exit",
		model, viewCommands))
	return lipgloss.NewStyle().Render(s)
}

func (m MainModel) currentFocusedModel() string {
	switch m.state {
	case common.WritePostView:
		return "new post"
	case common.BoardsView:
		return "boards"
	case common.ActivitiesView:
		return "federation log"
	default:
		return "create user"
	}
}

// getViewInitCmd returns the init command for a view to reload its data
func getViewInitCmd(state common.SessionState, m *MainModel) tea.Cmd {
	switch state {
	case common.BoardsView:
		return m.boardsModel.Init()
	case common.ActivitiesView:
		return m.activitiesModel.Init()
	default:
		return nil
	}
}
