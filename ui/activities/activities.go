package activities

import (
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/ui/common"
)

var (
	timeStyle = lipgloss.NewStyle().
			Align(lipgloss.Left).
			Foreground(lipgloss.Color(common.COLOR_PURPLE))

	typeStyle = lipgloss.NewStyle().
			Align(lipgloss.Left).
			Foreground(lipgloss.Color(common.COLOR_LIGHTBLUE)).
			Bold(true)

	actorStyle = lipgloss.NewStyle().
			Align(lipgloss.Left)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)
)

type Model struct {
	Activities []domain.Activity
	Offset     int
	ctx        *app.Context
	width      int
	height     int
}

func InitialModel(ctx *app.Context, width, height int) Model {
	return Model{
		Activities: []domain.Activity{},
		Offset:     0,
		ctx:        ctx,
		width:      width,
		height:     height,
	}
}

func (m Model) Init() tea.Cmd {
	return loadActivities(m.ctx)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case activitiesLoadedMsg:
		m.Activities = msg.activities
		m.Offset = 0
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k", "left":
			if m.Offset > 0 {
				m.Offset--
			}
		case "down", "j", "right":
			if len(m.Activities) > 0 && m.Offset < len(m.Activities)-1 {
				m.Offset++
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(
		fmt.Sprintf("federation log (%d activities)", len(m.Activities))))
	s.WriteString("\n\n")

	if len(m.Activities) == 0 {
		s.WriteString(emptyStyle.Render("No federation traffic yet.\nPost something or follow a remote board!"))
	} else {
		itemsPerPage := 10
		start := m.Offset
		end := start + itemsPerPage
		if end > len(m.Activities) {
			end = len(m.Activities)
		}

		for i := start; i < end; i++ {
			activity := m.Activities[i]

			direction := "in"
			if activity.Local {
				direction = "out"
			}
			timeStr := timeStyle.Render(formatTime(activity.CreatedAt))
			typeStr := typeStyle.Render(fmt.Sprintf("%s (%s)", activity.ActivityType, direction))
			actorStr := actorStyle.Render(truncate(activity.ActorURI, 80))

			entry := lipgloss.JoinVertical(lipgloss.Left, timeStr, typeStr, actorStr)
			s.WriteString(entry)
			s.WriteString("\n\n")
		}
	}

	return s.String()
}

// activitiesLoadedMsg is sent when the activity log is loaded
type activitiesLoadedMsg struct {
	activities []domain.Activity
}

func loadActivities(ctx *app.Context) tea.Cmd {
	return func() tea.Msg {
		err, activities := ctx.DB.ReadRecentActivities(50)
		if err != nil {
			log.Printf("Activities: failed to load activity log: %v", err)
			return activitiesLoadedMsg{activities: []domain.Activity{}}
		}
		if activities == nil {
			return activitiesLoadedMsg{activities: []domain.Activity{}}
		}
		return activitiesLoadedMsg{activities: *activities}
	}
}

func formatTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return "just now"
	} else if duration < time.Hour {
		mins := int(duration.Minutes())
		return fmt.Sprintf("%dm ago", mins)
	} else if duration < 24*time.Hour {
		hours := int(duration.Hours())
		return fmt.Sprintf("%dh ago", hours)
	} else {
		days := int(duration.Hours() / 24)
		return fmt.Sprintf("%dd ago", days)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
