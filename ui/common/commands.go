package common

type SessionState uint

const (
	WritePostView SessionState = iota
	BoardsView
	ActivitiesView
	CreateUserView
	UpdateBoardList
	UpdateActivityList
)

// BoardSelectedMsg tells the write-post pane which board a new post
// targets.
type BoardSelectedMsg struct {
	BoardName string
}
