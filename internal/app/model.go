package app

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"monitor/internal/appserver"
	"monitor/internal/config"
	"monitor/internal/logging"
	"monitor/internal/store"
	"monitor/internal/thread"
	"monitor/internal/types"
)

const (
	tickInterval     = 100 * time.Millisecond
	requestTimeout   = 30 * time.Second
	minSidebarWidth  = 24
	maxSidebarWidth  = 36
	composerHeight   = 3
	minContentHeight = 6
)

type focusArea int

const (
	focusSidebar focusArea = iota
	focusComposer
)

type Model struct {
	engine     *thread.Engine
	supervisor *appserver.Supervisor
	cfg        config.Config
	logger     logging.Logger

	workspaceStore store.WorkspaceStore
	stateStore     store.AppStateStore
	appState       types.AppState

	workspaces []*types.Workspace
	wsIndex    int

	model string

	focus       focusArea
	viewport    viewport.Model
	composer    textarea.Model
	loader      spinner.Model
	showDebug   bool
	follow      bool
	status      string
	width       int
	height      int
	lastVersion uint64
	busy        int
}

// Deps carries everything the UI needs; main wires it together.
type Deps struct {
	Engine         *thread.Engine
	Supervisor     *appserver.Supervisor
	Config         config.Config
	Logger         logging.Logger
	WorkspaceStore store.WorkspaceStore
	StateStore     store.AppStateStore
}

func NewModel(deps Deps) *Model {
	vp := viewport.New(40, minContentHeight)
	vp.SetContent("No workspaces. Add one with: monitor workspace add <path>")

	composer := textarea.New()
	composer.Placeholder = "Message (/review to start a review)"
	composer.SetHeight(composerHeight - 1)
	composer.CharLimit = 0
	composer.ShowLineNumbers = false

	loader := spinner.New()
	loader.Spinner = spinner.MiniDot

	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Model{
		engine:         deps.Engine,
		supervisor:     deps.Supervisor,
		cfg:            deps.Config,
		logger:         logger,
		workspaceStore: deps.WorkspaceStore,
		stateStore:     deps.StateStore,
		model:          deps.Config.Model(),
		viewport:       vp,
		composer:       composer,
		loader:         loader,
		follow:         true,
	}
}

func Run(deps Deps) error {
	model := NewModel(deps)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(loadWorkspacesCmd(m.workspaceStore, m.stateStore), tickCmd(), m.loader.Tick)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tickMsg:
		m.refreshIfChanged()
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd

	case workspacesLoadedMsg:
		if msg.err != nil {
			m.status = "load workspaces: " + msg.err.Error()
			return m, nil
		}
		m.workspaces = msg.workspaces
		m.appState = msg.state
		m.wsIndex = 0
		for i, ws := range m.workspaces {
			if ws.ID == m.appState.ActiveWorkspaceID {
				m.wsIndex = i
			}
		}
		var cmds []tea.Cmd
		for _, ws := range m.workspaces {
			cmds = append(cmds, connectWorkspaceCmd(m.supervisor, ws))
		}
		return m, tea.Batch(cmds...)

	case workspaceConnectedMsg:
		if msg.err != nil {
			m.status = "connect " + msg.name + ": " + msg.err.Error()
			return m, nil
		}
		m.status = "connected " + msg.name
		cmds := []tea.Cmd{
			opCmd(func(ctx context.Context) error {
				return m.engine.LoadThreads(ctx, msg.workspace.ID, msg.workspace.Path, m.cfg.ThreadListPageSize())
			}, ""),
			opCmd(func(ctx context.Context) error {
				return m.engine.RefreshRateLimits(ctx, msg.workspace.ID)
			}, ""),
			opCmd(func(ctx context.Context) error {
				return m.engine.LoadModels(ctx, msg.workspace.ID)
			}, ""),
		}
		m.busy += len(cmds)
		return m, tea.Batch(cmds...)

	case opDoneMsg:
		if m.busy > 0 {
			m.busy--
		}
		if msg.err != nil {
			m.status = msg.err.Error()
		} else if msg.status != "" {
			m.status = msg.status
		}
		m.refreshIfChanged()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.focus == focusComposer {
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return m, tea.Quit
	}

	// A pending approval captures y/n regardless of focus.
	if approvals := m.engine.Approvals(); len(approvals) > 0 && m.focus == focusSidebar {
		switch key {
		case "y":
			return m, m.respondApprovalCmd(approvals[0], "approve")
		case "n":
			return m, m.respondApprovalCmd(approvals[0], "decline")
		}
	}

	if m.focus == focusComposer {
		switch key {
		case "esc":
			m.focus = focusSidebar
			m.composer.Blur()
			return m, nil
		case "ctrl+s", "ctrl+enter":
			return m, m.submitComposer()
		}
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		return m, cmd
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "i", "enter":
		m.focus = focusComposer
		return m, m.composer.Focus()
	case "tab":
		m.selectWorkspace(m.wsIndex + 1)
		return m, m.saveStateCmd()
	case "shift+tab":
		m.selectWorkspace(m.wsIndex - 1)
		return m, m.saveStateCmd()
	case "j", "down":
		m.moveThreadSelection(1)
		return m, m.resumeActiveCmd(false)
	case "k", "up":
		m.moveThreadSelection(-1)
		return m, m.resumeActiveCmd(false)
	case "r":
		return m, m.resumeActiveCmd(true)
	case "n":
		return m, m.startThreadCmd()
	case "a":
		return m, m.archiveActiveCmd()
	case "s":
		return m, m.interruptActiveCmd()
	case "m":
		m.cycleModel()
		return m, nil
	case "y":
		m.copyTranscript()
		return m, nil
	case "b":
		m.appState.SidebarCollapsed = !m.appState.SidebarCollapsed
		m.resize(m.width, m.height)
		return m, m.saveStateCmd()
	case "d":
		m.showDebug = !m.showDebug
		m.renderTranscript()
		return m, nil
	case "g":
		m.viewport.GotoTop()
		m.follow = false
		return m, nil
	case "G":
		m.viewport.GotoBottom()
		m.follow = true
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.follow = m.viewport.AtBottom()
	return m, cmd
}

func (m *Model) submitComposer() tea.Cmd {
	text := strings.TrimSpace(m.composer.Value())
	if text == "" {
		return nil
	}
	workspace, ok := m.activeWorkspace()
	if !ok {
		m.status = "no workspace selected"
		return nil
	}
	m.composer.Reset()
	threadID := m.engine.ActiveThreadID(workspace.ID)

	m.busy++
	if strings.HasPrefix(text, "/review") {
		if threadID == "" {
			m.busy--
			m.status = "no thread to review"
			return nil
		}
		return opCmd(func(ctx context.Context) error {
			return m.engine.StartReview(ctx, workspace.ID, threadID, text, "")
		}, "review started")
	}
	return opCmd(func(ctx context.Context) error {
		_, err := m.engine.SendMessage(ctx, workspace.ID, threadID, text)
		return err
	}, "")
}

func (m *Model) selectWorkspace(index int) {
	if len(m.workspaces) == 0 {
		return
	}
	m.wsIndex = ((index % len(m.workspaces)) + len(m.workspaces)) % len(m.workspaces)
	m.appState.ActiveWorkspaceID = m.workspaces[m.wsIndex].ID
	m.renderTranscript()
}

func (m *Model) moveThreadSelection(direction int) {
	workspace, ok := m.activeWorkspace()
	if !ok {
		return
	}
	threads := m.engine.Threads(workspace.ID)
	if len(threads) == 0 {
		return
	}
	active := m.engine.ActiveThreadID(workspace.ID)
	index := 0
	for i, info := range threads {
		if info.ID == active {
			index = i
		}
	}
	index += direction
	if index < 0 {
		index = 0
	}
	if index >= len(threads) {
		index = len(threads) - 1
	}
	m.engine.SetActiveThread(workspace.ID, threads[index].ID)
	m.follow = true
	m.renderTranscript()
}

func (m *Model) activeWorkspace() (*types.Workspace, bool) {
	if m.wsIndex < 0 || m.wsIndex >= len(m.workspaces) {
		return nil, false
	}
	return m.workspaces[m.wsIndex], true
}

func (m *Model) activeThreadID() string {
	workspace, ok := m.activeWorkspace()
	if !ok {
		return ""
	}
	return m.engine.ActiveThreadID(workspace.ID)
}

// refreshIfChanged re-renders only when the engine reports a new
// version, keeping the tick loop cheap.
func (m *Model) refreshIfChanged() {
	version := m.engine.Version()
	if version == m.lastVersion {
		return
	}
	m.lastVersion = version
	m.renderTranscript()
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	content := height - composerHeight - 2
	if content < minContentHeight {
		content = minContentHeight
	}
	m.viewport.Width = m.transcriptWidth()
	m.viewport.Height = content
	m.composer.SetWidth(width - 2)
	m.renderTranscript()
}

func (m *Model) transcriptWidth() int {
	width := m.width - m.sidebarWidth() - 3
	if width < 20 {
		width = 20
	}
	return width
}

func (m *Model) sidebarWidth() int {
	if m.appState.SidebarCollapsed {
		return 0
	}
	width := m.width / 4
	if width < minSidebarWidth {
		width = minSidebarWidth
	}
	if width > maxSidebarWidth {
		width = maxSidebarWidth
	}
	return width
}

// cycleModel switches turn/start to the next available model. The
// server's catalog wins when loaded; the configured list is the
// fallback.
func (m *Model) cycleModel() {
	models := m.modelChoices()
	if len(models) == 0 {
		return
	}
	index := 0
	for i, name := range models {
		if name == m.model {
			index = i
		}
	}
	m.model = models[(index+1)%len(models)]
	m.engine.SetTurnOptions(thread.TurnOptions{
		Model:      m.model,
		Effort:     m.cfg.Effort(),
		AccessMode: m.cfg.AccessMode(),
	})
	m.status = "model: " + m.model
}

func (m *Model) modelChoices() []string {
	if workspace, ok := m.activeWorkspace(); ok {
		if catalog := m.engine.Models(workspace.ID); len(catalog) > 0 {
			ids := make([]string, 0, len(catalog))
			for _, info := range catalog {
				ids = append(ids, info.ID)
			}
			return ids
		}
	}
	return m.cfg.Models()
}

func (m *Model) copyTranscript() {
	threadID := m.activeThreadID()
	if threadID == "" {
		return
	}
	text := plainTranscript(m.engine.Items(threadID))
	if _, err := copyTextToClipboard(text); err != nil {
		m.status = "copy failed: " + err.Error()
		return
	}
	m.status = "transcript copied"
}
