package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"monitor/internal/appserver"
	"monitor/internal/store"
	"monitor/internal/types"
)

type tickMsg time.Time

type workspacesLoadedMsg struct {
	workspaces []*types.Workspace
	state      types.AppState
	err        error
}

type workspaceConnectedMsg struct {
	workspace *types.Workspace
	name      string
	err       error
}

type opDoneMsg struct {
	status string
	err    error
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func loadWorkspacesCmd(workspaces store.WorkspaceStore, states store.AppStateStore) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		list, err := workspaces.List(ctx)
		if err != nil {
			return workspacesLoadedMsg{err: err}
		}
		state, err := states.Load(ctx)
		if err != nil {
			return workspacesLoadedMsg{err: err}
		}
		return workspacesLoadedMsg{workspaces: list, state: *state}
	}
}

func connectWorkspaceCmd(supervisor *appserver.Supervisor, workspace *types.Workspace) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := supervisor.Connect(ctx, *workspace)
		return workspaceConnectedMsg{workspace: workspace, name: workspace.Name, err: err}
	}
}

// opCmd runs one engine operation off the update loop and reports the
// outcome as a status line entry.
func opCmd(op func(ctx context.Context) error, success string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := op(ctx); err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{status: success}
	}
}

func (m *Model) resumeActiveCmd(force bool) tea.Cmd {
	workspace, ok := m.activeWorkspace()
	if !ok {
		return nil
	}
	threadID := m.engine.ActiveThreadID(workspace.ID)
	if threadID == "" {
		return nil
	}
	m.busy++
	return opCmd(func(ctx context.Context) error {
		return m.engine.Resume(ctx, workspace.ID, threadID, force)
	}, "")
}

func (m *Model) startThreadCmd() tea.Cmd {
	workspace, ok := m.activeWorkspace()
	if !ok {
		return nil
	}
	m.busy++
	return opCmd(func(ctx context.Context) error {
		_, err := m.engine.StartThread(ctx, workspace.ID)
		return err
	}, "new thread")
}

func (m *Model) archiveActiveCmd() tea.Cmd {
	workspace, ok := m.activeWorkspace()
	if !ok {
		return nil
	}
	threadID := m.engine.ActiveThreadID(workspace.ID)
	if threadID == "" {
		return nil
	}
	m.busy++
	return opCmd(func(ctx context.Context) error {
		return m.engine.Archive(ctx, workspace.ID, threadID)
	}, "thread archived")
}

func (m *Model) interruptActiveCmd() tea.Cmd {
	workspace, ok := m.activeWorkspace()
	if !ok {
		return nil
	}
	threadID := m.engine.ActiveThreadID(workspace.ID)
	if threadID == "" {
		return nil
	}
	m.busy++
	return opCmd(func(ctx context.Context) error {
		return m.engine.Interrupt(ctx, workspace.ID, threadID)
	}, "stopped")
}

func (m *Model) respondApprovalCmd(approval types.ApprovalRequest, decision string) tea.Cmd {
	m.busy++
	return opCmd(func(ctx context.Context) error {
		return m.engine.RespondToApproval(ctx, approval.WorkspaceID, approval.RequestID, decision)
	}, decision+"d")
}

func (m *Model) saveStateCmd() tea.Cmd {
	state := m.appState
	states := m.stateStore
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := states.Save(ctx, &state); err != nil {
			return opDoneMsg{err: err}
		}
		return nil
	}
}
