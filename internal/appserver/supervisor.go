package appserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"monitor/internal/logging"
	"monitor/internal/thread"
	"monitor/internal/types"
)

// Handler receives everything the server pushes. The thread engine
// satisfies it.
type Handler interface {
	WorkspaceConnected(workspaceID string)
	WorkspaceDisconnected(workspaceID string, err error)
	HandleNotification(workspaceID, method string, params json.RawMessage)
	ApprovalRequested(workspaceID string, requestID int, method string, params json.RawMessage)
}

// Supervisor runs one app-server session per connected workspace and
// maps the thread engine's backend calls onto the right session.
type Supervisor struct {
	handler    Handler
	logger     logging.Logger
	defaultBin string

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	workspace types.Workspace
	client    *Client
}

func NewSupervisor(handler Handler, defaultBin string, logger logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Supervisor{
		handler:    handler,
		logger:     logger,
		defaultBin: defaultBin,
		sessions:   map[string]*session{},
	}
}

// Connect starts (or reuses) the workspace's app-server session.
func (s *Supervisor) Connect(ctx context.Context, workspace types.Workspace) error {
	s.mu.Lock()
	if _, ok := s.sessions[workspace.ID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	bin := workspace.CodexBin
	if bin == "" {
		bin = s.defaultBin
	}
	client, err := Start(ctx, bin, workspace.Path, s.logger)
	if err != nil {
		return fmt.Errorf("connect workspace %s: %w", workspace.Name, err)
	}

	s.mu.Lock()
	if _, ok := s.sessions[workspace.ID]; ok {
		s.mu.Unlock()
		client.Close()
		return nil
	}
	s.sessions[workspace.ID] = &session{workspace: workspace, client: client}
	s.mu.Unlock()

	go s.pump(workspace.ID, client)
	s.handler.WorkspaceConnected(workspace.ID)
	return nil
}

// pump forwards the session's pushes to the handler until its read
// loop dies, then tears the session down.
func (s *Supervisor) pump(workspaceID string, client *Client) {
	for {
		select {
		case msg, ok := <-client.Notifications():
			if !ok {
				s.dropSession(workspaceID)
				s.handler.WorkspaceDisconnected(workspaceID, client.Err())
				return
			}
			s.handler.HandleNotification(workspaceID, msg.Method, msg.Params)
		case msg := <-client.Requests():
			if msg.ID == nil {
				continue
			}
			s.handler.ApprovalRequested(workspaceID, *msg.ID, msg.Method, msg.Params)
		}
	}
}

func (s *Supervisor) dropSession(workspaceID string) {
	s.mu.Lock()
	sess, ok := s.sessions[workspaceID]
	if ok {
		delete(s.sessions, workspaceID)
	}
	s.mu.Unlock()
	if ok {
		sess.client.Close()
	}
}

func (s *Supervisor) Disconnect(workspaceID string) {
	s.dropSession(workspaceID)
}

func (s *Supervisor) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = map[string]*session{}
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.client.Close()
	}
}

var errNotConnected = errors.New("workspace not connected")

func (s *Supervisor) clientFor(workspaceID string) (*Client, types.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[workspaceID]
	if !ok {
		return nil, types.Workspace{}, errNotConnected
	}
	return sess.client, sess.workspace, nil
}

func (s *Supervisor) StartThread(ctx context.Context, workspaceID string) (string, error) {
	client, workspace, err := s.clientFor(workspaceID)
	if err != nil {
		return "", err
	}
	params := map[string]any{}
	if workspace.Path != "" {
		params["cwd"] = workspace.Path
	}
	var result struct {
		Thread struct {
			ID string `json:"id"`
		} `json:"thread"`
	}
	if err := client.request(ctx, "thread/start", params, &result); err != nil {
		return "", err
	}
	if strings.TrimSpace(result.Thread.ID) == "" {
		return "", errors.New("thread id missing")
	}
	return strings.TrimSpace(result.Thread.ID), nil
}

// ResumeThread loads the thread into the server session, then reads its
// full turn history.
func (s *Supervisor) ResumeThread(ctx context.Context, workspaceID, threadID string) (*thread.ResumedThread, error) {
	client, _, err := s.clientFor(workspaceID)
	if err != nil {
		return nil, err
	}
	if err := client.request(ctx, "thread/resume", map[string]any{"threadId": threadID}, nil); err != nil {
		return nil, err
	}
	var result struct {
		Thread *struct {
			ID    string `json:"id"`
			Turns []struct {
				ID    string           `json:"id"`
				Items []map[string]any `json:"items,omitempty"`
			} `json:"turns,omitempty"`
		} `json:"thread"`
	}
	if err := client.request(ctx, "thread/read", map[string]any{
		"threadId":     threadID,
		"includeTurns": true,
	}, &result); err != nil {
		return nil, err
	}
	if result.Thread == nil {
		return nil, errors.New("thread not found")
	}
	resumed := &thread.ResumedThread{ID: result.Thread.ID}
	for _, turn := range result.Thread.Turns {
		items := make([]any, 0, len(turn.Items))
		for _, item := range turn.Items {
			items = append(items, item)
		}
		resumed.Turns = append(resumed.Turns, map[string]any{"items": items})
	}
	return resumed, nil
}

func (s *Supervisor) ListThreads(ctx context.Context, workspaceID, cursor string, pageSize int) (*thread.ThreadPage, error) {
	client, _, err := s.clientFor(workspaceID)
	if err != nil {
		return nil, err
	}
	params := map[string]any{}
	if cursor != "" {
		params["cursor"] = cursor
	}
	if pageSize > 0 {
		params["limit"] = pageSize
	}
	var result struct {
		Data []struct {
			ID        string `json:"id"`
			Preview   string `json:"preview"`
			CreatedAt int64  `json:"createdAt"`
			UpdatedAt int64  `json:"updatedAt"`
			Cwd       string `json:"cwd,omitempty"`
		} `json:"data"`
		NextCursor *string `json:"nextCursor"`
	}
	if err := client.request(ctx, "thread/list", params, &result); err != nil {
		return nil, err
	}
	page := &thread.ThreadPage{}
	for _, entry := range result.Data {
		page.Data = append(page.Data, types.ThreadSummary{
			ID:        entry.ID,
			Preview:   entry.Preview,
			CreatedAt: entry.CreatedAt,
			UpdatedAt: entry.UpdatedAt,
			Cwd:       entry.Cwd,
		})
	}
	if result.NextCursor != nil {
		page.NextCursor = *result.NextCursor
	}
	return page, nil
}

func (s *Supervisor) ArchiveThread(ctx context.Context, workspaceID, threadID string) error {
	client, _, err := s.clientFor(workspaceID)
	if err != nil {
		return err
	}
	return client.request(ctx, "thread/archive", map[string]any{"threadId": threadID}, nil)
}

func (s *Supervisor) SendUserMessage(ctx context.Context, workspaceID, threadID, text string, opts thread.TurnOptions) (string, error) {
	client, workspace, err := s.clientFor(workspaceID)
	if err != nil {
		return "", err
	}
	params := map[string]any{
		"threadId": threadID,
		"input":    []map[string]any{{"type": "text", "text": text}},
		"cwd":      workspace.Path,
	}
	if opts.Model != "" {
		params["model"] = opts.Model
	}
	if opts.Effort != "" {
		params["effort"] = opts.Effort
	}
	for key, value := range turnPolicy(opts.AccessMode, workspace.Path) {
		params[key] = value
	}
	var result struct {
		Turn struct {
			ID string `json:"id"`
		} `json:"turn"`
	}
	if err := client.request(ctx, "turn/start", params, &result); err != nil {
		return "", err
	}
	return result.Turn.ID, nil
}

// turnPolicy maps the configured access mode onto the server's sandbox
// and approval settings. The default grants workspace-scoped writes
// with approvals on request.
func turnPolicy(accessMode, workspacePath string) map[string]any {
	switch accessMode {
	case "full-access":
		return map[string]any{
			"sandboxPolicy":  map[string]any{"type": "dangerFullAccess"},
			"approvalPolicy": "never",
		}
	case "read-only":
		return map[string]any{
			"sandboxPolicy":  map[string]any{"type": "readOnly"},
			"approvalPolicy": "on-request",
		}
	default:
		return map[string]any{
			"sandboxPolicy": map[string]any{
				"type":          "workspaceWrite",
				"writableRoots": []string{workspacePath},
				"networkAccess": true,
			},
			"approvalPolicy": "on-request",
		}
	}
}

func (s *Supervisor) StartReview(ctx context.Context, workspaceID, threadID string, target thread.ReviewTarget, delivery string) error {
	client, _, err := s.clientFor(workspaceID)
	if err != nil {
		return err
	}
	params := map[string]any{
		"threadId": threadID,
		"target":   target.Params(),
	}
	if delivery != "" {
		params["delivery"] = delivery
	}
	return client.request(ctx, "review/start", params, nil)
}

// ListModels reads the models the server offers for turn/start.
func (s *Supervisor) ListModels(ctx context.Context, workspaceID string) ([]types.ModelInfo, error) {
	client, _, err := s.clientFor(workspaceID)
	if err != nil {
		return nil, err
	}
	var result struct {
		Models []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := client.request(ctx, "model/list", map[string]any{}, &result); err != nil {
		return nil, err
	}
	models := make([]types.ModelInfo, 0, len(result.Models))
	for _, entry := range result.Models {
		if entry.ID == "" {
			continue
		}
		models = append(models, types.ModelInfo{ID: entry.ID, Name: entry.Name})
	}
	return models, nil
}

func (s *Supervisor) InterruptTurn(ctx context.Context, workspaceID, threadID, turnID string) error {
	client, _, err := s.clientFor(workspaceID)
	if err != nil {
		return err
	}
	return client.request(ctx, "turn/interrupt", map[string]any{
		"threadId": threadID,
		"turnId":   turnID,
	}, nil)
}

// RespondToApproval answers a pending server request. Decisions are the
// server's own vocabulary ("approve", "decline", ...).
func (s *Supervisor) RespondToApproval(ctx context.Context, workspaceID string, requestID int, decision string) error {
	client, _, err := s.clientFor(workspaceID)
	if err != nil {
		return err
	}
	return client.Respond(requestID, map[string]any{"decision": decision})
}

func (s *Supervisor) ReadRateLimits(ctx context.Context, workspaceID string) (map[string]any, error) {
	client, _, err := s.clientFor(workspaceID)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := client.request(ctx, "account/rateLimits/read", map[string]any{}, &result); err != nil {
		return nil, err
	}
	return result, nil
}
