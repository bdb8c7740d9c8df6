package thread

import (
	"context"
	"fmt"
	"sort"

	"monitor/internal/logging"
	"monitor/internal/types"
)

// Command operations. Each one mutates local state optimistically,
// then drives the backend; what survives a failed request differs per
// operation and is spelled out on each method.

// StartThread creates a fresh thread on the server and makes it the
// workspace's active selection.
func (e *Engine) StartThread(ctx context.Context, workspaceID string) (string, error) {
	threadID, err := e.backend.StartThread(ctx, workspaceID)
	if err != nil {
		return "", fmt.Errorf("start thread: %w", err)
	}
	e.dispatch(
		EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
		SetActiveThread{WorkspaceID: workspaceID, ThreadID: threadID},
	)
	e.mu.Lock()
	e.loaded[threadID] = true
	e.mu.Unlock()
	return threadID, nil
}

// SendMessage appends the user's text immediately, then starts a turn.
// The optimistic message is never retracted: if the request fails only
// the processing flag rolls back and the error propagates.
func (e *Engine) SendMessage(ctx context.Context, workspaceID, threadID, text string) (string, error) {
	if threadID == "" {
		started, err := e.StartThread(ctx, workspaceID)
		if err != nil {
			return "", err
		}
		threadID = started
	}

	actions := []Action{
		EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
		UpsertItem{ThreadID: threadID, Item: types.ConversationItem{
			ID:   e.nextLocalID("user"),
			Kind: types.ItemKindMessage,
			Role: types.RoleUser,
			Text: text,
		}},
		MarkProcessing{ThreadID: threadID, Processing: true},
	}
	if name := deriveThreadName(text); name != "" && e.hasPlaceholderName(threadID) {
		actions = append(actions, SetThreadName{ThreadID: threadID, Name: name})
	}
	e.dispatch(actions...)

	turnID, err := e.backend.SendUserMessage(ctx, workspaceID, threadID, text, e.turnOptions())
	if err != nil {
		e.dispatch(MarkProcessing{ThreadID: threadID, Processing: false})
		return threadID, fmt.Errorf("send message: %w", err)
	}
	if turnID != "" {
		e.dispatch(SetActiveTurn{ThreadID: threadID, TurnID: turnID})
	}
	return threadID, nil
}

// StartReview parses the instruction, flags the thread as reviewing and
// processing, inserts a synthetic review banner, then asks the server
// to start the review. delivery picks how the server returns the
// findings; empty defers to the server default. Both flags roll back on
// failure; the banner stays so the transcript shows what was attempted.
func (e *Engine) StartReview(ctx context.Context, workspaceID, threadID, instruction, delivery string) error {
	target, label := parseReviewCommand(instruction)
	e.dispatch(
		EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
		MarkReviewing{ThreadID: threadID, Reviewing: true},
		MarkProcessing{ThreadID: threadID, Processing: true},
		UpsertItem{ThreadID: threadID, Item: types.ConversationItem{
			ID:          e.nextLocalID("review"),
			Kind:        types.ItemKindReview,
			ReviewState: types.ReviewStarted,
			Text:        label,
		}},
	)

	if err := e.backend.StartReview(ctx, workspaceID, threadID, target, delivery); err != nil {
		e.dispatch(
			MarkReviewing{ThreadID: threadID, Reviewing: false},
			MarkProcessing{ThreadID: threadID, Processing: false},
		)
		return fmt.Errorf("start review: %w", err)
	}
	return nil
}

// Interrupt stops the thread's active turn. A thread with no active
// turn is a no-op. The local stop is authoritative once requested:
// state clears before the request and never rolls back.
func (e *Engine) Interrupt(ctx context.Context, workspaceID, threadID string) error {
	turnID := e.ActiveTurnID(threadID)
	if turnID == "" {
		return nil
	}
	e.dispatch(
		ClearActiveTurn{ThreadID: threadID},
		UpsertItem{ThreadID: threadID, Item: types.ConversationItem{
			ID:   e.nextLocalID("stop"),
			Kind: types.ItemKindMessage,
			Role: types.RoleAssistant,
			Text: "Session stopped.",
		}},
	)
	if err := e.backend.InterruptTurn(ctx, workspaceID, threadID, turnID); err != nil {
		e.logger.Warn("interrupt request failed",
			logging.F("thread", threadID),
			logging.F("error", err))
		return fmt.Errorf("interrupt: %w", err)
	}
	return nil
}

// Resume fetches the thread's full history and reconciles it with
// whatever streamed in locally. Each thread loads once per session
// unless force is set; concurrent callers past the memo are harmless
// because the merge is deterministic.
func (e *Engine) Resume(ctx context.Context, workspaceID, threadID string, force bool) error {
	e.mu.Lock()
	if e.loaded[threadID] && !force {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	resumed, err := e.backend.ResumeThread(ctx, workspaceID, threadID)
	if err != nil {
		return fmt.Errorf("resume thread: %w", err)
	}
	remote := itemsFromTurnHistory(resumed.Turns)

	e.mu.Lock()
	merged := mergeItems(remote, e.state.Items[threadID])
	e.dispatchLocked(
		EnsureThread{WorkspaceID: workspaceID, ThreadID: threadID},
		ReplaceItems{ThreadID: threadID, Items: merged},
	)
	e.loaded[threadID] = true
	e.mu.Unlock()
	return nil
}

// LoadThreads lists the workspace's threads, paginating until target
// matches for the workspace path accumulate or the server runs out of
// pages, and registers each match with a preview-derived name.
func (e *Engine) LoadThreads(ctx context.Context, workspaceID, workspacePath string, target int) error {
	if target <= 0 {
		target = 20
	}
	seen := map[string]bool{}
	var matches []types.ThreadSummary
	cursor := ""
	for len(matches) < target {
		page, err := e.backend.ListThreads(ctx, workspaceID, cursor, target)
		if err != nil {
			return fmt.Errorf("list threads: %w", err)
		}
		for _, summary := range page.Data {
			if seen[summary.ID] {
				continue
			}
			seen[summary.ID] = true
			if summary.Cwd != "" && summary.Cwd != workspacePath {
				continue
			}
			matches = append(matches, summary)
		}
		if page.NextCursor == "" || len(page.Data) == 0 {
			break
		}
		cursor = page.NextCursor
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt > matches[j].CreatedAt
	})
	if len(matches) > target {
		matches = matches[:target]
	}

	actions := make([]Action, 0, 2*len(matches))
	for _, summary := range matches {
		actions = append(actions, EnsureThread{WorkspaceID: workspaceID, ThreadID: summary.ID})
		if name := deriveThreadName(summary.Preview); name != "" {
			actions = append(actions, SetThreadName{ThreadID: summary.ID, Name: name})
		}
	}
	e.dispatch(actions...)
	return nil
}

// Archive removes the thread on the server first; local state only
// drops it once the server has.
func (e *Engine) Archive(ctx context.Context, workspaceID, threadID string) error {
	if err := e.backend.ArchiveThread(ctx, workspaceID, threadID); err != nil {
		return fmt.Errorf("archive thread: %w", err)
	}
	e.mu.Lock()
	delete(e.loaded, threadID)
	e.dispatchLocked(RemoveThread{WorkspaceID: workspaceID, ThreadID: threadID})
	e.mu.Unlock()
	return nil
}

// RespondToApproval answers a pending server approval. The request
// leaves the queue optimistically; a failed response is logged and
// reported but the prompt does not reappear, the server retries on its
// own when it still needs an answer.
func (e *Engine) RespondToApproval(ctx context.Context, workspaceID string, requestID int, decision string) error {
	e.dispatch(RemoveApproval{WorkspaceID: workspaceID, RequestID: requestID})
	if err := e.backend.RespondToApproval(ctx, workspaceID, requestID, decision); err != nil {
		e.logger.Warn("approval response failed",
			logging.F("workspace", workspaceID),
			logging.F("request", requestID),
			logging.F("error", err))
		return fmt.Errorf("respond to approval: %w", err)
	}
	return nil
}

// LoadModels fetches the workspace's model catalog for the picker. An
// empty catalog leaves any previous one in place.
func (e *Engine) LoadModels(ctx context.Context, workspaceID string) error {
	models, err := e.backend.ListModels(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	e.dispatch(SetModels{WorkspaceID: workspaceID, Models: models})
	return nil
}

// RefreshRateLimits pulls the account's current limit windows.
func (e *Engine) RefreshRateLimits(ctx context.Context, workspaceID string) error {
	raw, err := e.backend.ReadRateLimits(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("read rate limits: %w", err)
	}
	e.RateLimitsUpdated(workspaceID, raw)
	return nil
}

func (e *Engine) hasPlaceholderName(threadID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	name := e.state.Names[threadID]
	return name == "" || name == placeholderThreadName
}
