package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"monitor/internal/types"
)

func TestWorkspaceStoreCRUD(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "workspaces.json")
	store := NewFileWorkspaceStore(path)

	repoDir := filepath.Join(tmp, "repo")
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		t.Fatalf("mkdir repo: %v", err)
	}

	ws, err := store.Add(ctx, &types.Workspace{Path: repoDir, CodexBin: " codex "})
	if err != nil {
		t.Fatalf("add workspace: %v", err)
	}
	if ws.ID == "" {
		t.Fatalf("expected id")
	}
	if ws.Name != filepath.Base(repoDir) {
		t.Fatalf("expected name %q, got %q", filepath.Base(repoDir), ws.Name)
	}
	if ws.CodexBin != "codex" {
		t.Fatalf("expected trimmed codex bin, got %q", ws.CodexBin)
	}

	if _, err := store.Add(ctx, &types.Workspace{Path: repoDir}); err == nil {
		t.Fatalf("expected duplicate path to fail")
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 workspace, got %d", len(list))
	}

	ws.Name = "Custom"
	updated, err := store.Update(ctx, ws)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Custom" {
		t.Fatalf("expected updated name, got %q", updated.Name)
	}

	if err := store.Delete(ctx, ws.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err = store.List(ctx)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
	if err := store.Delete(ctx, ws.ID); err != ErrWorkspaceNotFound {
		t.Fatalf("expected ErrWorkspaceNotFound, got %v", err)
	}
}

func TestEmptyStoreFilesLoadAsFresh(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()

	statePath := filepath.Join(tmp, "state.json")
	if err := os.WriteFile(statePath, nil, 0o600); err != nil {
		t.Fatalf("write empty state file: %v", err)
	}
	state, err := NewFileAppStateStore(statePath).Load(ctx)
	if err != nil {
		t.Fatalf("load empty state file: %v", err)
	}
	if state.ActiveWorkspaceID != "" {
		t.Fatalf("expected zero state, got %#v", state)
	}

	wsPath := filepath.Join(tmp, "workspaces.json")
	if err := os.WriteFile(wsPath, nil, 0o600); err != nil {
		t.Fatalf("write empty workspace file: %v", err)
	}
	list, err := NewFileWorkspaceStore(wsPath).List(ctx)
	if err != nil {
		t.Fatalf("list from empty file: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no workspaces, got %d", len(list))
	}
}

func TestAppStateStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileAppStateStore(path)

	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if state.ActiveWorkspaceID != "" {
		t.Fatalf("expected zero state, got %#v", state)
	}

	state.ActiveWorkspaceID = "ws-1"
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ActiveWorkspaceID != "ws-1" {
		t.Fatalf("expected ws-1, got %q", loaded.ActiveWorkspaceID)
	}
}
