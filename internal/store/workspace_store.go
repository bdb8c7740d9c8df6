package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"monitor/internal/types"
)

var ErrWorkspaceNotFound = errors.New("workspace not found")

const workspaceSchemaVersion = 1

type WorkspaceStore interface {
	List(ctx context.Context) ([]*types.Workspace, error)
	Get(ctx context.Context, id string) (*types.Workspace, bool, error)
	Add(ctx context.Context, workspace *types.Workspace) (*types.Workspace, error)
	Update(ctx context.Context, workspace *types.Workspace) (*types.Workspace, error)
	Delete(ctx context.Context, id string) error
}

type FileWorkspaceStore struct {
	path string
	mu   sync.Mutex
}

type workspaceFile struct {
	Version    int                `json:"version"`
	Workspaces []*types.Workspace `json:"workspaces"`
}

func NewFileWorkspaceStore(path string) *FileWorkspaceStore {
	return &FileWorkspaceStore{path: path}
}

func (s *FileWorkspaceStore) List(ctx context.Context) ([]*types.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		if errors.Is(err, ErrWorkspaceNotFound) {
			return []*types.Workspace{}, nil
		}
		return nil, err
	}
	out := make([]*types.Workspace, 0, len(file.Workspaces))
	for _, ws := range file.Workspaces {
		copy := *ws
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *FileWorkspaceStore) Get(ctx context.Context, id string) (*types.Workspace, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		if errors.Is(err, ErrWorkspaceNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	for _, ws := range file.Workspaces {
		if ws.ID == id {
			copy := *ws
			return &copy, true, nil
		}
	}
	return nil, false, nil
}

func (s *FileWorkspaceStore) Add(ctx context.Context, workspace *types.Workspace) (*types.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil && !errors.Is(err, ErrWorkspaceNotFound) {
		return nil, err
	}
	if file == nil {
		file = &workspaceFile{Version: workspaceSchemaVersion}
	}

	ws, err := normalizeWorkspace(workspace)
	if err != nil {
		return nil, err
	}
	for _, existing := range file.Workspaces {
		if existing.Path == ws.Path {
			return nil, errors.New("workspace path already registered")
		}
	}
	if ws.ID == "" {
		ws.ID = newWorkspaceID()
	}
	now := time.Now().UTC()
	ws.CreatedAt = now
	ws.UpdatedAt = now
	file.Workspaces = append(file.Workspaces, ws)

	if err := s.save(file); err != nil {
		return nil, err
	}
	copy := *ws
	return &copy, nil
}

func (s *FileWorkspaceStore) Update(ctx context.Context, workspace *types.Workspace) (*types.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if workspace == nil || workspace.ID == "" {
		return nil, errors.New("workspace id is required")
	}
	file, err := s.load()
	if err != nil {
		return nil, err
	}
	for i, existing := range file.Workspaces {
		if existing.ID != workspace.ID {
			continue
		}
		ws, err := normalizeWorkspace(workspace)
		if err != nil {
			return nil, err
		}
		ws.ID = existing.ID
		ws.CreatedAt = existing.CreatedAt
		ws.UpdatedAt = time.Now().UTC()
		file.Workspaces[i] = ws
		if err := s.save(file); err != nil {
			return nil, err
		}
		copy := *ws
		return &copy, nil
	}
	return nil, ErrWorkspaceNotFound
}

func (s *FileWorkspaceStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	kept := file.Workspaces[:0]
	found := false
	for _, ws := range file.Workspaces {
		if ws.ID == id {
			found = true
			continue
		}
		kept = append(kept, ws)
	}
	if !found {
		return ErrWorkspaceNotFound
	}
	file.Workspaces = kept
	return s.save(file)
}

func (s *FileWorkspaceStore) load() (*workspaceFile, error) {
	file := &workspaceFile{}
	if err := readJSON(s.path, file); err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, errEmptyFile) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, err
	}
	return file, nil
}

func (s *FileWorkspaceStore) save(file *workspaceFile) error {
	file.Version = workspaceSchemaVersion
	return writeJSONAtomic(s.path, file)
}

func normalizeWorkspace(workspace *types.Workspace) (*types.Workspace, error) {
	if workspace == nil {
		return nil, errors.New("workspace is required")
	}
	path := strings.TrimSpace(workspace.Path)
	if path == "" {
		return nil, errors.New("workspace path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	ws := *workspace
	ws.Path = abs
	ws.CodexBin = strings.TrimSpace(ws.CodexBin)
	if strings.TrimSpace(ws.Name) == "" {
		ws.Name = filepath.Base(abs)
	}
	return &ws, nil
}

func newWorkspaceID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return hex.EncodeToString([]byte(time.Now().UTC().Format("150405.000")))
	}
	return hex.EncodeToString(buf[:])
}
