package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/domain"
)

// MemoryRepository is an in-process Repository with the same semantics as PostgresRepository.
// The server uses it when no DATABASE_URL is configured; nothing survives a restart.
type MemoryRepository struct {
	mu      sync.Mutex
	files   map[string]map[string][]byte
	remotes map[string]string
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		files:   make(map[string]map[string][]byte),
		remotes: make(map[string]string),
	}
}

func (r *MemoryRepository) PullFiles(ctx context.Context, workspace string) ([]domain.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.File, 0, len(r.files[workspace]))
	for p, c := range r.files[workspace] {
		out = append(out, domain.File{Path: p, Content: append([]byte(nil), c...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (r *MemoryRepository) GitRemote(ctx context.Context, workspace string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remotes[workspace], nil
}

func (r *MemoryRepository) AssignGitRemote(ctx context.Context, workspace, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remotes[workspace] = url
	return nil
}

func (r *MemoryRepository) InsertFile(ctx context.Context, workspace, path string, content []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.files[workspace]
	if !ok {
		ws = make(map[string][]byte)
		r.files[workspace] = ws
	}
	ws[path] = append([]byte{}, content...)
	return nil
}

func (r *MemoryRepository) UpdateFile(ctx context.Context, workspace, path string, content []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws := r.files[workspace]
	if _, ok := ws[path]; !ok {
		return ErrNotFound
	}
	ws[path] = append([]byte{}, content...)
	return nil
}

func (r *MemoryRepository) DeleteByPrefix(ctx context.Context, workspace, prefix string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for p := range r.files[workspace] {
		if strings.HasPrefix(p, prefix) {
			delete(r.files[workspace], p)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) RenameFile(ctx context.Context, workspace, oldPath, newPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws := r.files[workspace]
	c, ok := ws[oldPath]
	if !ok {
		return ErrNotFound
	}
	if oldPath == newPath {
		return nil
	}
	delete(ws, oldPath)
	ws[newPath] = c
	return nil
}

func (r *MemoryRepository) RenamePrefix(ctx context.Context, workspace, oldDir, newDir string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws := r.files[workspace]
	moved := make(map[string][]byte)
	for p, c := range ws {
		if p == oldDir || strings.HasPrefix(p, oldDir+"/") {
			moved[newDir+p[len(oldDir):]] = c
			delete(ws, p)
		}
	}
	for p, c := range moved {
		ws[p] = c
	}
	return int64(len(moved)), nil
}

var _ Repository = (*MemoryRepository)(nil)
