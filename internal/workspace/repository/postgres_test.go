package repository

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/db"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/db/migrate"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/domain"
)

// openTestRepo connects to DATABASE_URL, applies migrations, and returns a repository plus a
// workspace name unique to the test. Skips when no database is available.
func openTestRepo(t *testing.T) (*PostgresRepository, string) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if err := migrate.Run(dsn, "up", 0); err != nil {
		t.Skipf("migrate up failed (expected in test environment): %v", err)
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, dsn, false)
	if err != nil {
		t.Skipf("Database connection failed (expected in test environment): %v", err)
	}
	ws := "test-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM workspace_files WHERE workspace_name = $1`, ws)
		_, _ = pool.Exec(ctx, `DELETE FROM workspace_git_remotes WHERE workspace_name = $1`, ws)
		pool.Close()
	})
	return NewPostgresRepository(pool), ws
}

func filesByPath(files []domain.File) map[string][]byte {
	out := make(map[string][]byte, len(files))
	for _, f := range files {
		out[f.Path] = f.Content
	}
	return out
}

func TestPostgres_InsertThenPull(t *testing.T) {
	repo, ws := openTestRepo(t)
	ctx := context.Background()

	if err := repo.InsertFile(ctx, ws, "src/model.rsl", []byte("package demo")); err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	if err := repo.InsertFile(ctx, ws, "empty.txt", nil); err != nil {
		t.Fatalf("InsertFile empty: %v", err)
	}
	files, err := repo.PullFiles(ctx, ws)
	if err != nil {
		t.Fatalf("PullFiles: %v", err)
	}
	got := filesByPath(files)
	if string(got["src/model.rsl"]) != "package demo" {
		t.Errorf("content = %q", got["src/model.rsl"])
	}
	if c, ok := got["empty.txt"]; !ok || len(c) != 0 {
		t.Errorf("empty.txt = %q, %v", c, ok)
	}
}

func TestPostgres_InsertExistingReplaces(t *testing.T) {
	repo, ws := openTestRepo(t)
	ctx := context.Background()
	_ = repo.InsertFile(ctx, ws, "a.txt", []byte("one"))
	if err := repo.InsertFile(ctx, ws, "a.txt", []byte("two")); err != nil {
		t.Fatalf("second InsertFile: %v", err)
	}
	files, _ := repo.PullFiles(ctx, ws)
	if len(files) != 1 || string(files[0].Content) != "two" {
		t.Errorf("files = %+v, want single row with latest content", files)
	}
}

func TestPostgres_UpdateFile(t *testing.T) {
	repo, ws := openTestRepo(t)
	ctx := context.Background()

	if err := repo.UpdateFile(ctx, ws, "missing.txt", []byte("x")); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateFile missing err = %v, want ErrNotFound", err)
	}
	_ = repo.InsertFile(ctx, ws, "a.txt", []byte("old"))
	if err := repo.UpdateFile(ctx, ws, "a.txt", []byte("new")); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	files, _ := repo.PullFiles(ctx, ws)
	if string(filesByPath(files)["a.txt"]) != "new" {
		t.Errorf("content after update = %q", filesByPath(files)["a.txt"])
	}
}

func TestPostgres_ConcurrentUpdatesDoNotInterleave(t *testing.T) {
	repo, ws := openTestRepo(t)
	ctx := context.Background()
	_ = repo.InsertFile(ctx, ws, "doc.txt", []byte("seed"))

	c1 := bytes.Repeat([]byte("A"), 64*1024)
	c2 := bytes.Repeat([]byte("B"), 64*1024)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = repo.UpdateFile(ctx, ws, "doc.txt", c1) }()
		go func() { defer wg.Done(); _ = repo.UpdateFile(ctx, ws, "doc.txt", c2) }()
	}
	wg.Wait()

	files, _ := repo.PullFiles(ctx, ws)
	got := filesByPath(files)["doc.txt"]
	if !bytes.Equal(got, c1) && !bytes.Equal(got, c2) {
		t.Errorf("stored content is neither writer's full content (len %d)", len(got))
	}
}

func TestPostgres_DeleteByPrefixCascades(t *testing.T) {
	repo, ws := openTestRepo(t)
	ctx := context.Background()
	for _, p := range []string{"dir/a.txt", "dir/sub/b.txt", "dir", "other/c.txt"} {
		_ = repo.InsertFile(ctx, ws, p, []byte(p))
	}
	n, err := repo.DeleteByPrefix(ctx, ws, "dir")
	if err != nil {
		t.Fatalf("DeleteByPrefix: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted %d rows, want 3", n)
	}
	files, _ := repo.PullFiles(ctx, ws)
	for _, f := range files {
		if strings.HasPrefix(f.Path, "dir") {
			t.Errorf("row %q survived prefix delete", f.Path)
		}
	}
	if len(files) != 1 {
		t.Errorf("remaining = %d, want 1", len(files))
	}
}

func TestPostgres_RenamePreservesContent(t *testing.T) {
	repo, ws := openTestRepo(t)
	ctx := context.Background()
	content := []byte{0, 1, 2, 255, 'x'}
	_ = repo.InsertFile(ctx, ws, "old.rsl", content)

	if err := repo.RenameFile(ctx, ws, "old.rsl", "new.rsl"); err != nil {
		t.Fatalf("RenameFile: %v", err)
	}
	got := filesByPath(mustPull(t, repo, ws))
	if _, ok := got["old.rsl"]; ok {
		t.Error("row remains at old path")
	}
	if !bytes.Equal(got["new.rsl"], content) {
		t.Errorf("content at new path = %v, want %v", got["new.rsl"], content)
	}
	if err := repo.RenameFile(ctx, ws, "old.rsl", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RenameFile missing err = %v, want ErrNotFound", err)
	}
}

func TestPostgres_RenameReplacesTarget(t *testing.T) {
	repo, ws := openTestRepo(t)
	ctx := context.Background()
	_ = repo.InsertFile(ctx, ws, ".model.rsl.swp", []byte("saved"))
	_ = repo.InsertFile(ctx, ws, "model.rsl", []byte("stale"))

	if err := repo.RenameFile(ctx, ws, ".model.rsl.swp", "model.rsl"); err != nil {
		t.Fatalf("RenameFile over existing path: %v", err)
	}
	got := filesByPath(mustPull(t, repo, ws))
	if len(got) != 1 || string(got["model.rsl"]) != "saved" {
		t.Errorf("files after rename = %v, want only model.rsl=saved", got)
	}
}

func TestPostgres_RenamePrefix(t *testing.T) {
	repo, ws := openTestRepo(t)
	ctx := context.Background()
	for _, p := range []string{"src/a.txt", "src/sub/b.txt", "srcx/keep.txt"} {
		_ = repo.InsertFile(ctx, ws, p, []byte(p))
	}
	n, err := repo.RenamePrefix(ctx, ws, "src", "lib")
	if err != nil {
		t.Fatalf("RenamePrefix: %v", err)
	}
	if n != 2 {
		t.Errorf("renamed %d rows, want 2", n)
	}
	got := filesByPath(mustPull(t, repo, ws))
	if string(got["lib/a.txt"]) != "src/a.txt" || string(got["lib/sub/b.txt"]) != "src/sub/b.txt" {
		t.Errorf("renamed rows = %v", got)
	}
	if _, ok := got["srcx/keep.txt"]; !ok {
		t.Error("sibling with shared name prefix should not move")
	}
}

func TestPostgres_GitRemote(t *testing.T) {
	repo, ws := openTestRepo(t)
	ctx := context.Background()

	url, err := repo.GitRemote(ctx, ws)
	if err != nil || url != "" {
		t.Fatalf("GitRemote unassigned = %q, %v; want empty, nil", url, err)
	}
	_ = repo.AssignGitRemote(ctx, ws, "https://github.com/a/one.git")
	if err := repo.AssignGitRemote(ctx, ws, "https://github.com/a/two.git"); err != nil {
		t.Fatalf("AssignGitRemote: %v", err)
	}
	url, err = repo.GitRemote(ctx, ws)
	if err != nil || url != "https://github.com/a/two.git" {
		t.Errorf("GitRemote = %q, %v", url, err)
	}
}

func mustPull(t *testing.T, repo *PostgresRepository, ws string) []domain.File {
	t.Helper()
	files, err := repo.PullFiles(context.Background(), ws)
	if err != nil {
		t.Fatalf("PullFiles: %v", err)
	}
	return files
}

var _ Repository = (*PostgresRepository)(nil)
