package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/watcher"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/domain"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/layout"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/registry"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/repository"
)

// storedPaths polls the repository until cond holds or the deadline passes and returns the last snapshot.
func storedPaths(t *testing.T, repo repository.Repository, cond func(map[string]string) bool) map[string]string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		files, err := repo.PullFiles(context.Background(), "ws")
		if err != nil {
			t.Fatal(err)
		}
		got := make(map[string]string, len(files))
		for _, f := range files {
			got[f.Path] = string(f.Content)
		}
		if cond(got) || time.Now().After(deadline) {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRun_DirectoryRenameKeepsFiles(t *testing.T) {
	l := layout.New(t.TempDir())
	folder, err := l.Folder("id1", "ws")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(folder, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "src", "a.rsl"), []byte("package a"), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := registry.New()
	reg.Register(domain.Identity{Name: "ws", Writable: true})
	repo := repository.NewMemoryRepository()
	if err := repo.InsertFile(context.Background(), "ws", "src/a.rsl", []byte("package a")); err != nil {
		t.Fatal(err)
	}

	w, err := watcher.New(l.TmpDir(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("watcher.New: %v", err)
	}
	m := New(l, reg, repo, afero.NewOsFs(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
	}()
	go func() {
		m.Run(ctx, w.Batches())
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	if err := os.Rename(filepath.Join(folder, "src"), filepath.Join(folder, "src2")); err != nil {
		t.Fatal(err)
	}
	storedPaths(t, repo, func(got map[string]string) bool { return got["src2/a.rsl"] != "" })

	// Give any trailing reports of the move time to be mirrored.
	time.Sleep(200 * time.Millisecond)
	got := storedPaths(t, repo, func(map[string]string) bool { return true })
	if len(got) != 1 || got["src2/a.rsl"] != "package a" {
		t.Errorf("stored after rename = %v, want only src2/a.rsl", got)
	}
}
