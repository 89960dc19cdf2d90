package repository

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestMemory_Semantics(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	ws := "demo"

	for _, p := range []string{"dir/a.txt", "dir/sub/b.txt", "dirx.txt", "keep/c.txt"} {
		if err := r.InsertFile(ctx, ws, p, []byte(p)); err != nil {
			t.Fatalf("InsertFile: %v", err)
		}
	}
	if err := r.UpdateFile(ctx, ws, "keep/c.txt", []byte("updated")); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	if err := r.UpdateFile(ctx, ws, "nope", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateFile missing err = %v", err)
	}

	n, _ := r.RenamePrefix(ctx, ws, "dir", "lib")
	if n != 2 {
		t.Errorf("RenamePrefix moved %d, want 2", n)
	}
	if err := r.RenameFile(ctx, ws, "dirx.txt", "renamed.txt"); err != nil {
		t.Fatalf("RenameFile: %v", err)
	}

	n, _ = r.DeleteByPrefix(ctx, ws, "lib")
	if n != 2 {
		t.Errorf("DeleteByPrefix removed %d, want 2", n)
	}

	files, _ := r.PullFiles(ctx, ws)
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path+"="+string(f.Content))
	}
	if got := strings.Join(paths, ","); got != "keep/c.txt=updated,renamed.txt=dirx.txt" {
		t.Errorf("files = %s", got)
	}
}

func TestMemory_PullReturnsCopies(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	_ = r.InsertFile(ctx, "demo", "a", []byte("abc"))
	files, _ := r.PullFiles(ctx, "demo")
	files[0].Content[0] = 'X'
	again, _ := r.PullFiles(ctx, "demo")
	if string(again[0].Content) != "abc" {
		t.Errorf("stored content mutated through pulled copy: %q", again[0].Content)
	}
}

func TestMemory_ConcurrentUpdatesDoNotInterleave(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	_ = r.InsertFile(ctx, "demo", "doc.txt", []byte("seed"))

	c1 := bytes.Repeat([]byte("A"), 64*1024)
	c2 := bytes.Repeat([]byte("B"), 64*1024)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = r.UpdateFile(ctx, "demo", "doc.txt", c1) }()
		go func() { defer wg.Done(); _ = r.UpdateFile(ctx, "demo", "doc.txt", c2) }()
	}
	wg.Wait()

	files, _ := r.PullFiles(ctx, "demo")
	if len(files) != 1 {
		t.Fatalf("files = %d, want 1", len(files))
	}
	if got := files[0].Content; !bytes.Equal(got, c1) && !bytes.Equal(got, c2) {
		t.Errorf("stored content is neither writer's full content (len %d)", len(got))
	}
}
