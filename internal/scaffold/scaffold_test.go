package scaffold

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func TestApply(t *testing.T) {
	fsys := afero.NewMemMapFs()
	templates := map[string]string{
		"/templates/rsl/model.rsl":          "Package Model",
		"/templates/rsl/views/overview.rsl": "View Overview",
		"/templates/asl/app.asl":            "Package App",
	}
	for p, c := range templates {
		_ = fsys.MkdirAll(filepath.Dir(p), 0o755)
		_ = afero.WriteFile(fsys, p, []byte(c), 0o644)
	}
	folder := "/srv/itoi/tmp/id/ws"
	_ = fsys.MkdirAll(folder, 0o755)
	_ = afero.WriteFile(fsys, folder+"/model.rsl", []byte("old"), 0o644)

	s := New(fsys, "/templates")
	n, err := s.Apply(RSL, folder)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n != 2 {
		t.Errorf("copied %d files, want 2", n)
	}
	for rel, want := range map[string]string{"model.rsl": "Package Model", "views/overview.rsl": "View Overview"} {
		b, err := afero.ReadFile(fsys, filepath.Join(folder, rel))
		if err != nil || string(b) != want {
			t.Errorf("%s = %q, %v; want %q", rel, b, err, want)
		}
	}
	if ok, _ := afero.Exists(fsys, folder+"/app.asl"); ok {
		t.Error("asl template leaked into rsl setup")
	}

	if _, err := s.Apply("python", folder); !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("unknown kind err = %v", err)
	}
}

func TestApply_MissingTemplateDir(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/nowhere")
	if _, err := s.Apply(ASL, "/srv/itoi/tmp/id/ws"); err == nil {
		t.Error("missing template directory should fail")
	}
}
