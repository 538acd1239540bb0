package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sandevgo/packrat/internal/core"
)

func TestBuildPrompt_Substitution(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tmpl := "Summarize {count} memories for {user}. Keep {unknown} intact."
	if err := os.WriteFile(filepath.Join(dir, "summary.md"), []byte(tmpl), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	b := NewBuilder(dir)
	got, err := b.BuildPrompt("summary", map[string]string{"count": "3", "user": "sam"})
	if err != nil {
		t.Fatalf("BuildPrompt failed: %v", err)
	}
	want := "Summarize 3 memories for sam. Keep {unknown} intact."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildPrompt_MissingTemplate(t *testing.T) {
	t.Parallel()
	b := NewBuilder(t.TempDir())
	if _, err := b.BuildPrompt("absent", nil); err == nil {
		t.Fatal("expected an error for a missing template")
	}
}

func TestSystemMessages(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	b := NewBuilder(dir)

	msgs := b.SystemMessages()
	if len(msgs) != 1 || msgs[0].Role != core.RoleSystem || msgs[0].Content == "" {
		t.Fatalf("expected the built-in default, got %+v", msgs)
	}

	if err := os.WriteFile(filepath.Join(dir, "system.md"), []byte("be brief"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "identity.md"), []byte("you are packrat"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	msgs = b.SystemMessages()
	if len(msgs) != 2 || msgs[0].Content != "be brief" || msgs[1].Content != "you are packrat" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}
