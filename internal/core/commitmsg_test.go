package core

import (
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestComposeCommitMessage_TopExtensions(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{
			name:  "counts and ranks extensions",
			lines: []string{" M a.js", " M b.js", "?? c.py"},
			want:  "Automatic update: 3 files changed (2 js, 1 py)",
		},
		{
			name:  "caps at three extensions",
			lines: []string{" M a.go", " M b.go", " M c.md", " M d.md", " M e.txt", "?? f.yaml"},
			want:  "Automatic update: 6 files changed (2 go, 2 md, 1 txt)",
		},
		{
			name:  "ties break by encounter order",
			lines: []string{" M one.py", " M two.js"},
			want:  "Automatic update: 2 files changed (1 py, 1 js)",
		},
		{
			name:  "file without extension uses whole name",
			lines: []string{" M Makefile", "?? Dockerfile"},
			want:  "Automatic update: 2 files changed (1 Makefile, 1 Dockerfile)",
		},
		{
			name:  "rename takes the destination path",
			lines: []string{"R  old.txt -> new.md"},
			want:  "Automatic update: 1 files changed (1 md)",
		},
		{
			name:  "trailing dot keeps whole name",
			lines: []string{" M weird."},
			want:  "Automatic update: 1 files changed (1 weird.)",
		},
		{
			name:  "last dot segment wins",
			lines: []string{" M archive.tar.gz"},
			want:  "Automatic update: 1 files changed (1 gz)",
		},
		{
			name:  "no parseable lines falls back",
			lines: []string{"", "   "},
			want:  "Automatic update: periodic sync",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComposeCommitMessage(tt.lines)
			if got != tt.want {
				t.Errorf("ComposeCommitMessage(%v) = %q, want %q", tt.lines, got, tt.want)
			}
		})
	}
}

func TestCountChangedFiles_MatchesCommitMessage(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  int
	}{
		{
			name:  "all lines parseable",
			lines: []string{" M a.go", "?? b.md", "R  old.txt -> new.txt"},
			want:  3,
		},
		{
			name:  "skips unparseable lines",
			lines: []string{" M a.go", "", "   ", "garbage", " M b.go"},
			want:  2,
		},
		{
			name:  "nothing parseable",
			lines: []string{"", "word"},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CountChangedFiles(tt.lines)
			if got != tt.want {
				t.Errorf("CountChangedFiles(%v) = %d, want %d", tt.lines, got, tt.want)
			}
			if got == 0 {
				return
			}
			// The message reports the same count.
			wantPrefix := fmt.Sprintf("Automatic update: %d files changed (", got)
			if msg := ComposeCommitMessage(tt.lines); !strings.HasPrefix(msg, wantPrefix) {
				t.Errorf("message %q disagrees with count %d", msg, got)
			}
		})
	}
}

func TestComposeCommitMessage_Deterministic(t *testing.T) {
	lines := []string{" M a.go", " M b.md", "?? c.go", " D d.txt"}
	first := ComposeCommitMessage(lines)
	for i := 0; i < 10; i++ {
		if got := ComposeCommitMessage(lines); got != first {
			t.Fatalf("message not deterministic: %q vs %q", got, first)
		}
	}
}

func TestComposeCommitMessage_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 40).Draw(t, "n")
		exts := rapid.SliceOfN(
			rapid.StringMatching(`[a-z]{1,4}`), n, n,
		).Draw(t, "exts")

		lines := make([]string, n)
		for i, ext := range exts {
			lines[i] = fmt.Sprintf(" M file%d.%s", i, ext)
		}

		msg := ComposeCommitMessage(lines)

		// The file count always reflects every parsed line.
		wantPrefix := fmt.Sprintf("Automatic update: %d files changed (", n)
		if !strings.HasPrefix(msg, wantPrefix) {
			t.Fatalf("message %q lacks prefix %q", msg, wantPrefix)
		}

		// At most three extensions are listed.
		inner := strings.TrimSuffix(strings.TrimPrefix(msg, wantPrefix), ")")
		parts := strings.Split(inner, ", ")
		if len(parts) > 3 {
			t.Fatalf("more than three extensions listed: %q", msg)
		}

		// Listed counts never exceed the file count.
		total := 0
		for _, p := range parts {
			var count int
			var ext string
			if _, err := fmt.Sscanf(p, "%d %s", &count, &ext); err != nil {
				t.Fatalf("unparseable part %q in %q", p, msg)
			}
			total += count
		}
		if total > n {
			t.Fatalf("listed counts %d exceed file count %d in %q", total, n, msg)
		}
	})
}
