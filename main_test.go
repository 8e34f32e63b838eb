package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSourceFromArg_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("# Notes\n\nSome prose.\n"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	src, err := sourceFromArg(path)
	if err != nil {
		t.Fatalf("sourceFromArg failed: %v", err)
	}
	defer src.reader.Close()

	b, err := io.ReadAll(src.reader)
	if err != nil {
		t.Fatalf("Failed to read source: %v", err)
	}
	if !strings.Contains(string(b), "Some prose.") {
		t.Errorf("Unexpected content: %q", b)
	}

	abs, _ := filepath.Abs(path)
	if src.URL != abs {
		t.Errorf("Expected URL %q, got %q", abs, src.URL)
	}
}

func TestSourceFromArg_MissingFile(t *testing.T) {
	if _, err := sourceFromArg(filepath.Join(t.TempDir(), "nope.md")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestSourceFromArg_DirectoryFindsReadme(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "readme.md"), []byte("readme body"), 0o644); err != nil {
		t.Fatalf("Failed to write readme: %v", err)
	}

	src, err := sourceFromArg(dir)
	if err != nil {
		t.Fatalf("sourceFromArg failed: %v", err)
	}
	defer src.reader.Close()

	b, _ := io.ReadAll(src.reader)
	if string(b) != "readme body" {
		t.Errorf("Expected readme contents, got %q", b)
	}
}

func TestSourceFromArg_DirectoryWithoutReadme(t *testing.T) {
	if _, err := sourceFromArg(t.TempDir()); err == nil {
		t.Error("Expected error for directory without readme")
	}
}

func TestSourceFromArg_Stdin(t *testing.T) {
	src, err := sourceFromArg("-")
	if err != nil {
		t.Fatalf("sourceFromArg failed: %v", err)
	}
	if src.reader != os.Stdin {
		t.Error("Expected stdin reader for -")
	}
	if src.URL != "" {
		t.Errorf("Expected empty URL for stdin, got %q", src.URL)
	}
}

func TestSourceFromArg_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/doc" {
			io.WriteString(w, "remote document")
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	src, err := sourceFromArg(srv.URL + "/doc")
	if err != nil {
		t.Fatalf("sourceFromArg failed: %v", err)
	}
	defer src.reader.Close()

	b, _ := io.ReadAll(src.reader)
	if string(b) != "remote document" {
		t.Errorf("Expected remote document, got %q", b)
	}

	if _, err := sourceFromArg(srv.URL + "/missing"); err == nil {
		t.Error("Expected error for 404 response")
	}
}

func TestSourceFromArg_UnsupportedProtocol(t *testing.T) {
	_, err := sourceFromArg("ftp://example.com/file.md")
	if err == nil || !strings.Contains(err.Error(), "not a supported protocol") {
		t.Errorf("Expected protocol error, got %v", err)
	}
}

func TestRepoPattern(t *testing.T) {
	tests := []struct {
		arg   string
		match bool
		host  string
		repo  string
	}{
		{"github.com/charmbracelet/glow", true, "github", "glow"},
		{"https://github.com/charmbracelet/glow", true, "github", "glow"},
		{"gitlab.com/some-group/project/", true, "gitlab", "project"},
		{"github.com/owner/repo.git", true, "github", "repo"},
		{"example.com/owner/repo", false, "", ""},
		{"github.com/just-owner", false, "", ""},
		{"https://github.com/owner/repo/blob/main/README.md", false, "", ""},
	}

	for _, tt := range tests {
		m := repoPattern.FindStringSubmatch(tt.arg)
		if tt.match != (m != nil) {
			t.Errorf("%q: match = %v, want %v", tt.arg, m != nil, tt.match)
			continue
		}
		if m == nil {
			continue
		}
		if m[1] != tt.host || m[3] != tt.repo {
			t.Errorf("%q: got host %q repo %q, want %q %q", tt.arg, m[1], m[3], tt.host, tt.repo)
		}
	}
}

func TestIsURL(t *testing.T) {
	if !isURL("https://example.com/doc.md") {
		t.Error("Expected https URL to be recognized")
	}
	if isURL("/home/user/doc.md") {
		t.Error("Expected local path to be rejected")
	}
}

func TestPrintChunks(t *testing.T) {
	var buf bytes.Buffer
	if err := printChunks(&buf, []string{"alpha.", "beta."}); err != nil {
		t.Fatalf("printChunks failed: %v", err)
	}

	want := "alpha.\n\nbeta.\n"
	if buf.String() != want {
		t.Errorf("Output mismatch: got %q, want %q", buf.String(), want)
	}
}
