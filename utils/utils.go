// Package utils provides small helpers shared across the CLI and UI.
package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	homedir "github.com/mitchellh/go-homedir"
)

var yamlPattern = regexp.MustCompile(`(?m)^---\r?\n(\s*\r?\n)?`)

// RemoveFrontmatter removes the YAML front matter header from markdown
// content, if present.
func RemoveFrontmatter(content []byte) []byte {
	if boundaries := detectFrontmatter(content); boundaries[0] == 0 {
		return content[boundaries[1]:]
	}
	return content
}

func detectFrontmatter(c []byte) []int {
	if matches := yamlPattern.FindAllIndex(c, 2); len(matches) > 1 {
		return []int{matches[0][0], matches[1][1]}
	}
	return []int{-1, -1}
}

// ExpandPath expands the tilde and any environment variables in path.
func ExpandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		path = s
	}
	return os.ExpandEnv(path)
}

// IsMarkdownFile reports whether the path has a markdown extension.
func IsMarkdownFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains([]string{".md", ".mdown", ".mkdn", ".mkd", ".markdown"}, ext)
}

// WrapCodeBlock wraps the given content in a fenced code block so it can
// be rendered as source code.
func WrapCodeBlock(s, extension string) string {
	language := strings.TrimPrefix(extension, ".")
	return "```" + language + "\n" + s + "```"
}

// GlamourStyle returns the renderer style option. When rendering a pure
// code block the document margin is removed so the fence hugs the left
// edge.
func GlamourStyle(isCode bool) glamour.TermRendererOption {
	if !isCode {
		return glamour.WithAutoStyle()
	}

	var styleConfig ansi.StyleConfig
	if lipgloss.HasDarkBackground() {
		styleConfig = styles.DarkStyleConfig
	} else {
		styleConfig = styles.LightStyleConfig
	}
	var margin uint
	styleConfig.Document.Margin = &margin
	return glamour.WithStyles(styleConfig)
}
