package app

import (
	"path/filepath"
	"strings"
)

// Source selects what the viewer plays: a collection file or a built-in demo.
type Source struct {
	Path string
	Demo string
}

func (s Source) IsDemo() bool { return strings.TrimSpace(s.Path) == "" }

func (s Source) String() string {
	if s.IsDemo() {
		return "demo:" + s.Demo
	}
	return s.Path
}

// baseDir resolves relative media sources of a collection file.
func (s Source) baseDir() string {
	if s.IsDemo() {
		return ""
	}
	return filepath.Dir(s.Path)
}
