// Package migrations embeds the goose-annotated SQL migrations of the module.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed orgchart/*.sql
var files embed.FS

const (
	gooseUp   = "-- +goose Up"
	gooseDown = "-- +goose Down"
)

type Migration struct {
	Name string
	Up   string
	Down string
}

// All returns the embedded migrations sorted by file name.
func All() ([]Migration, error) {
	paths, err := fs.Glob(files, "orgchart/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	out := make([]Migration, 0, len(paths))
	for _, p := range paths {
		raw, err := files.ReadFile(p)
		if err != nil {
			return nil, err
		}
		up, down := split(string(raw))
		out = append(out, Migration{Name: p, Up: up, Down: down})
	}
	return out, nil
}

func split(raw string) (string, string) {
	start := strings.Index(raw, gooseUp)
	if start < 0 {
		return strings.TrimSpace(raw), ""
	}
	raw = raw[start+len(gooseUp):]
	if end := strings.Index(raw, gooseDown); end >= 0 {
		return strings.TrimSpace(raw[:end]), strings.TrimSpace(raw[end+len(gooseDown):])
	}
	return strings.TrimSpace(raw), ""
}
