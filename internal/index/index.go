// Package index records which beatmap sets are already present on disk.
//
// A Set is taken once, before a run starts, from the directories holding
// downloaded archives and installed songs. Every entry whose name starts
// with a decimal run counts as that id, so both "123456 Artist - Title.osz"
// and an extracted "123456 Artist - Title" folder mark 123456 as present.
package index

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	ioutils "github.com/handiism/quicksong/internal/io"
	"github.com/handiism/quicksong/internal/model"
)

var leadingID = regexp.MustCompile(`^(\d+)`)

// Set is an immutable snapshot of the ids found on disk.
type Set struct {
	ids map[model.ResourceID]struct{}
}

// NewSet builds a Set from ids. Invalid ids are ignored.
func NewSet(ids ...model.ResourceID) Set {
	s := Set{ids: make(map[model.ResourceID]struct{}, len(ids))}
	for _, id := range ids {
		if id.Valid() {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

// Contains reports whether id is present.
func (s Set) Contains(id model.ResourceID) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of ids.
func (s Set) Len() int {
	return len(s.ids)
}

// IDs returns the ids in ascending order.
func (s Set) IDs() []model.ResourceID {
	out := make([]model.ResourceID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// IDFromName returns the id encoded by the leading digits of an entry
// name. Temp artifacts ("beatmap_{id}.osz") have no leading digits and
// are not counted.
func IDFromName(name string) (model.ResourceID, bool) {
	m := leadingID.FindString(name)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	id := model.ResourceID(n)
	return id, id.Valid()
}

// Scan lists each path and collects the ids of its entries. A path that
// does not exist or is not a directory aborts the scan with a
// model.KindPath error.
func Scan(paths ...string) (Set, error) {
	s := Set{ids: make(map[model.ResourceID]struct{})}
	for _, p := range paths {
		if p == "" {
			continue
		}
		dir, err := ioutils.CheckDir(p)
		if err != nil {
			return Set{}, model.NewError(model.KindPath, 0, err)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return Set{}, model.NewError(model.KindPath, 0, fmt.Errorf("read %s: %w", dir, err))
		}
		for _, e := range entries {
			if id, ok := IDFromName(e.Name()); ok {
				s.ids[id] = struct{}{}
			}
		}
	}
	return s, nil
}

// Dump writes one set URL per line, in ascending id order.
func Dump(w io.Writer, base string, s Set) error {
	base = strings.TrimRight(base, "/")
	for _, id := range s.IDs() {
		if _, err := fmt.Fprintf(w, "%s/beatmapsets/%d\n", base, id); err != nil {
			return err
		}
	}
	return nil
}
