package model

import (
	"fmt"
	"strconv"
)

// ResourceID uniquely identifies a downloadable beatmap set archive.
//
// Valid ids are positive. A ResourceID is immutable once resolved.
type ResourceID int

// Valid reports whether the id is positive.
func (id ResourceID) Valid() bool {
	return id > 0
}

// String returns the decimal form of the id.
func (id ResourceID) String() string {
	return strconv.Itoa(int(id))
}

// TempName returns the name of the file a download is streamed into
// before it is renamed to the server-provided name.
//
// A file with this name left behind by an interrupted run is not treated
// as an existing download.
func (id ResourceID) TempName() string {
	return fmt.Sprintf("beatmap_%d.osz", id)
}

// ParseResourceID parses a decimal id. Non-positive values are rejected.
func ParseResourceID(s string) (ResourceID, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	id := ResourceID(n)
	if !id.Valid() {
		return 0, fmt.Errorf("invalid resource id %d", n)
	}
	return id, nil
}
