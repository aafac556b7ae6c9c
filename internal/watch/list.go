// Package watch runs rank checks for a list of keyword/listing pairs on cron
// schedules.
package watch

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/rank"
)

// Entry is one watched keyword and the listing to look for. An empty
// Schedule uses the scheduler default.
type Entry struct {
	Keyword   string `yaml:"keyword"`
	PlaceID   string `yaml:"place_id"`
	PlaceName string `yaml:"place_name"`
	Phone     string `yaml:"phone"`
	ScanDepth int    `yaml:"scan_depth"`
	Schedule  string `yaml:"schedule"`
}

// Target returns the matching hints for the entry.
func (e Entry) Target() model.Target {
	return model.Target{ID: e.PlaceID, Name: e.PlaceName, Phone: e.Phone}
}

// Request builds the rank check request for the entry.
func (e Entry) Request() rank.CheckRequest {
	return rank.CheckRequest{Keyword: e.Keyword, Target: e.Target(), ScanDepth: e.ScanDepth}
}

// Label identifies the entry in logs.
func (e Entry) Label() string {
	t := e.Target()
	switch {
	case t.ID != "":
		return e.Keyword + " @ " + t.ID
	case t.Name != "":
		return e.Keyword + " @ " + t.Name
	default:
		return e.Keyword + " @ " + t.Phone
	}
}

// Load reads a YAML list of entries from path and validates every entry.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "watch: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML list of entries.
func Parse(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrap(err, "watch: parse list")
	}

	var errs []string
	for i := range entries {
		e := &entries[i]
		e.Keyword = strings.TrimSpace(e.Keyword)
		e.Schedule = strings.TrimSpace(e.Schedule)
		if e.Keyword == "" {
			errs = append(errs, fmt.Sprintf("entry %d: keyword is required", i))
		}
		if e.Target().IsZero() {
			errs = append(errs, fmt.Sprintf("entry %d: one of place_id, place_name or phone is required", i))
		}
		if e.ScanDepth < 0 {
			errs = append(errs, fmt.Sprintf("entry %d: scan_depth must be >= 0", i))
		}
	}
	if len(errs) > 0 {
		return nil, eris.Errorf("watch: %s", strings.Join(errs, "; "))
	}
	return entries, nil
}
