package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	shared "github.com/fitglue/polar-ingest/pkg"
)

// Summary keys that identify an exercise.
const (
	FieldID        = "id"
	FieldStartTime = "start-time"
)

var (
	ErrMissingID        = errors.New("exercise has no id")
	ErrMissingStartTime = errors.New("exercise has no start-time")
)

// startTimeLayouts are tried in order; the provider sends local time without a zone.
var startTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

// MergedRecord is an exercise summary combined with its optional GPX track.
type MergedRecord struct {
	ID        string
	StartTime time.Time
	Summary   map[string]interface{}
	Track     map[string]interface{}

	fields map[string]interface{}
}

// MergeFields returns the shallow union of a and b. Keys present in both take b's value.
func MergeFields(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// NewMergedRecord merges summary and track and validates the identifying fields
// of the result.
func NewMergedRecord(summary, track map[string]interface{}) (*MergedRecord, error) {
	fields := MergeFields(summary, track)

	id, err := formatID(fields[FieldID])
	if err != nil {
		return nil, err
	}

	rawStart, ok := fields[FieldStartTime].(string)
	if !ok || strings.TrimSpace(rawStart) == "" {
		return nil, ErrMissingStartTime
	}
	start, err := parseStartTime(rawStart)
	if err != nil {
		return nil, err
	}

	return &MergedRecord{
		ID:        id,
		StartTime: start,
		Summary:   summary,
		Track:     track,
		fields:    fields,
	}, nil
}

// Fields returns the merged mapping that is stored.
func (r *MergedRecord) Fields() map[string]interface{} {
	return r.fields
}

// HasTrack reports whether GPX data was merged in.
func (r *MergedRecord) HasTrack() bool {
	return len(r.Track) > 0
}

func (r *MergedRecord) MarshalJSON() ([]byte, error) {
	return encodeJSON(r.fields)
}

// ObjectPath is the storage path of the record. It depends only on the id and
// the calendar date of the start time, so re-delivery overwrites the same object.
func (r *MergedRecord) ObjectPath() string {
	return ObjectPath(r.ID, r.StartTime)
}

// ObjectPath builds "polar/polar_{id}_{YYYY-MM-DD}.json".
func ObjectPath(id string, start time.Time) string {
	return fmt.Sprintf("%s/%s_%s_%s.json", shared.ObjectPrefix, shared.ObjectPrefix, id, start.Format("2006-01-02"))
}

func formatID(v interface{}) (string, error) {
	var id string
	switch t := v.(type) {
	case nil:
		return "", ErrMissingID
	case string:
		id = t
	case json.Number:
		id = t.String()
	case float64:
		id = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		id = strconv.Itoa(t)
	case int64:
		id = strconv.FormatInt(t, 10)
	default:
		return "", fmt.Errorf("%w: unsupported id type %T", ErrMissingID, v)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrMissingID
	}
	return id, nil
}

func parseStartTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid start-time %q", s)
}
