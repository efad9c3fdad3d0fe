package reminder

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Unit is the granularity of a lead-time offset.
type Unit string

const (
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
	UnitDays    Unit = "days"
)

// MorningOfLabel names the 07:00-on-the-day anchor in storage and in log keys.
const MorningOfLabel = "morning-of"

const morningOfHour = 7

// ErrInvalidOffset is returned for offset records that describe neither a
// lead time nor the morning-of anchor.
var ErrInvalidOffset = errors.New("reminder: invalid offset")

// Offset is a configured reminder point relative to an event start. The two
// implementations are Lead and MorningOf.
type Offset interface {
	// Key is the canonical deduplication key, e.g. "7d", "15m" or "morning-of".
	Key() string
	// FireTime computes when the reminder becomes due for an event starting at start.
	FireTime(start time.Time, loc *time.Location) time.Time

	offset()
}

// Lead fires a fixed amount of time before the event starts.
type Lead struct {
	Value int
	Unit  Unit
}

// NewLead validates and builds a lead-time offset.
func NewLead(value int, unit Unit) (Lead, error) {
	if value < 0 {
		return Lead{}, fmt.Errorf("%w: negative value %d", ErrInvalidOffset, value)
	}
	switch unit {
	case UnitMinutes, UnitHours, UnitDays:
		return Lead{Value: value, Unit: unit}, nil
	default:
		return Lead{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidOffset, unit)
	}
}

func (Lead) offset() {}

// Key implements Offset.
func (l Lead) Key() string {
	if l.Unit == "" {
		return strconv.Itoa(l.Value)
	}
	return strconv.Itoa(l.Value) + string(l.Unit[0])
}

// FireTime implements Offset. Day offsets move by calendar days in loc so the
// wall-clock time is kept.
func (l Lead) FireTime(start time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	switch l.Unit {
	case UnitMinutes:
		return start.Add(-time.Duration(l.Value) * time.Minute)
	case UnitHours:
		return start.Add(-time.Duration(l.Value) * time.Hour)
	default:
		return start.In(loc).AddDate(0, 0, -l.Value)
	}
}

// MorningOf fires at 07:00 local time on the calendar day of the event.
type MorningOf struct{}

func (MorningOf) offset() {}

// Key implements Offset.
func (MorningOf) Key() string { return MorningOfLabel }

// FireTime implements Offset.
func (MorningOf) FireTime(start time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := start.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), morningOfHour, 0, 0, 0, loc)
}

// OffsetRecord is the stored shape of an offset.
type OffsetRecord struct {
	Value int    `json:"value"`
	Unit  Unit   `json:"unit,omitempty"`
	Label string `json:"label,omitempty"`
}

// ToRecord converts an offset into its stored shape.
func ToRecord(o Offset) OffsetRecord {
	switch v := o.(type) {
	case MorningOf:
		return OffsetRecord{Label: MorningOfLabel}
	case Lead:
		return OffsetRecord{Value: v.Value, Unit: v.Unit}
	default:
		return OffsetRecord{}
	}
}

// FromRecord converts a stored record into an offset.
func FromRecord(r OffsetRecord) (Offset, error) {
	switch r.Label {
	case MorningOfLabel:
		return MorningOf{}, nil
	case "":
		return NewLead(r.Value, r.Unit)
	default:
		return nil, fmt.Errorf("%w: unknown label %q", ErrInvalidOffset, r.Label)
	}
}

// EncodeOffsets serialises offsets as a JSON array of records, keeping order.
func EncodeOffsets(offsets []Offset) ([]byte, error) {
	records := make([]OffsetRecord, 0, len(offsets))
	for _, o := range offsets {
		records = append(records, ToRecord(o))
	}
	return json.Marshal(records)
}

// DecodeOffsets parses a JSON array of offset records.
func DecodeOffsets(data []byte) ([]Offset, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var records []OffsetRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOffset, err)
	}
	return FromRecords(records)
}

// FromRecords converts stored records into offsets, failing on the first invalid one.
func FromRecords(records []OffsetRecord) ([]Offset, error) {
	offsets := make([]Offset, 0, len(records))
	for i, r := range records {
		o, err := FromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("offset %d: %w", i, err)
		}
		offsets = append(offsets, o)
	}
	return offsets, nil
}
