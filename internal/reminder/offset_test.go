package reminder

import (
	"errors"
	"testing"
	"time"
)

func TestOffsetKeys(t *testing.T) {
	t.Parallel()

	cases := []struct {
		offset Offset
		want   string
	}{
		{Lead{Value: 7, Unit: UnitDays}, "7d"},
		{Lead{Value: 15, Unit: UnitMinutes}, "15m"},
		{Lead{Value: 2, Unit: UnitHours}, "2h"},
		{MorningOf{}, "morning-of"},
	}
	for _, tc := range cases {
		if got := tc.offset.Key(); got != tc.want {
			t.Fatalf("Key() = %q, want %q", got, tc.want)
		}
	}
}

func TestLeadFireTime(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*60*60)
	start := time.Date(2025, time.March, 10, 8, 0, 0, 0, loc)

	cases := []struct {
		name string
		lead Lead
		want time.Time
	}{
		{"minutes", Lead{Value: 15, Unit: UnitMinutes}, time.Date(2025, time.March, 10, 7, 45, 0, 0, loc)},
		{"hours", Lead{Value: 2, Unit: UnitHours}, time.Date(2025, time.March, 10, 6, 0, 0, 0, loc)},
		{"days", Lead{Value: 7, Unit: UnitDays}, time.Date(2025, time.March, 3, 8, 0, 0, 0, loc)},
		{"zero", Lead{Value: 0, Unit: UnitMinutes}, start},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.lead.FireTime(start, loc); !got.Equal(tc.want) {
				t.Fatalf("FireTime() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestMorningOfIgnoresEventTime(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*60*60)
	for _, hour := range []int{0, 6, 18, 23} {
		start := time.Date(2025, time.March, 10, hour, 30, 0, 0, loc)
		want := time.Date(2025, time.March, 10, 7, 0, 0, 0, loc)
		if got := (MorningOf{}).FireTime(start, loc); !got.Equal(want) {
			t.Fatalf("FireTime(%s) = %s, want %s", start, got, want)
		}
	}
}

func TestMorningOfUsesLocalCalendarDay(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*60*60)
	// 23:30 UTC on Mar 9 is already Mar 10 in loc.
	start := time.Date(2025, time.March, 9, 23, 30, 0, 0, time.UTC)
	want := time.Date(2025, time.March, 10, 7, 0, 0, 0, loc)
	if got := (MorningOf{}).FireTime(start, loc); !got.Equal(want) {
		t.Fatalf("FireTime() = %s, want %s", got, want)
	}
}

func TestDecodeOffsets(t *testing.T) {
	t.Parallel()

	offsets, err := DecodeOffsets([]byte(`[{"value":7,"unit":"days"},{"value":0,"label":"morning-of"},{"value":15,"unit":"minutes"}]`))
	if err != nil {
		t.Fatalf("DecodeOffsets returned error: %v", err)
	}
	want := []string{"7d", "morning-of", "15m"}
	if len(offsets) != len(want) {
		t.Fatalf("expected %d offsets, got %d", len(want), len(offsets))
	}
	for i, key := range want {
		if offsets[i].Key() != key {
			t.Fatalf("offset %d key = %q, want %q", i, offsets[i].Key(), key)
		}
	}

	encoded, err := EncodeOffsets(offsets)
	if err != nil {
		t.Fatalf("EncodeOffsets returned error: %v", err)
	}
	const wantJSON = `[{"value":7,"unit":"days"},{"value":0,"label":"morning-of"},{"value":15,"unit":"minutes"}]`
	if string(encoded) != wantJSON {
		t.Fatalf("EncodeOffsets() = %s, want %s", encoded, wantJSON)
	}
}

func TestDecodeOffsetsRejectsInvalidRecords(t *testing.T) {
	t.Parallel()

	inputs := []string{
		`[{"value":1,"unit":"weeks"}]`,
		`[{"value":-5,"unit":"minutes"}]`,
		`[{"value":0,"label":"evening-before"}]`,
		`{"value":1}`,
	}
	for _, input := range inputs {
		if _, err := DecodeOffsets([]byte(input)); !errors.Is(err, ErrInvalidOffset) {
			t.Fatalf("DecodeOffsets(%s) error = %v, want ErrInvalidOffset", input, err)
		}
	}
}

func TestResolver(t *testing.T) {
	t.Parallel()

	resolver := NewResolver([]Rule{
		{FamilyID: "fam-1", Category: "test", Offsets: []Offset{Lead{Value: 1, Unit: UnitDays}}},
		{FamilyID: "fam-1", Category: "test", Offsets: []Offset{MorningOf{}}},
		{FamilyID: "fam-2", Category: "class", Offsets: []Offset{Lead{Value: 30, Unit: UnitMinutes}}},
	})

	if resolver.Len() != 2 {
		t.Fatalf("expected 2 indexed rules, got %d", resolver.Len())
	}
	if got := resolver.Offsets("fam-1", "test"); len(got) != 1 || got[0].Key() != "morning-of" {
		t.Fatalf("expected later rule to win, got %v", got)
	}
	if got := resolver.Offsets("fam-1", "class"); got != nil {
		t.Fatalf("expected no offsets for unconfigured category, got %v", got)
	}
	var nilResolver *Resolver
	if nilResolver.Offsets("fam-1", "test") != nil {
		t.Fatal("expected nil resolver to return no offsets")
	}
}
