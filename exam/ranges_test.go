package exam

import (
	"context"
	"errors"
	"testing"

	"quiz-server/models"
)

func TestParseRangeKey(t *testing.T) {
	start, end, err := ParseRangeKey("range_6_10")
	if err != nil || start != 6 || end != 10 {
		t.Fatalf("ParseRangeKey = %d, %d, %v", start, end, err)
	}
	for _, bad := range []string{"", "range_", "range_1", "range_a_5", "range_5_1", "range_0_3", "rng_1_5", "range_1_5_9"} {
		if _, _, err := ParseRangeKey(bad); !errors.Is(err, ErrInvalidRangeKey) {
			t.Errorf("ParseRangeKey(%q) err = %v, want ErrInvalidRangeKey", bad, err)
		}
	}
}

func TestBuildRangesSkipsEmptyWindows(t *testing.T) {
	bank := newFakeBank(single(1, "A"), single(2, "A"), single(12, "A"), single(16, "A"))
	ranges, err := BuildRanges(context.Background(), bank, 5)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.RangeOption{
		{Key: "range_1_5", Label: "No.1 ~ No.5", Start: 1, End: 5, Count: 2},
		{Key: "range_11_15", Label: "No.11 ~ No.15", Start: 11, End: 15, Count: 1},
		{Key: "range_16_16", Label: "No.16", Start: 16, End: 16, Count: 1},
	}
	if len(ranges) != len(want) {
		t.Fatalf("ranges = %+v", ranges)
	}
	for i := range want {
		if ranges[i] != want[i] {
			t.Errorf("range %d = %+v, want %+v", i, ranges[i], want[i])
		}
	}
}

func TestBuildRangesEmptyBank(t *testing.T) {
	ranges, err := BuildRanges(context.Background(), newFakeBank(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranges) != 0 {
		t.Errorf("ranges = %+v, want none", ranges)
	}
}
