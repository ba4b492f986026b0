package exam

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"quiz-server/models"
)

const rangeKeyPrefix = "range_"

// RangeCounter is what BuildRanges needs from the question store.
type RangeCounter interface {
	MaxID(ctx context.Context) (int, error)
	CountInRange(ctx context.Context, start, end int) (int, error)
}

// RangeKey formats the selection key for the window [start, end].
func RangeKey(start, end int) string {
	return fmt.Sprintf("%s%d_%d", rangeKeyPrefix, start, end)
}

// ParseRangeKey parses "range_<start>_<end>".
func ParseRangeKey(key string) (int, int, error) {
	rest, ok := strings.CutPrefix(key, rangeKeyPrefix)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRangeKey, key)
	}
	a, b, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRangeKey, key)
	}
	start, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRangeKey, key)
	}
	end, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRangeKey, key)
	}
	if start < 1 || end < start {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRangeKey, key)
	}
	return start, end, nil
}

// BuildRanges partitions 1..MaxID into windows of size ids and keeps the windows
// that contain at least one question.
func BuildRanges(ctx context.Context, bank RangeCounter, size int) ([]models.RangeOption, error) {
	if size <= 0 {
		size = 5
	}
	maxID, err := bank.MaxID(ctx)
	if err != nil {
		return nil, fmt.Errorf("build ranges: %w", err)
	}
	var out []models.RangeOption
	for start := 1; start <= maxID; start += size {
		end := start + size - 1
		if end > maxID {
			end = maxID
		}
		n, err := bank.CountInRange(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("count range %d-%d: %w", start, end, err)
		}
		if n == 0 {
			continue
		}
		label := fmt.Sprintf("No.%d ~ No.%d", start, end)
		if start == end {
			label = fmt.Sprintf("No.%d", start)
		}
		out = append(out, models.RangeOption{Key: RangeKey(start, end), Label: label, Start: start, End: end, Count: n})
	}
	return out, nil
}

// ResolveRanges unions the question ids of every valid key. Malformed keys are
// skipped.
func (e *Engine) ResolveRanges(ctx context.Context, keys []string) ([]int, error) {
	var ids []int
	for _, key := range keys {
		start, end, err := ParseRangeKey(key)
		if err != nil {
			e.log.Debug("skipping range key", "key", key, "error", err)
			continue
		}
		rangeIDs, err := e.bank.ListIDsInRange(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("list ids %d-%d: %w", start, end, err)
		}
		ids = append(ids, rangeIDs...)
	}
	return dedupe(ids), nil
}
