package resolver

import (
	"testing"
	"time"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/availability"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/faults"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
)

func TestIrregular_AllFree(t *testing.T) {
	picked := schedule.DaySchedule{}
	picked.Pick("2026-09-07", 930)
	picked.Pick("2026-09-09", 1800)

	res, err := Irregular(picked, availability.NewIndex())
	if err != nil {
		t.Fatalf("Irregular failed: %v", err)
	}
	if len(res.Accepted) != 2 || len(res.Rejected) != 0 {
		t.Fatalf("expected 2 accepted / 0 rejected, got %d/%d", len(res.Accepted), len(res.Rejected))
	}
	if res.Accepted[0].DateKey() != "2026-09-07" || res.Accepted[1].DateKey() != "2026-09-09" {
		t.Fatalf("accepted out of order: %v", res.Accepted)
	}
}

func TestIrregular_OneDateCollides(t *testing.T) {
	picked := schedule.DaySchedule{}
	picked.Pick("2026-09-07", 930)
	picked.Pick("2026-09-09", 1800)

	ix := availability.NewIndex()
	ix.AddSpan("2026-09-09", 1800, 1900) // fully overlaps the second pick

	res, err := Irregular(picked, ix)
	if err != nil {
		t.Fatalf("Irregular failed: %v", err)
	}
	if len(res.Accepted) != 1 || res.Accepted[0].DateKey() != "2026-09-07" {
		t.Fatalf("expected only 2026-09-07 accepted, got %v", res.Accepted)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].DateKey() != "2026-09-09" {
		t.Fatalf("expected 2026-09-09 rejected, got %v", res.Rejected)
	}
}

func TestIrregular_PartialDayOverlapRejectsWholeDate(t *testing.T) {
	picked := schedule.DaySchedule{}
	picked.Pick("2026-09-07", 1000)
	picked.Pick("2026-09-07", 1030) // canonical span 10:00-11:00

	ix := availability.NewIndex()
	ix.AddSpan("2026-09-07", 1030, 1100)

	res, err := Irregular(picked, ix)
	if err != nil {
		t.Fatalf("Irregular failed: %v", err)
	}
	if len(res.Accepted) != 0 || len(res.Rejected) != 1 {
		t.Fatalf("one colliding slot must reject the whole date, got %d/%d",
			len(res.Accepted), len(res.Rejected))
	}
}

func TestIrregular_EmptySelection(t *testing.T) {
	_, err := Irregular(schedule.DaySchedule{}, availability.NewIndex())
	if !faults.Is(err, faults.KindValidation) {
		t.Fatalf("empty selection should be a validation fault, got %v", err)
	}
}

func TestRegular_FillsCountAlternatingWeekdays(t *testing.T) {
	anchor := schedule.DaySchedule{}
	anchor.Pick("2026-09-07", 930)  // Monday
	anchor.Pick("2026-09-10", 1800) // Thursday

	res, patterns, err := Regular(RegularInput{Anchor: anchor, TotalCount: 8},
		availability.NewIndex(), Config{})
	if err != nil {
		t.Fatalf("Regular failed: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}
	if len(res.Accepted) != 8 {
		t.Fatalf("expected exactly 8 accepted, got %d", len(res.Accepted))
	}

	wantWeekdays := []time.Weekday{
		time.Monday, time.Thursday, time.Monday, time.Thursday,
		time.Monday, time.Thursday, time.Monday, time.Thursday,
	}
	prev := time.Time{}
	for i, s := range res.Accepted {
		if s.Date.Weekday() != wantWeekdays[i] {
			t.Fatalf("occurrence %d on %s, want %s", i, s.Date.Weekday(), wantWeekdays[i])
		}
		if !s.Date.After(prev) {
			t.Fatalf("dates must be strictly increasing, got %s after %s", s.DateKey(), prev)
		}
		prev = s.Date
	}
}

func TestRegular_SkipsOccupiedAndOffDays(t *testing.T) {
	anchor := schedule.DaySchedule{}
	anchor.Pick("2026-09-07", 930) // Monday

	ix := availability.NewIndex()
	ix.AddSpan("2026-09-14", 900, 1000) // second Monday occupied

	offDays := map[string]struct{}{"2026-09-21": {}} // third Monday off

	res, _, err := Regular(RegularInput{Anchor: anchor, TotalCount: 3, OffDays: offDays}, ix, Config{})
	if err != nil {
		t.Fatalf("Regular failed: %v", err)
	}
	wantAccepted := []string{"2026-09-07", "2026-09-28", "2026-10-05"}
	if len(res.Accepted) != len(wantAccepted) {
		t.Fatalf("expected %d accepted, got %v", len(wantAccepted), res.Accepted)
	}
	for i, key := range wantAccepted {
		if res.Accepted[i].DateKey() != key {
			t.Fatalf("accepted[%d] = %s, want %s", i, res.Accepted[i].DateKey(), key)
		}
	}
	wantRejected := []string{"2026-09-14", "2026-09-21"}
	if len(res.Rejected) != len(wantRejected) {
		t.Fatalf("expected %d rejected, got %v", len(wantRejected), res.Rejected)
	}
	for i, key := range wantRejected {
		if res.Rejected[i].DateKey() != key {
			t.Fatalf("rejected[%d] = %s, want %s", i, res.Rejected[i].DateKey(), key)
		}
	}
}

func TestRegular_HorizonExhaustedIsPartialSuccess(t *testing.T) {
	anchor := schedule.DaySchedule{}
	anchor.Pick("2026-09-07", 930) // Monday

	// Every projected Monday within the 4-week horizon except the first is taken.
	ix := availability.NewIndex()
	for _, key := range []string{"2026-09-14", "2026-09-21", "2026-09-28"} {
		ix.AddSpan(key, 930, 1030)
	}

	res, _, err := Regular(RegularInput{Anchor: anchor, TotalCount: 10}, ix, Config{HorizonWeeks: 4})
	if err != nil {
		t.Fatalf("Regular failed: %v", err)
	}
	if len(res.Accepted) != 1 {
		t.Fatalf("expected partial success of 1, got %d", len(res.Accepted))
	}
	if len(res.Rejected) != 3 {
		t.Fatalf("expected 3 rejected, got %d", len(res.Rejected))
	}
}

func TestRegular_StopsAtCount(t *testing.T) {
	anchor := schedule.DaySchedule{}
	anchor.Pick("2026-09-07", 930)

	res, _, err := Regular(RegularInput{Anchor: anchor, TotalCount: 2},
		availability.NewIndex(), Config{HorizonWeeks: 52})
	if err != nil {
		t.Fatalf("Regular failed: %v", err)
	}
	if len(res.Accepted) != 2 || len(res.Rejected) != 0 {
		t.Fatalf("expected to stop at 2 accepted, got %d/%d",
			len(res.Accepted), len(res.Rejected))
	}
}

func TestRegular_InvalidCount(t *testing.T) {
	anchor := schedule.DaySchedule{}
	anchor.Pick("2026-09-07", 930)
	_, _, err := Regular(RegularInput{Anchor: anchor, TotalCount: 0}, availability.NewIndex(), Config{})
	if !faults.Is(err, faults.KindValidation) {
		t.Fatalf("zero count should be a validation fault, got %v", err)
	}
}
