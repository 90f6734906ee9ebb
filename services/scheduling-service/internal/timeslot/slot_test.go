package timeslot

import "testing"

func TestNext_RollsMinutes(t *testing.T) {
	cases := []struct {
		in   Slot
		want Slot
	}{
		{900, 930},
		{930, 1000},
		{0, 30},
		{2330, 2400},
	}
	for _, tc := range cases {
		if got := tc.in.Next(); got != tc.want {
			t.Fatalf("Next(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestValid(t *testing.T) {
	for _, s := range []Slot{0, 30, 930, 2330} {
		if !s.Valid() {
			t.Fatalf("expected %d to be valid", s)
		}
	}
	for _, s := range []Slot{-30, 945, 970, 2400, 2430} {
		if s.Valid() {
			t.Fatalf("expected %d to be invalid", s)
		}
	}
	if !DayEnd.ValidEnd() {
		t.Fatal("2400 must be a legal end bound")
	}
}

func TestForDuration_StopsAtClose(t *testing.T) {
	// Open 06:00-22:00, 60-minute session starting 21:30: only 21:30 fits,
	// the 22:00 slot would land at close. Short result, not an error.
	got := ForDuration(2130, 60, 600, 2200)
	if len(got) != 1 || got[0] != 2130 {
		t.Fatalf("ForDuration(2130, 60) = %v, want [2130]", got)
	}
}

func TestForDuration_BeforeOpen(t *testing.T) {
	if got := ForDuration(530, 60, 600, 2200); len(got) != 0 {
		t.Fatalf("expected empty sequence before open, got %v", got)
	}
}

func TestForDuration_Fits(t *testing.T) {
	got := ForDuration(930, 90, 600, 2200)
	want := []Slot{930, 1000, 1030}
	if len(got) != len(want) {
		t.Fatalf("ForDuration(930, 90) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slot %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestForDuration_Pure(t *testing.T) {
	a := ForDuration(1000, 120, 600, 2200)
	b := ForDuration(1000, 120, 600, 2200)
	if len(a) != len(b) {
		t.Fatalf("repeated calls disagree: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("repeated calls disagree at %d: %v vs %v", i, a, b)
		}
	}
}

func TestRange_GridInvariant(t *testing.T) {
	slots := Range(600, 2200)
	if len(slots) != 32 {
		t.Fatalf("expected 32 start slots between 06:00 and 22:00, got %d", len(slots))
	}
	for _, s := range slots {
		if m := s.Minute(); m != 0 && m != 30 {
			t.Fatalf("slot %d is off the 30-minute grid", s)
		}
		if s < 600 || s >= 2200 {
			t.Fatalf("slot %d outside [600, 2200)", s)
		}
	}
}

func TestSpan(t *testing.T) {
	got := Span(1000, 1130)
	want := []Slot{1000, 1030, 1100}
	if len(got) != len(want) {
		t.Fatalf("Span(1000, 1130) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Span slot %d = %d, want %d", i, got[i], want[i])
		}
	}
	if Span(1130, 1000) != nil {
		t.Fatal("inverted range must produce no slots")
	}
	if Span(1015, 1130) != nil {
		t.Fatal("misaligned start must produce no slots")
	}
	if Count(2300, 2400) != 2 {
		t.Fatalf("Count(2300, 2400) = %d, want 2", Count(2300, 2400))
	}
}
