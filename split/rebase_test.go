package split

import "testing"

func TestRebaser(t *testing.T) {
	var rb Rebaser
	if rb.Established() {
		t.Fatal("fresh rebaser must not have a base")
	}

	rb.SetBase(5010)
	if !rb.Established() {
		t.Fatal("SetBase should establish the base")
	}

	cases := []struct {
		ts   uint32
		want uint32
	}{
		{5000, 0}, // metadata stamped earlier than the first media tag
		{5010, 0},
		{5015, 5},
		{6010, 1000},
		{0, 0},
	}
	for _, c := range cases {
		if got := rb.Rebase(c.ts); got != c.want {
			t.Errorf("Rebase(%d) = %d, want %d", c.ts, got, c.want)
		}
	}

	rb.Reset()
	if rb.Established() {
		t.Error("Reset should drop the base")
	}
	if got := rb.Rebase(100); got != 100 {
		t.Errorf("after Reset: Rebase(100) = %d, want 100", got)
	}
}
