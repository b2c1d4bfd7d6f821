package otaripper

import "testing"

func TestClampThreads(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 1},
		{-5, 1},
		{1, 1},
		{256, 256},
		{257, 256},
		{1000, 256},
	}
	for _, c := range cases {
		if got := clampThreads(c.in); got != c.want {
			t.Errorf("clampThreads(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
