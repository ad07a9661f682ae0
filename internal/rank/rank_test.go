package rank

import (
	"errors"
	"testing"
	"time"

	"github.com/flemzord/codexsw/internal/probe"
)

func ok(id string, ms int) probe.Result {
	return probe.Result{ProviderID: id, BaseURL: "https://" + id + ".example", Success: true, Latency: time.Duration(ms) * time.Millisecond}
}

func fail(id string) probe.Result {
	return probe.Result{ProviderID: id, Latency: probe.FailureLatency, Error: "boom"}
}

func ids(results []probe.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ProviderID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []probe.Result
		want  []string
	}{
		{
			name:  "successes ascending then failures alphabetical",
			input: []probe.Result{fail("zulu"), ok("b", 200), fail("alpha"), ok("a", 50)},
			want:  []string{"a", "b", "alpha", "zulu"},
		},
		{
			name:  "equal latency keeps discovery order",
			input: []probe.Result{ok("second", 100), ok("first", 100), ok("third", 100)},
			want:  []string{"second", "first", "third"},
		},
		{
			name:  "failures of one provider keep credential order",
			input: []probe.Result{fail("p"), ok("q", 10), fail("p")},
			want:  []string{"q", "p", "p"},
		},
		{
			name:  "success without latency sorts with failures",
			input: []probe.Result{{ProviderID: "odd", Success: true, Latency: probe.FailureLatency}, ok("b", 5), fail("a")},
			want:  []string{"b", "a", "odd"},
		},
		{
			name:  "empty",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ids(Sort(tt.input))
			if !equal(got, tt.want) {
				t.Errorf("Sort() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSort_Deterministic(t *testing.T) {
	t.Parallel()

	input := []probe.Result{fail("c"), ok("x", 30), ok("y", 30), fail("a"), ok("z", 10)}
	first := ids(Sort(input))
	for range 20 {
		if got := ids(Sort(input)); !equal(got, first) {
			t.Fatalf("Sort() not deterministic: %v vs %v", got, first)
		}
	}
	if input[0].ProviderID != "c" {
		t.Error("Sort modified its input")
	}
}

func TestQualifies(t *testing.T) {
	t.Parallel()

	sentinelSuccess := probe.Result{ProviderID: "s", Success: true, Latency: probe.FailureLatency}
	unsuccessfulButTimed := probe.Result{ProviderID: "t", Success: false, Latency: 40 * time.Millisecond}
	zero := probe.Result{ProviderID: "z", Success: true}

	tests := []struct {
		name string
		r    probe.Result
		mode probe.Mode
		want bool
	}{
		{"validity success", ok("a", 10), probe.Validity, true},
		{"validity failure", fail("a"), probe.Validity, false},
		{"validity success with sentinel", sentinelSuccess, probe.Validity, false},
		{"validity timed but unsuccessful", unsuccessfulButTimed, probe.Validity, false},
		{"validity zero latency", zero, probe.Validity, false},
		{"reachability ignores success flag", unsuccessfulButTimed, probe.Reachability, true},
		{"reachability sentinel", sentinelSuccess, probe.Reachability, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Qualifies(tt.r, tt.mode); got != tt.want {
				t.Errorf("Qualifies() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	t.Run("lowest latency wins", func(t *testing.T) {
		t.Parallel()
		c, found := Select([]probe.Result{ok("b", 200), fail("c"), ok("a", 50)}, probe.Validity)
		if !found || c.ProviderID != "a" || c.Latency != 50*time.Millisecond || c.BaseURL != "https://a.example" {
			t.Errorf("Select() = %+v, %v", c, found)
		}
	})

	t.Run("tie keeps input order", func(t *testing.T) {
		t.Parallel()
		c, _ := Select([]probe.Result{ok("late", 70), ok("early", 70)}, probe.Validity)
		if c.ProviderID != "late" {
			t.Errorf("winner = %q, want first of tied results", c.ProviderID)
		}
	})

	t.Run("sentinel success never wins", func(t *testing.T) {
		t.Parallel()
		bogus := probe.Result{ProviderID: "bogus", Success: true, Latency: probe.FailureLatency}
		c, found := Select([]probe.Result{bogus, ok("real", 900)}, probe.Validity)
		if !found || c.ProviderID != "real" {
			t.Errorf("Select() = %+v, %v, want real", c, found)
		}
		if _, found := Select([]probe.Result{bogus}, probe.Validity); found {
			t.Error("sentinel-only input must select nothing")
		}
	})

	t.Run("carries winning credential", func(t *testing.T) {
		t.Parallel()
		slow, fast := ok("p", 90), ok("p", 20)
		slow.CredentialIndex, fast.CredentialIndex = 1, 2
		c, found := Select([]probe.Result{slow, fast}, probe.Validity)
		if !found || c.CredentialIndex != 2 {
			t.Errorf("Select() = %+v, %v, want credential 2", c, found)
		}
	})

	t.Run("nothing qualifies", func(t *testing.T) {
		t.Parallel()
		if _, found := Select([]probe.Result{fail("a"), fail("b")}, probe.Validity); found {
			t.Error("expected no selection")
		}
	})
}

func TestDecide(t *testing.T) {
	t.Parallel()

	if _, err := Decide(nil, probe.Validity); !errors.Is(err, ErrNoResults) {
		t.Errorf("empty input: err = %v, want ErrNoResults", err)
	}
	if _, err := Decide([]probe.Result{fail("a")}, probe.Validity); !errors.Is(err, ErrNoQualifying) {
		t.Errorf("all failed: err = %v, want ErrNoQualifying", err)
	}
	c, err := Decide([]probe.Result{fail("a"), ok("b", 3)}, probe.Validity)
	if err != nil || c.ProviderID != "b" {
		t.Errorf("Decide() = %+v, %v", c, err)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	good, total := Summary([]probe.Result{ok("a", 1), fail("b"), ok("c", 2)})
	if good != 2 || total != 3 {
		t.Errorf("Summary() = %d/%d, want 2/3", good, total)
	}
}
