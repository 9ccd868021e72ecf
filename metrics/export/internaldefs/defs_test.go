package internaldefs

import (
	"strings"
	"testing"

	"github.com/MrEthical07/tokengate"
)

func TestCounterDefsCoverEveryCounter(t *testing.T) {
	seen := map[tokengate.MetricID]bool{}
	names := map[string]bool{}
	for _, def := range CounterDefs {
		if seen[def.ID] {
			t.Fatalf("duplicate id %d", def.ID)
		}
		if names[def.Name] {
			t.Fatalf("duplicate name %s", def.Name)
		}
		if !strings.HasPrefix(def.Name, "tokengate_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %s", def.Name)
		}
		seen[def.ID] = true
		names[def.Name] = true
	}
	for id := tokengate.MetricID(0); id < tokengate.MetricValidateLatency; id++ {
		if !seen[id] {
			t.Fatalf("counter %d has no export definition", id)
		}
	}
}

func TestBuckets(t *testing.T) {
	n := NormalizeBuckets([]uint64{1, 2, 3})
	if n != [BucketCount]uint64{1, 2, 3, 0, 0, 0, 0, 0} {
		t.Fatalf("unexpected normalized buckets %v", n)
	}
	c := CumulativeBuckets([BucketCount]uint64{1, 1, 1, 1, 1, 1, 1, 1})
	if c[0] != 1 || c[BucketCount-1] != BucketCount {
		t.Fatalf("unexpected cumulative buckets %v", c)
	}
	if HistogramBounds[BucketCount-1] != "+Inf" {
		t.Fatal("last bound must be +Inf")
	}
}
