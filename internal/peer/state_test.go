package peer

import (
	"testing"
	"time"
)

func TestClassifyQuality(t *testing.T) {
	cases := []struct {
		name string
		rtt  time.Duration
		loss float64
		want Quality
	}{
		{"low latency clean", 40 * time.Millisecond, 0.001, QualityExcellent},
		{"excellent boundary", 99 * time.Millisecond, 0.009, QualityExcellent},
		{"rtt pushes to good", 150 * time.Millisecond, 0.001, QualityGood},
		{"loss pushes to good", 40 * time.Millisecond, 0.02, QualityGood},
		{"fair band", 400 * time.Millisecond, 0.04, QualityFair},
		{"high rtt", 800 * time.Millisecond, 0.001, QualityPoor},
		{"high loss", 40 * time.Millisecond, 0.2, QualityPoor},
	}
	for _, tc := range cases {
		got := ClassifyQuality(Stats{RTT: tc.rtt, PacketLoss: tc.loss})
		if got != tc.want {
			t.Errorf("%s: ClassifyQuality = %s, want %s", tc.name, got, tc.want)
		}
	}
}
