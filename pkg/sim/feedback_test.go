package sim

import "testing"

func TestFeedbackDetectorConfirmsAmplifyingOnPositiveCorrelation(t *testing.T) {
	d := NewFeedbackDetector(0.9, 3)
	var confirmed bool
	var loop FeedbackLoop
	for i := 1; i <= 10 && !confirmed; i++ {
		v := float64(i * i) // quadratic, so trend (first differences) is non-constant
		loop, confirmed = d.Observe(v, v)
	}
	if !confirmed {
		t.Fatalf("expected an amplifying feedback loop to be confirmed within 10 identical samples")
	}
	if loop.Kind != Amplifying {
		t.Fatalf("expected Amplifying, got %v", loop.Kind)
	}
	if loop.Correlation < 0.9 {
		t.Fatalf("expected correlation >= 0.9, got %v", loop.Correlation)
	}
}

func TestFeedbackDetectorConfirmsDampeningOnNegativeCorrelation(t *testing.T) {
	d := NewFeedbackDetector(0.9, 3)
	var confirmed bool
	var loop FeedbackLoop
	for i := 1; i <= 10 && !confirmed; i++ {
		v := float64(i * i)
		loop, confirmed = d.Observe(v, -v)
	}
	if !confirmed {
		t.Fatalf("expected a dampening feedback loop to be confirmed within 10 opposed samples")
	}
	if loop.Kind != Dampening {
		t.Fatalf("expected Dampening, got %v", loop.Kind)
	}
}

func TestFeedbackDetectorNoConfirmationOnUncorrelatedSamples(t *testing.T) {
	d := NewFeedbackDetector(0.9, 3)
	samples := []struct{ imb, vol float64 }{
		{1, 5}, {2, 6}, {1, 2}, {3, 8}, {0, 7}, {4, 1}, {1, 4}, {2, 9},
	}
	for _, s := range samples {
		if _, confirmed := d.Observe(s.imb, s.vol); confirmed {
			t.Fatalf("did not expect a confirmed feedback loop from uncorrelated noise")
		}
	}
}

func TestFeedbackDetectorWindowTrimsToTwentySamples(t *testing.T) {
	d := NewFeedbackDetector(0.9, 1000) // effectively never confirms, just checking the window
	for i := 0; i < 50; i++ {
		d.Observe(float64(i), float64(i))
	}
	if len(d.imbalance) != feedbackWindow {
		t.Fatalf("expected window trimmed to %d samples, got %d", feedbackWindow, len(d.imbalance))
	}
}
