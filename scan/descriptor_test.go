package scan

import "testing"

func feedHappyPath(t *testing.T, d *Descriptor, p *CommunicationParameter) {
	t.Helper()
	lines := []string{
		"Channel:21",
		"Channel Page:09",
		"Pan ID:8888",
		"Addr:001D129012345678",
		"LQI:80",
		"PairID:12345678",
	}
	for _, l := range lines {
		if !d.Step(l, p) {
			t.Fatalf("unexpected failure on line %q", l)
		}
	}
}

func TestDescriptorHappyPath(t *testing.T) {
	var d Descriptor
	var p CommunicationParameter
	feedHappyPath(t, &d, &p)
	if !d.Done() {
		t.Errorf("expected done after six lines")
	}
	if p.Channel != "21" || p.PanID != "8888" || p.PairID != "12345678" {
		t.Errorf("unexpected parameter: %+v", p)
	}
}

func TestDescriptorMalformedKeyAborts(t *testing.T) {
	var d Descriptor
	var p CommunicationParameter
	if !d.Step("Channel:21", &p) {
		t.Fatalf("unexpected failure")
	}
	if !d.Step("Channel Page:09", &p) {
		t.Fatalf("unexpected failure")
	}
	// Malformed: "PanID:" instead of "Pan ID:"
	if d.Step("PanID:8888", &p) {
		t.Fatalf("expected failure for malformed key")
	}
	if p.PanID != "" {
		t.Errorf("expected PanID untouched, got %q", p.PanID)
	}
}

func TestDescriptorResetAllowsRetry(t *testing.T) {
	var d Descriptor
	var p CommunicationParameter
	d.Step("Channel:21", &p)
	d.Reset()
	if d.Done() {
		t.Fatalf("expected not done after reset")
	}
	feedHappyPath(t, &d, &p)
	if !d.Done() {
		t.Errorf("expected done")
	}
}
