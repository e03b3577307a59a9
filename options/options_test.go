package options

import "testing"

func TestParseDefaults(t *testing.T) {
	o, err := Parse("nighthawk", []string{"http://example.com"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if o.URI != "http://example.com" {
		t.Errorf("URI = %q", o.URI)
	}
	if o.RPS != Defaults.RPS || o.Concurrency != Defaults.Concurrency || o.OutputFormat != Defaults.OutputFormat {
		t.Errorf("defaults not applied: %+v", o)
	}
}

func TestParseMissingURI(t *testing.T) {
	if _, err := Parse("nighthawk", []string{"-rps", "10"}); err == nil {
		t.Error("expected error for missing target uri")
	}
}

func TestParseInvalidRPS(t *testing.T) {
	if _, err := Parse("nighthawk", []string{"-rps", "-1", "http://example.com"}); err == nil {
		t.Error("expected error for non-positive rps")
	}
}

func TestParseInvalidOutputFormat(t *testing.T) {
	if _, err := Parse("nighthawk", []string{"-output-format", "xml", "http://example.com"}); err == nil {
		t.Error("expected error for invalid output format")
	}
}

func TestParseHeaders(t *testing.T) {
	o, err := Parse("nighthawk", []string{"-H", "X-Test:1", "-H", "X-Test:2", "http://example.com"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := o.RequestHeaders.Values("X-Test")
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("RequestHeaders[X-Test] = %v, want [1 2]", got)
	}
}

func TestParseInvalidHeader(t *testing.T) {
	if _, err := Parse("nighthawk", []string{"-H", "no-colon-here", "http://example.com"}); err == nil {
		t.Error("expected error for malformed header flag")
	}
}
