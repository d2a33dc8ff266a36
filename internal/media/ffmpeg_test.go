package media

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestProbeResult_DurationSeconds(t *testing.T) {
	raw := `{"format":{"format_name":"mp3","duration":"12.48","size":"102400","bit_rate":"128000"}}`

	var p ProbeResult
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if got := p.DurationSeconds(); got != 12.48 {
		t.Errorf("DurationSeconds = %v, want 12.48", got)
	}
	if p.Format.FormatName != "mp3" {
		t.Errorf("FormatName = %q, want mp3", p.Format.FormatName)
	}
}

func TestProbeResult_DurationSeconds_Unknown(t *testing.T) {
	var p ProbeResult
	if got := p.DurationSeconds(); got != 0 {
		t.Errorf("missing duration should read 0, got %v", got)
	}

	p.Format.Duration = "N/A"
	if got := p.DurationSeconds(); got != 0 {
		t.Errorf("unparseable duration should read 0, got %v", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  short  ", 100); got != "short" {
		t.Errorf("truncate should trim, got %q", got)
	}

	long := strings.Repeat("x", 600) + "TAIL"
	got := truncate(long, 512)
	if len(got) != 512 {
		t.Errorf("expected 512 bytes, got %d", len(got))
	}
	if !strings.HasSuffix(got, "TAIL") {
		t.Error("truncate should keep the tail, where ffmpeg puts the actual error")
	}
}
