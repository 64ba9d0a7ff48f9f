package alert

import (
	"strings"
	"testing"

	"rektflow/internal/classify"
	"rektflow/internal/model"
)

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0.00000812, "0.00000812"},
		{0.004512, "0.004512"},
		{0.4512, "0.4512"},
		{23.456, "23.46"},
		{64230.7, "64231"},
	}
	for _, c := range cases {
		if got := formatPrice(c.in); got != c.want {
			t.Fatalf("formatPrice(%v): got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGroupThousands(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"123", "123"},
		{"1234", "1,234"},
		{"1234567", "1,234,567"},
		{"1234.56", "1,234.56"},
		{"-98765", "-98,765"},
	}
	for _, c := range cases {
		if got := groupThousands(c.in); got != c.want {
			t.Fatalf("groupThousands(%q): got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatMessage(t *testing.T) {
	task := model.AlertTask{
		Symbol:   "SOLUSDT",
		Side:     model.SideLong,
		TotalUSD: 1234567,
		Price:    151.23,
	}
	oi := 3.21
	funding := 0.0125

	msg := FormatMessage(task, classify.TierHigh, classify.LabelBuildUp, &oi, &funding)

	for _, want := range []string{
		"REKT ALERT [HIGH]",
		"LONGS REKT",
		"SOLUSDT",
		"$1,234,567",
		"$151.23",
		"+3.21%",
		"+0.0125%",
		"POSITION BUILD-UP",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatMessageMissingMetrics(t *testing.T) {
	task := model.AlertTask{Symbol: "DOGEUSDT", Side: model.SideShort, TotalUSD: 600000, Price: 0.31}

	msg := FormatMessage(task, classify.TierMedium, classify.LabelNoData, nil, nil)

	if !strings.Contains(msg, "⚠️ N/A") {
		t.Fatalf("expected N/A placeholder for missing oi:\n%s", msg)
	}
	if strings.Contains(msg, "Funding:") {
		t.Fatalf("funding line should be omitted when missing:\n%s", msg)
	}
	if !strings.Contains(msg, "SHORTS REKT") || !strings.Contains(msg, "UNKNOWN") {
		t.Fatalf("unexpected message:\n%s", msg)
	}
}
