package models

import "testing"

func TestNormalizeSymbol(t *testing.T) {
	if got := NormalizeSymbol("  ggal.ba "); got != "GGAL.BA" {
		t.Errorf("expected GGAL.BA, got %q", got)
	}
}

func TestValidSymbol(t *testing.T) {
	for _, s := range []string{"AAPL", "brk.b", "^MERV", "BTC-USD", "YPFD=X"} {
		if !ValidSymbol(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []string{"", "   ", "A B", "$AAPL", "AAPL;DROP"} {
		if ValidSymbol(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}
