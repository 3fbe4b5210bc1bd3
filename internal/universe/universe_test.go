package universe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"HiTrade/internal/model"
)

const equityCSV = "SYMBOL,NAME OF COMPANY, SERIES\n" +
	"RELIANCE,Reliance Industries Limited,EQ\n" +
	" tcs ,Tata Consultancy Services Limited,EQ\n" +
	",blank row,EQ\n" +
	"INFY,Infosys Limited,EQ\n"

func TestReadCSV(t *testing.T) {
	got, err := ReadCSV(strings.NewReader(equityCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 equities, got %d: %+v", len(got), got)
	}
	if got[1].Symbol != "tcs" || got[1].Name != "Tata Consultancy Services Limited" {
		t.Errorf("unexpected row %+v", got[1])
	}
}

func TestReadCSV_HeaderCaseInsensitive(t *testing.T) {
	got, err := ReadCSV(strings.NewReader("series, symbol \nEQ,SBIN\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "SBIN" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestReadCSV_MissingSymbolColumn(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("TICKER\nSBIN\n")); err == nil {
		t.Fatal("expected error for missing SYMBOL column")
	}
}

func TestWithSuffix(t *testing.T) {
	got := WithSuffix([]string{"reliance", "TCS.NS", "", "RELIANCE", " infy "}, ".NS")
	want := []string{"RELIANCE.NS", "TCS.NS", "INFY.NS"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestLoad_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "EQUITY_L.csv")
	if err := os.WriteFile(path, []byte(equityCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	u := Load(context.Background(), path, ".NS")
	if u.Fallback {
		t.Fatal("expected catalog, got fallback")
	}
	if fmt.Sprint(u.Tickers) != "[RELIANCE.NS TCS.NS INFY.NS]" {
		t.Errorf("unexpected tickers %v", u.Tickers)
	}
}

func TestLoad_FallsBackToDefaults(t *testing.T) {
	u := Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), ".NS")
	if !u.Fallback || u.Source != "default" {
		t.Fatalf("expected fallback, got %+v", u)
	}
	if len(u.Tickers) != len(DefaultTickers) || u.Tickers[0] != DefaultTickers[0] {
		t.Errorf("expected default tickers, got %v", u.Tickers)
	}
	u.Tickers[0] = "MUTATED"
	if DefaultTickers[0] == "MUTATED" {
		t.Error("fallback must not alias DefaultTickers")
	}
}

func TestLoad_MissingCatalogNotCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.db")
	u := Load(context.Background(), path, ".NS")
	if !u.Fallback {
		t.Fatalf("expected fallback for missing catalog, got %+v", u)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("loading must not create %s (stat err=%v)", path, err)
	}
}

func TestCatalog_ReplaceAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.db")
	cat, err := OpenCatalog(path)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	n, err := cat.Replace(context.Background(), []Equity{
		{Symbol: "sbin", Name: "State Bank of India"},
		{Symbol: "ITC"},
		{Symbol: "SBIN"},
		{Symbol: "LT"},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 stored equities, got %d", n)
	}
	if _, err := cat.Replace(context.Background(), []Equity{{Symbol: "WIPRO"}, {Symbol: "SBIN"}}); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	cat.Close()

	u := Load(context.Background(), path, ".NS")
	if u.Fallback {
		t.Fatal("expected catalog, got fallback")
	}
	if fmt.Sprint(u.Tickers) != "[WIPRO.NS SBIN.NS]" {
		t.Errorf("expected replaced catalog in order, got %v", u.Tickers)
	}
}

func TestSegment(t *testing.T) {
	tickers := make([]string, 40)
	for i := range tickers {
		tickers[i] = fmt.Sprintf("T%02d.NS", i)
	}
	tests := []struct {
		name      string
		wantLen   int
		wantFirst string
	}{
		{"bluechip", 15, "T00.NS"},
		{"midcap", 15, "T15.NS"},
		{"penny", 10, "T30.NS"},
		{"all", 40, "T00.NS"},
		{"Bluechip", 15, "T00.NS"},
	}
	for _, tt := range tests {
		got, err := Segment(tickers, tt.name)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if len(got) != tt.wantLen || got[0] != tt.wantFirst {
			t.Errorf("%s: got %d tickers starting %q", tt.name, len(got), got[0])
		}
	}
}

func TestSegment_ShortUniverse(t *testing.T) {
	got, err := Segment(DefaultTickers, SegmentPenny)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty penny segment for %d tickers, got %v", len(DefaultTickers), got)
	}
	mid, _ := Segment(DefaultTickers, SegmentMidcap)
	if len(mid) != len(DefaultTickers)-15 {
		t.Errorf("expected clipped midcap segment, got %d", len(mid))
	}
}

func TestSegment_Unknown(t *testing.T) {
	if _, err := Segment(DefaultTickers, "Penny Stock"); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
