package universe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Equity is one catalog row.
type Equity struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`
}

// LoadCSV reads an exchange reference file such as NSE's EQUITY_L.csv.
func LoadCSV(path string) ([]Equity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses rows with a SYMBOL column and an optional NAME OF COMPANY column.
// Header matching ignores case and surrounding spaces.
func ReadCSV(r io.Reader) ([]Equity, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read universe header: %w", err)
	}
	symCol, nameCol := -1, -1
	for i, h := range header {
		switch strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "SYMBOL":
			symCol = i
		case "NAME OF COMPANY", "NAME":
			nameCol = i
		}
	}
	if symCol < 0 {
		return nil, errors.New("universe csv has no SYMBOL column")
	}

	var out []Equity
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read universe line %d: %w", line, err)
		}
		if symCol >= len(rec) {
			continue
		}
		sym := strings.TrimSpace(rec[symCol])
		if sym == "" {
			continue
		}
		e := Equity{Symbol: sym}
		if nameCol >= 0 && nameCol < len(rec) {
			e.Name = strings.TrimSpace(rec[nameCol])
		}
		out = append(out, e)
	}
	return out, nil
}
