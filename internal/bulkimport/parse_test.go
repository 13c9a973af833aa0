package bulkimport

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	t.Run("maps headers in any order and ignores unknown columns", func(t *testing.T) {
		input := strings.Join([]string{
			"Supplier Name,Product ID,Add Quantity,Cost Per Unit,Ignored",
			"Polar Supply Co,12,100,49.99,x",
		}, "\n")
		rows, err := ParseCSV(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, 1, rows[0].Line)
		require.Equal(t, "12", rows[0].ProductID)
		require.Equal(t, "100", rows[0].Quantity)
		require.Equal(t, "49.99", rows[0].CostPerUnit)
		require.Equal(t, "Polar Supply Co", rows[0].SupplierName)
	})

	t.Run("skips blank lines but keeps numbering", func(t *testing.T) {
		input := "Product ID,Add Quantity\n1,5\n,\n2,6\n"
		rows, err := ParseCSV(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, rows, 2)
		require.Equal(t, 1, rows[0].Line)
		require.Equal(t, 3, rows[1].Line)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader(""))
		require.ErrorIs(t, err, ErrEmptyFile)

		_, err = ParseCSV(strings.NewReader("Product ID,Add Quantity\n"))
		require.ErrorIs(t, err, ErrEmptyFile)
	})
}

func TestParseInt(t *testing.T) {
	for cell, want := range map[string]int64{
		"100":   100,
		"1,000": 1000,
		"50.0":  50,
		" 7 ":   7,
	} {
		v, err := parseInt(cell)
		require.NoError(t, err, cell)
		require.Equal(t, want, v, cell)
	}

	_, err := parseInt("12.5")
	require.Error(t, err)
	_, err = parseInt("abc")
	require.Error(t, err)
}

func TestParseFloat(t *testing.T) {
	for cell, want := range map[string]float64{
		"49.99":     49.99,
		"$1,249.50": 1249.50,
		"₱80":       80,
	} {
		v, err := parseFloat(cell)
		require.NoError(t, err, cell)
		require.InDelta(t, want, v, 1e-9, cell)
	}

	_, err := parseFloat("n/a")
	require.Error(t, err)
}

func TestParseDate(t *testing.T) {
	loc := time.UTC

	t.Run("calendar layouts", func(t *testing.T) {
		for _, cell := range []string{"2026-03-15", "2026/03/15", "03/15/2026", "3/15/2026"} {
			d, err := parseDate(cell, loc)
			require.NoError(t, err, cell)
			require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, loc), d, cell)
		}
	})

	t.Run("spreadsheet serial numbers", func(t *testing.T) {
		// 2026-03-15 is serial 46096 counted from the 1899-12-30 epoch.
		d, err := parseDate("46096", loc)
		require.NoError(t, err)
		require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, loc), d)
	})

	t.Run("serials after the phantom 1900 leap day stay aligned", func(t *testing.T) {
		// Serial 61 is 1900-03-01 in the source format, which counts a
		// February 29 1900 that never existed.
		d, err := parseDate("61", loc)
		require.NoError(t, err)
		require.Equal(t, time.Date(1900, 3, 1, 0, 0, 0, 0, loc), d)
	})

	t.Run("empty cell is a zero time", func(t *testing.T) {
		d, err := parseDate("", loc)
		require.NoError(t, err)
		require.True(t, d.IsZero())
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := parseDate("soon", loc)
		require.Error(t, err)
	})
}
