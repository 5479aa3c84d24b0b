package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/lodgescout/resolver-cli/internal/model"
)

func TestWriteXLSX_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	orgs := []model.Organization{
		{
			Name:    "Приморская",
			Website: "https://hotel.ru",
			Email:   "info@hotel.ru",
			Address: "г. Сочи, ул. Морская, д. 5",
		},
	}
	require.NoError(t, WriteXLSX(path, "сочи", orgs))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "сочи", sheet.Name)
	require.GreaterOrEqual(t, len(sheet.Rows), 2)
	assert.Equal(t, "Name", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Приморская", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "info@hotel.ru", sheet.Rows[1].Cells[2].String())
}

func TestWriteXLSX_EmptyOrganizations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteXLSX(path, "сочи", nil))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	assert.Len(t, f.Sheets[0].Rows, 1)
}

func TestSheetName_Clamped(t *testing.T) {
	long := "очень длинное название населённого пункта"
	assert.Len(t, []rune(sheetName(long)), 31)
	assert.Equal(t, "organizations", sheetName(""))
}
