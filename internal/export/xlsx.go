// Package export writes resolved organizations to spreadsheet files.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/lodgescout/resolver-cli/internal/model"
)

var headers = []string{"Name", "Website", "Email", "Phone", "Address"}

// WriteXLSX writes one sheet named after the locality with one row per
// organization.
func WriteXLSX(path, locality string, orgs []model.Organization) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName(locality))
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range headers {
		header.AddCell().SetString(h)
	}

	for _, org := range orgs {
		row := sheet.AddRow()
		row.AddCell().SetString(org.Name)
		row.AddCell().SetString(org.Website)
		row.AddCell().SetString(org.Email)
		row.AddCell().SetString(org.Phone)
		row.AddCell().SetString(org.Address)
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// sheetName clamps the locality to Excel's 31-character sheet-name limit.
func sheetName(locality string) string {
	if locality == "" {
		return "organizations"
	}
	runes := []rune(locality)
	if len(runes) > 31 {
		runes = runes[:31]
	}
	return string(runes)
}
