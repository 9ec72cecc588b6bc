package cli

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/animerec/internal/models"
)

// ExportSheet is the worksheet name used by ExportXLSX.
const ExportSheet = "Catalog"

var exportHeader = []interface{}{
	"ID", "Title", "English Title", "Japanese Title", "Synonyms", "Genres", "Synopsis", "Image URL",
}

// ExportXLSX writes the catalog to an Excel workbook at path, one record per row
// after a header row, in catalog order.
func ExportXLSX(path string, records models.CatalogSet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(ExportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.ID, r.Title, r.TitleEnglish, r.TitleJapanese, r.TitleSynonyms, r.Genres, r.Synopsis, r.ImageURL,
		}
		if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(ExportSheet, "B", "D", 32); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
