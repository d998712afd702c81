package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// importMaterials reads (aula_id, materiais) rows from the first sheet of path and replaces each aula's
// materials with the parsed comma-joined value. A leading header row is skipped.
func (cli *commandLine) importMaterials(ctx context.Context, path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return errors.Wrap(err, "opening spreadsheet")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return errors.New("spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return errors.Wrap(err, "reading rows")
	}

	var imported int
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		aulaID := strings.TrimSpace(row[0])
		if aulaID == "" || (i == 0 && strings.EqualFold(aulaID, "aula_id")) {
			continue
		}
		var legacy string
		if len(row) > 1 {
			legacy = row[1]
		}
		materials, err := cli.school.ImportLegacyMaterials(ctx, aulaID, legacy)
		if err != nil {
			return errors.Wrapf(err, "row %d", i+1)
		}
		cli.logger.Debug("materials imported", map[string]interface{}{"aula": aulaID, "count": len(materials)})
		imported++
	}
	cli.logger.Info("legacy materials imported", map[string]interface{}{"aulas": imported})
	return nil
}
