package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/keystone-estates/ingest-cli/internal/model"
)

// MetadataRow is one parsed data row from the markdown property table.
type MetadataRow struct {
	RawName        string
	MunicipalTaxID string
	SocietyID      string
	ElectricityID  string
	RentInfo       string
	LoanInfo       string
}

// ParseMetadataTable parses the markdown-table property export. The table
// starts at a header row beginning "| Property |"; header, separator, and
// totals rows are skipped. Returns an empty slice when the file is missing.
func ParseMetadataTable(path string) ([]MetadataRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "metadata: read %s", path)
	}

	var rows []MetadataRow
	inTable := false
	lines := strings.Split(string(data), "\n")
	for idx := 0; idx < len(lines); idx++ {
		line := strings.TrimSpace(lines[idx])

		if strings.HasPrefix(line, "| Property |") {
			inTable = true
			idx++ // separator row
			continue
		}
		if !inTable || !strings.HasPrefix(line, "|") {
			continue
		}

		var cells []string
		for _, c := range strings.Split(line, "|") {
			c = strings.TrimSpace(c)
			if c != "" {
				cells = append(cells, c)
			}
		}
		if len(cells) < 2 {
			continue
		}

		rawName := strings.ReplaceAll(cells[0], "**", "")
		switch strings.ToLower(rawName) {
		case "totals", "property":
			continue
		}

		row := MetadataRow{RawName: rawName}
		// Cells: [Property, Municipal Tax, Society, Electricity, Rent, Value/Loan]
		if len(cells) > 1 {
			first, _, _ := strings.Cut(cells[1], "\n")
			row.MunicipalTaxID = strings.NewReplacer("[", "", "]", "").Replace(first)
		}
		if len(cells) > 2 {
			row.SocietyID = cells[2]
		}
		if len(cells) > 3 {
			row.ElectricityID = cells[3]
		}
		if len(cells) > 4 {
			row.RentInfo = cells[4]
		}
		if len(cells) > 5 {
			row.LoanInfo = cells[5]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// syncMetadata merges parsed metadata rows into matched property records
// and regenerates each matched property's profile document from scratch.
func (i *Ingestor) syncMetadata(ctx context.Context) error {
	path := i.cfg.Paths.MetadataExport
	if path == "" {
		return nil
	}

	rows, err := ParseMetadataTable(path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		zap.L().Info("metadata: no export rows found, skipping sync")
		return nil
	}

	props, err := i.store.ListActiveProperties(ctx)
	if err != nil {
		return eris.Wrap(err, "metadata: list properties")
	}

	for _, row := range rows {
		matched := FindPropertyMatch(row.RawName, props)
		if matched == nil {
			continue
		}
		zap.L().Info("metadata: updating property",
			zap.String("property", matched.Name),
			zap.String("row", row.RawName),
		)

		meta := model.PropertyMetadata{
			MunicipalTaxID: row.MunicipalTaxID,
			SocietyID:      row.SocietyID,
			ElectricityID:  row.ElectricityID,
			Notes:          fmt.Sprintf("Rent: %s | Loan: %s", row.RentInfo, row.LoanInfo),
		}
		if err := i.store.UpdatePropertyMetadata(ctx, matched.ID, meta); err != nil {
			zap.L().Warn("metadata: update failed",
				zap.String("property", matched.Name), zap.Error(err))
			continue
		}

		updated := *matched
		updated.MunicipalTaxID = meta.MunicipalTaxID
		updated.SocietyID = meta.SocietyID
		updated.ElectricityID = meta.ElectricityID
		updated.Notes = meta.Notes
		if err := WriteProfile(i.cfg.Paths.VaultRoot, &updated); err != nil {
			zap.L().Warn("metadata: profile regenerate failed",
				zap.String("property", matched.Name), zap.Error(err))
		}
	}
	return nil
}
