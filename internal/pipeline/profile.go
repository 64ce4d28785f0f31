package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/keystone-estates/ingest-cli/internal/model"
)

// amounts get grouping separators in the generated document
var profilePrinter = message.NewPrinter(language.English)

// profilePath returns the conventional location of a property's profile
// document inside the vault.
func profilePath(vaultRoot, propertyName string) string {
	return filepath.Join(vaultRoot, propertyName, "profile.md")
}

// GenerateProfile renders the property profile markdown. The profile is a
// derived, rebuildable artifact: regenerating from the same property record
// produces the same document.
func GenerateProfile(p *model.Property) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	b.WriteString("## Overview\n")
	fmt.Fprintf(&b, "- **Address**: %s\n", orNA(p.Address))
	fmt.Fprintf(&b, "- **Country**: %s\n", orNA(p.Country))
	status := string(p.Status)
	if status == "" {
		status = string(model.PropertyStatusActive)
	}
	fmt.Fprintf(&b, "- **Status**: %s\n", status)

	if p.PurchaseDate != "" {
		fmt.Fprintf(&b, "- **Purchase Date**: %s\n", p.PurchaseDate)
	}
	if p.PurchasePrice > 0 {
		profilePrinter.Fprintf(&b, "- **Purchase Price**: %.0f\n", p.PurchasePrice)
	}
	if p.CurrentValue > 0 {
		profilePrinter.Fprintf(&b, "- **Current Valuation**: %.0f\n", p.CurrentValue)
	}

	b.WriteString("\n## IDs & Metadata\n")
	if p.MunicipalTaxID != "" {
		fmt.Fprintf(&b, "- **Municipal Tax ID**: %s\n", p.MunicipalTaxID)
	}
	if p.SocietyID != "" {
		fmt.Fprintf(&b, "- **Society ID**: %s\n", p.SocietyID)
	}
	if p.ElectricityID != "" {
		fmt.Fprintf(&b, "- **Electricity ID**: %s\n", p.ElectricityID)
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "- **Notes**: %s\n", p.Notes)
	}

	return b.String()
}

// WriteProfile regenerates the profile document wholesale.
func WriteProfile(vaultRoot string, p *model.Property) error {
	path := profilePath(vaultRoot, p.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "profile: mkdir for %s", p.Name)
	}
	if err := os.WriteFile(path, []byte(GenerateProfile(p)), 0o644); err != nil {
		return eris.Wrapf(err, "profile: write for %s", p.Name)
	}
	return nil
}

const extractionsHeading = "## Recent Extractions"

// AppendExtractionFact appends one extracted-fact line to the profile's
// Recent Extractions section. Duplicate facts are detected by exact string
// match against the current content. A missing profile is not an error;
// the next regeneration creates it.
func AppendExtractionFact(vaultRoot, propertyName, category string, result *model.ExtractionResult) error {
	if result == nil || (result.Amount == "" && result.Date == "") {
		return nil
	}

	path := profilePath(vaultRoot, propertyName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrapf(err, "profile: read for %s", propertyName)
	}
	content := string(data)

	amount := ""
	if result.Amount != "" {
		amount = "Amount: " + result.Amount
	}
	fact := fmt.Sprintf("- **Extracted %s**: %s | Date: %s | Ref: %s",
		strings.ToUpper(category), amount, result.Date, filepath.Base(result.FileName))

	if strings.Contains(content, fact) {
		return nil
	}

	if strings.Contains(content, extractionsHeading) {
		content = strings.Replace(content, extractionsHeading, extractionsHeading+"\n"+fact, 1)
	} else {
		content += "\n\n" + extractionsHeading + "\n" + fact
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return eris.Wrapf(err, "profile: append fact for %s", propertyName)
	}
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
