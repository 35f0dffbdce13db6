package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/titanous/json5"
)

// LoadMappingFile loads and validates a JSON5 mapping file.
func LoadMappingFile(path string) (*MappingFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings file: %w", err)
	}

	var mf MappingFile
	if err := json5.Unmarshal(b, &mf); err != nil {
		return nil, fmt.Errorf("parse mappings json: %w", err)
	}
	if err := mf.Validate(); err != nil {
		return nil, err
	}
	return &mf, nil
}

// Validate rejects configs that would extract nothing or carry bad rules.
func (mf *MappingFile) Validate() error {
	if strings.TrimSpace(mf.EmbeddedJSON) == "" && len(mf.Mappings) == 0 {
		return fmt.Errorf("mappings file has neither embedded_json nor mappings")
	}
	for i, m := range mf.Mappings {
		if strings.TrimSpace(m.Selector) == "" {
			return fmt.Errorf("mapping %d: empty selector", i)
		}
		if strings.TrimSpace(m.Field) == "" {
			return fmt.Errorf("mapping %d: empty field", i)
		}
		switch m.Extract {
		case "text", "json":
		case "attr":
			if m.Attr == "" {
				return fmt.Errorf("mapping %d (%s): extract=attr needs attr", i, m.Field)
			}
		default:
			return fmt.Errorf("mapping %d (%s): unknown extract %q", i, m.Field, m.Extract)
		}
		if _, err := compileOptionalRegex(m.Match, m.Field); err != nil {
			return err
		}
	}
	return nil
}

// DefaultMappingFile reads the company profile from the Next.js data blob
// kununu embeds in every profile page.
func DefaultMappingFile() *MappingFile {
	return &MappingFile{
		EmbeddedJSON: "script#__NEXT_DATA__",
		JSONPath:     "props.pageProps.company",
	}
}
