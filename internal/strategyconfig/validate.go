package strategyconfig

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	if len(cfg.Strategies) == 0 {
		return ValidationError{"strategies", "at least one strategy is required"}
	}

	names := map[string]bool{}
	files := map[string]bool{}
	for i, s := range cfg.Strategies {
		field := fmt.Sprintf("strategies[%d]", i)

		if strings.TrimSpace(s.Name) == "" {
			return ValidationError{field + ".name", "required"}
		}
		if names[s.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate name %q", s.Name)}
		}
		names[s.Name] = true

		if strings.TrimSpace(s.SheetURL) == "" {
			return ValidationError{field + ".sheet_url", "required"}
		}

		if s.PositionsFile != "" {
			clean := filepath.Clean(s.PositionsFile)
			if files[clean] {
				return ValidationError{field + ".positions_file", fmt.Sprintf("%q is shared with another strategy", s.PositionsFile)}
			}
			files[clean] = true
		}
	}

	return nil
}

// Check returns recommendations that do not stop the program
func Check(cfg *Config) []Warning {
	var warnings []Warning

	seen := map[string]string{}
	for _, s := range cfg.Strategies {
		if other, ok := seen[s.SheetURL]; ok {
			warnings = append(warnings, Warning{
				Code:    "SHARED_SHEET",
				Message: fmt.Sprintf("%s and %s read the same spreadsheet", other, s.Name),
			})
			continue
		}
		seen[s.SheetURL] = s.Name
	}

	for _, s := range cfg.Strategies {
		if !strings.Contains(s.SheetURL, "/spreadsheets/d/") {
			warnings = append(warnings, Warning{
				Code:    "SHEET_URL_FORMAT",
				Message: fmt.Sprintf("%s: sheet_url does not look like a spreadsheet link", s.Name),
			})
		}
	}

	return warnings
}
