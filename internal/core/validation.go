package core

// validation.go maps the header to column positions and validates data rows.
//
// Validation happens at two levels:
//  1. Header validation: every required column must be present, otherwise the
//     import stops before any row is read (MissingColumnsError).
//  2. Row validation: each row is checked in a fixed order and the first
//     failing check produces its ValidationError. All rows are walked so the
//     caller sees every problem in one pass.

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Canonical required column names.
const (
	ColumnName       = "name"
	ColumnIdentifier = "identifier"
	ColumnEmail      = "email"
)

// RequiredColumns lists the canonical columns every import file must carry.
var RequiredColumns = []string{ColumnName, ColumnIdentifier, ColumnEmail}

// columnAliases lists accepted header spellings per canonical column, lowercase.
var columnAliases = map[string][]string{
	ColumnName:       {"name", "nombre", "nombre_completo", "full_name"},
	ColumnIdentifier: {"identifier", "ci", "carnet", "documento"},
	ColumnEmail:      {"email", "correo", "correo_electronico"},
}

// MinIdentifierLength is the shortest identifier accepted, in characters.
const MinIdentifierLength = 3

// emailPart excludes every Unicode space, not only the ASCII ones RE2's \s covers.
const emailPart = `[^\s\v\p{Z}\x{FEFF}@]+`

var emailPattern = regexp.MustCompile(`^` + emailPart + `@` + emailPart + `\.` + emailPart + `$`)

// Row validation and dedup messages. These are shown to operators verbatim.
const (
	MsgColumnCount      = "número de columnas incorrecto"
	MsgIncompleteFields = "campos incompletos"
	MsgIdentifierShort  = "identificador demasiado corto"
	MsgInvalidEmail     = "email no válido"
	MsgIdentifierExists = "identificador ya existe en la base de datos"
	MsgDuplicateInFile  = "identificador duplicado en el archivo"
)

// ColumnIndex maps canonical column names to their position in a row.
type ColumnIndex map[string]int

// ResolveColumns builds the column index for header. Matching is
// case-insensitive and order-independent; when a header repeats a name the
// first position wins.
func ResolveColumns(header []string) (ColumnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := positions[key]; !seen {
			positions[key] = i
		}
	}

	idx := make(ColumnIndex, len(RequiredColumns))
	var missing []string
	for _, col := range RequiredColumns {
		pos, ok := lookupAlias(positions, col)
		if !ok {
			missing = append(missing, col)
			continue
		}
		idx[col] = pos
	}

	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}
	return idx, nil
}

func lookupAlias(positions map[string]int, col string) (int, bool) {
	for _, alias := range columnAliases[col] {
		if pos, ok := positions[alias]; ok {
			return pos, true
		}
	}
	return 0, false
}

// ValidateRows validates every data row. rows[0] is the first line after the
// header and is reported as line 2.
func ValidateRows(header []string, rows [][]string, cols ColumnIndex, collegeID uuid.UUID) ([]CandidateRecord, []ValidationError) {
	var (
		candidates []CandidateRecord
		errs       []ValidationError
	)

	for i, row := range rows {
		line := i + 2

		rec, msg := validateRow(row, len(header), cols)
		if msg != "" {
			errs = append(errs, ValidationError{Line: line, Message: msg})
			continue
		}

		rec.Line = line
		rec.CollegeID = collegeID
		candidates = append(candidates, rec)
	}

	return candidates, errs
}

// validateRow applies the row checks in order and returns the first failure.
func validateRow(row []string, headerLen int, cols ColumnIndex) (CandidateRecord, string) {
	if len(row) < headerLen {
		return CandidateRecord{}, MsgColumnCount
	}

	rec := CandidateRecord{
		FullName:   strings.TrimSpace(row[cols[ColumnName]]),
		Identifier: strings.TrimSpace(row[cols[ColumnIdentifier]]),
		Email:      strings.TrimSpace(row[cols[ColumnEmail]]),
	}

	switch {
	case rec.FullName == "" || rec.Identifier == "" || rec.Email == "":
		return CandidateRecord{}, MsgIncompleteFields
	case utf8.RuneCountInString(rec.Identifier) < MinIdentifierLength:
		return CandidateRecord{}, MsgIdentifierShort
	case !emailPattern.MatchString(rec.Email):
		return CandidateRecord{}, MsgInvalidEmail
	}

	return rec, ""
}
