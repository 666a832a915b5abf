package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// ============================================================================
// ResolveColumns Tests
// ============================================================================

func TestResolveColumns(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   ColumnIndex
	}{
		{
			name:   "canonical order",
			header: []string{"name", "identifier", "email"},
			want:   ColumnIndex{ColumnName: 0, ColumnIdentifier: 1, ColumnEmail: 2},
		},
		{
			name:   "case insensitive and reordered",
			header: []string{"EMAIL", " Identifier ", "Name"},
			want:   ColumnIndex{ColumnName: 2, ColumnIdentifier: 1, ColumnEmail: 0},
		},
		{
			name:   "spanish aliases",
			header: []string{"nombre", "ci", "correo"},
			want:   ColumnIndex{ColumnName: 0, ColumnIdentifier: 1, ColumnEmail: 2},
		},
		{
			name:   "extra columns ignored",
			header: []string{"phone", "name", "notes", "identifier", "email"},
			want:   ColumnIndex{ColumnName: 1, ColumnIdentifier: 3, ColumnEmail: 4},
		},
		{
			name:   "first duplicate header wins",
			header: []string{"name", "identifier", "email", "email"},
			want:   ColumnIndex{ColumnName: 0, ColumnIdentifier: 1, ColumnEmail: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveColumns(tt.header)
			if err != nil {
				t.Fatalf("ResolveColumns() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveColumns() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveColumns_Missing(t *testing.T) {
	_, err := ResolveColumns([]string{"Name", "phone"})

	var missing *MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *MissingColumnsError", err)
	}
	want := []string{ColumnIdentifier, ColumnEmail}
	if !reflect.DeepEqual(missing.Missing, want) {
		t.Errorf("Missing = %v, want %v", missing.Missing, want)
	}
}

// ============================================================================
// ValidateRows Tests
// ============================================================================

func TestValidateRows(t *testing.T) {
	header := []string{"name", "identifier", "email"}
	cols := ColumnIndex{ColumnName: 0, ColumnIdentifier: 1, ColumnEmail: 2}
	collegeID := uuid.New()

	tests := []struct {
		name    string
		row     []string
		wantMsg string
	}{
		{"valid row", []string{"Ana Pérez", "1234567LP", "ana@x.com"}, ""},
		{"valid row with padding", []string{"  Ana  ", " 123 ", " ana@x.com "}, ""},
		{"extra trailing field is fine", []string{"Ana", "1234", "ana@x.com", "extra"}, ""},
		{"too few columns", []string{"Ana", "1234"}, MsgColumnCount},
		{"empty name", []string{" ", "1234", "ana@x.com"}, MsgIncompleteFields},
		{"empty identifier", []string{"Ana", "", "ana@x.com"}, MsgIncompleteFields},
		{"empty email", []string{"Ana", "1234", ""}, MsgIncompleteFields},
		{"identifier too short", []string{"Ana", "12", "ana@x.com"}, MsgIdentifierShort},
		{"two multi-byte characters are too short", []string{"Ana", "ñá", "ana@x.com"}, MsgIdentifierShort},
		{"three multi-byte characters are enough", []string{"Ana", "ñáé", "ana@x.com"}, ""},
		{"short identifier checked before email", []string{"Ana", "12", "not-an-email"}, MsgIdentifierShort},
		{"email without at", []string{"Ana", "1234", "ana.x.com"}, MsgInvalidEmail},
		{"email without tld", []string{"Ana", "1234", "ana@x"}, MsgInvalidEmail},
		{"email with space", []string{"Ana", "1234", "ana p@x.com"}, MsgInvalidEmail},
		{"email with no-break space", []string{"Ana", "1234", "ana\u00a0b@x.com"}, MsgInvalidEmail},
		{"email with ideographic space in domain", []string{"Ana", "1234", "ana@x\u3000y.com"}, MsgInvalidEmail},
		{"email with non-ASCII letters", []string{"Ana", "1234", "añá@colegio.bo"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates, errs := ValidateRows(header, [][]string{tt.row}, cols, collegeID)

			if tt.wantMsg == "" {
				if len(errs) != 0 {
					t.Fatalf("unexpected errors: %v", errs)
				}
				if len(candidates) != 1 {
					t.Fatalf("got %d candidates, want 1", len(candidates))
				}
				c := candidates[0]
				if c.Line != 2 || c.CollegeID != collegeID {
					t.Errorf("candidate = %+v, want line 2 in college %s", c, collegeID)
				}
				if c.FullName != strings.TrimSpace(tt.row[0]) || c.Identifier != strings.TrimSpace(tt.row[1]) {
					t.Errorf("candidate fields not trimmed: %+v", c)
				}
				return
			}

			if len(candidates) != 0 {
				t.Errorf("got %d candidates, want 0", len(candidates))
			}
			if len(errs) != 1 || errs[0].Message != tt.wantMsg || errs[0].Line != 2 {
				t.Errorf("errors = %v, want [línea 2: %s]", errs, tt.wantMsg)
			}
		})
	}
}

func TestValidateRows_CollectsEveryError(t *testing.T) {
	header := []string{"name", "identifier", "email"}
	cols := ColumnIndex{ColumnName: 0, ColumnIdentifier: 1, ColumnEmail: 2}
	rows := [][]string{
		{"Ana", "1234", "ana@x.com"},
		{"", "5678", "beto@x.com"},
		{"Carla", "99", "carla@x.com"},
		{"Dario", "4321", "dario@x.com"},
		{"Eva", "8765", "eva"},
	}

	candidates, errs := ValidateRows(header, rows, cols, uuid.New())

	if len(candidates) != 2 {
		t.Errorf("got %d candidates, want 2", len(candidates))
	}
	want := []ValidationError{
		{Line: 3, Message: MsgIncompleteFields},
		{Line: 4, Message: MsgIdentifierShort},
		{Line: 6, Message: MsgInvalidEmail},
	}
	if !reflect.DeepEqual(errs, want) {
		t.Errorf("errors = %v, want %v", errs, want)
	}
	if candidates[1].Line != 5 {
		t.Errorf("second candidate line = %d, want 5", candidates[1].Line)
	}
}
