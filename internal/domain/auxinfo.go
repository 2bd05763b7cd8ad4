package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// FieldType is the value type of an auxiliary poll question
type FieldType string

const (
	FieldTypeText    FieldType = "TEXT"
	FieldTypeNumber  FieldType = "NUMBER"
	FieldTypeBoolean FieldType = "BOOLEAN"
)

// Known auxiliary field codes
const (
	CodeFirstTimer     = "first-timer"
	CodeHelpCharCreate = "help-char-create"
	CodeDiscordHandle  = "discord-handle"
	CodeVeils          = "veils"
	CodeLines          = "lines"
)

// OptVeilsLines is the creation option that expands to the veils and lines fields
const OptVeilsLines = "veils-lines"

// Boolean values are persisted as these literals
const (
	BoolTrue  = "TRUE"
	BoolFalse = "FALSE"
)

// AuxInfoField is an optional question attached to a poll at creation time
type AuxInfoField struct {
	ID          int64     `json:"id"`
	PollID      int64     `json:"-"`
	Code        string    `json:"code"`
	Type        FieldType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

// AuxInfoValue is one member's stored answer to one field
type AuxInfoValue struct {
	UserID int64
	InfoID int64
	Val    string
}

type fieldTemplate struct {
	rank        int
	typ         FieldType
	title       string
	description string
}

// fieldCatalog is the ranking table for known codes. Field order in every
// response follows rank, never insertion order.
var fieldCatalog = map[string]fieldTemplate{
	CodeFirstTimer:     {0, FieldTypeBoolean, "First timer", "Is this your first session?"},
	CodeHelpCharCreate: {1, FieldTypeBoolean, "Character creation help", "Do you need guidance creating your character?"},
	CodeDiscordHandle:  {2, FieldTypeText, "Discord handle", "Your Discord username"},
	CodeVeils:          {3, FieldTypeText, "Veils", "Subjects you are uncomfortable with"},
	CodeLines:          {4, FieldTypeText, "Lines", "Subjects that must not appear"},
}

// customRank places custom codes after every known code
var customRank = len(fieldCatalog)

var sensitiveCodes = map[string]bool{
	CodeDiscordHandle: true,
	CodeVeils:         true,
	CodeLines:         true,
}

var customCodePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,47}$`)

// IsSensitive reports whether answers to the code are private to the member and host
func IsSensitive(code string) bool {
	return sensitiveCodes[code]
}

// FieldRank returns the canonical sort position of a field code
func FieldRank(code string) int {
	if tpl, ok := fieldCatalog[code]; ok {
		return tpl.rank
	}
	return customRank
}

// SortFields orders fields by the canonical code ranking, then by id
func SortFields(fields []AuxInfoField) {
	sort.SliceStable(fields, func(i, j int) bool {
		ri, rj := FieldRank(fields[i].Code), FieldRank(fields[j].Code)
		if ri != rj {
			return ri < rj
		}
		return fields[i].ID < fields[j].ID
	})
}

// FieldsFromOptions expands requested option codes into field definitions.
// Duplicates collapse; unknown codes become free-text custom fields.
func FieldsFromOptions(opts []string) ([]AuxInfoField, error) {
	seen := make(map[string]bool)
	var fields []AuxInfoField

	add := func(code string) {
		if seen[code] {
			return
		}
		seen[code] = true
		if tpl, ok := fieldCatalog[code]; ok {
			fields = append(fields, AuxInfoField{Code: code, Type: tpl.typ, Title: tpl.title, Description: tpl.description})
			return
		}
		fields = append(fields, AuxInfoField{Code: code, Type: FieldTypeText, Title: code})
	}

	for _, opt := range opts {
		switch {
		case opt == OptVeilsLines:
			add(CodeVeils)
			add(CodeLines)
		case fieldCatalog[opt].title != "":
			add(opt)
		case customCodePattern.MatchString(opt):
			add(opt)
		default:
			return nil, fmt.Errorf("invalid field code %q", opt)
		}
	}

	SortFields(fields)
	return fields, nil
}

// EncodeAuxValue converts a submitted answer into its stored text form.
// ok is false when the answer is empty and must not be stored.
func EncodeAuxValue(field AuxInfoField, raw interface{}) (string, bool, error) {
	if raw == nil {
		return "", false, nil
	}

	if field.Type == FieldTypeBoolean {
		switch v := raw.(type) {
		case bool:
			if v {
				return BoolTrue, true, nil
			}
			return BoolFalse, true, nil
		case string:
			if v == "" {
				return "", false, nil
			}
			if v == BoolTrue {
				return BoolTrue, true, nil
			}
			return BoolFalse, true, nil
		default:
			return "", false, fmt.Errorf("field %s expects a boolean", field.Code)
		}
	}

	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", false, nil
		}
		if field.Type == FieldTypeNumber {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return "", false, fmt.Errorf("field %s expects a number", field.Code)
			}
		}
		return v, true, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true, nil
	case bool:
		if field.Type == FieldTypeNumber {
			return "", false, fmt.Errorf("field %s expects a number", field.Code)
		}
		return strconv.FormatBool(v), true, nil
	default:
		return "", false, fmt.Errorf("field %s has an unsupported value", field.Code)
	}
}

// DecodeAuxValue converts a stored answer back per the field type
func DecodeAuxValue(fieldType FieldType, stored string) interface{} {
	if fieldType == FieldTypeBoolean {
		return stored == BoolTrue
	}
	return stored
}
