package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		wantDate string
		wantSlot int
		wantErr  bool
	}{
		{name: "first slot", key: "2024-01-01-0", wantDate: "2024-01-01", wantSlot: 0},
		{name: "last slot", key: "2024-01-01-47", wantDate: "2024-01-01", wantSlot: 47},
		{name: "slot 48 out of range", key: "2024-01-01-48", wantErr: true},
		{name: "negative slot", key: "2024-01-01--1", wantErr: true},
		{name: "plus sign", key: "2024-01-01-+3", wantErr: true},
		{name: "missing slot", key: "2024-01-01-", wantErr: true},
		{name: "no separator", key: "20240101", wantErr: true},
		{name: "bad date", key: "2024-13-01-3", wantErr: true},
		{name: "not a number", key: "2024-01-01-ab", wantErr: true},
		{name: "leading zero", key: "2024-01-01-07", wantErr: true},
		{name: "zero padded zero", key: "2024-01-01-00", wantErr: true},
		{name: "unpadded month", key: "2024-1-01-3", wantErr: true},
		{name: "empty", key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, slot, err := ParseDateKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDate, date)
			assert.Equal(t, tt.wantSlot, slot)
			assert.Equal(t, tt.key, DateKey(date, slot))
		})
	}
}

func TestValidateDateRange(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr string
	}{
		{name: "single day", start: "2024-01-01", end: "2024-01-01"},
		{name: "two days", start: "2024-01-01", end: "2024-01-02"},
		{name: "reversed", start: "2024-01-02", end: "2024-01-01", wantErr: "before"},
		{name: "bad start", start: "01/01/2024", end: "2024-01-02", wantErr: "dateStart"},
		{name: "bad end", start: "2024-01-01", end: "2024-02-30", wantErr: "dateEnd"},
		{name: "too long", start: "2024-01-01", end: "2024-12-31", wantErr: "at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDateRange(tt.start, tt.end)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPollDates(t *testing.T) {
	p := &Poll{DateStart: "2024-02-28", DateEnd: "2024-03-01", TimeCreated: time.Unix(100, 0)}
	assert.Equal(t, []string{"2024-02-28", "2024-02-29", "2024-03-01"}, p.Dates())
	assert.True(t, p.Contains("2024-02-29"))
	assert.False(t, p.Contains("2024-03-02"))
	assert.Equal(t, int64(100), p.Summary().TimeCreated)

	twoDays := &Poll{DateStart: "2024-01-01", DateEnd: "2024-01-02"}
	assert.Len(t, twoDays.Dates(), 2)
	assert.Equal(t, 96, len(twoDays.Dates())*SlotsPerDay)
}

func TestFieldsFromOptions(t *testing.T) {
	fields, err := FieldsFromOptions([]string{OptVeilsLines, "snacks", CodeDiscordHandle, CodeFirstTimer, CodeVeils})
	require.NoError(t, err)

	var codes []string
	for _, f := range fields {
		codes = append(codes, f.Code)
	}
	assert.Equal(t, []string{CodeFirstTimer, CodeDiscordHandle, CodeVeils, CodeLines, "snacks"}, codes)
	assert.Equal(t, FieldTypeBoolean, fields[0].Type)
	assert.Equal(t, FieldTypeText, fields[4].Type)

	_, err = FieldsFromOptions([]string{"Bad Code!"})
	assert.Error(t, err)

	_, err = FieldsFromOptions([]string{strings.Repeat("a", 49)})
	assert.Error(t, err)
}

func TestSortFieldsUsesRankingNotInsertion(t *testing.T) {
	fields := []AuxInfoField{
		{ID: 1, Code: "zzz"},
		{ID: 2, Code: CodeLines},
		{ID: 3, Code: "aaa"},
		{ID: 4, Code: CodeFirstTimer},
		{ID: 5, Code: CodeHelpCharCreate},
	}
	SortFields(fields)

	var codes []string
	for _, f := range fields {
		codes = append(codes, f.Code)
	}
	assert.Equal(t, []string{CodeFirstTimer, CodeHelpCharCreate, CodeLines, "zzz", "aaa"}, codes)
}

func TestAuxValueRoundTrip(t *testing.T) {
	boolField := AuxInfoField{Code: CodeFirstTimer, Type: FieldTypeBoolean}
	textField := AuxInfoField{Code: CodeVeils, Type: FieldTypeText}
	numField := AuxInfoField{Code: "age", Type: FieldTypeNumber}

	stored, ok, err := EncodeAuxValue(boolField, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "TRUE", stored)
	assert.Equal(t, true, DecodeAuxValue(FieldTypeBoolean, stored))

	stored, _, err = EncodeAuxValue(boolField, false)
	require.NoError(t, err)
	assert.Equal(t, "FALSE", stored)

	for _, other := range []string{"FALSE", "true", "yes", ""} {
		assert.Equal(t, false, DecodeAuxValue(FieldTypeBoolean, other), other)
	}

	_, ok, err = EncodeAuxValue(textField, "")
	require.NoError(t, err)
	assert.False(t, ok, "empty answers are dropped")

	_, ok, err = EncodeAuxValue(textField, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, ok, err = EncodeAuxValue(textField, "spiders")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "spiders", DecodeAuxValue(FieldTypeText, stored))

	stored, _, err = EncodeAuxValue(numField, float64(3))
	require.NoError(t, err)
	assert.Equal(t, "3", stored)

	_, _, err = EncodeAuxValue(numField, "three")
	assert.Error(t, err)

	_, _, err = EncodeAuxValue(boolField, 12.0)
	assert.Error(t, err)
}

func TestIsSensitive(t *testing.T) {
	assert.True(t, IsSensitive(CodeDiscordHandle))
	assert.True(t, IsSensitive(CodeVeils))
	assert.True(t, IsSensitive(CodeLines))
	assert.False(t, IsSensitive(CodeFirstTimer))
	assert.False(t, IsSensitive("custom"))
}
