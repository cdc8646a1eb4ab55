package upload

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"careplan/internal/apperror"
	"careplan/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	input := "\ufeffCare Setting, Care Activities ,Registered Nurse\n" +
		"Acute Care,Administer Medication,Y\n" +
		",,\n" +
		"Community Clinic,Dress Wounds\n"

	sheet, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"Care Setting", "Care Activities", "Registered Nurse"}, sheet.Headers)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, 2, sheet.Rows[0].Number)
	assert.Equal(t, "Y", sheet.Rows[0].Get("Registered Nurse"))
	assert.Equal(t, 4, sheet.Rows[1].Number, "blank rows keep their spreadsheet numbering")
	assert.Equal(t, "", sheet.Rows[1].Get("Registered Nurse"))
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	appErr, ok := apperror.From(err)
	require.True(t, ok)
	assert.Equal(t, apperror.TypeFailedFieldValidation, appErr.Type)
}

func TestParseXLSX_RoundTrip(t *testing.T) {
	data, err := WriteXLSX("Care Activities", []string{HeaderCareSetting, HeaderCareActivity}, [][]string{
		{"Acute Care", "Administer Medication"},
		{"Community Clinic", "Dress Wounds"},
	})
	require.NoError(t, err)

	sheet, err := ParseXLSX(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{HeaderCareSetting, HeaderCareActivity}, sheet.Headers)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Dress Wounds", sheet.Rows[1].Get(HeaderCareActivity))
	assert.Equal(t, 3, sheet.Rows[1].Number)
}

func TestParse_UnsupportedExtension(t *testing.T) {
	_, err := Parse("activities.pdf", strings.NewReader("%PDF"))
	appErr, ok := apperror.From(err)
	require.True(t, ok)
	assert.Equal(t, apperror.TypeUnsupportedFile, appErr.Type)
	assert.Equal(t, http.StatusUnsupportedMediaType, appErr.Status)
}

func TestFromDTO(t *testing.T) {
	sheet := FromDTO(dto.CareActivityBulkDTO{
		Headers: []string{" Care Setting ", "Care Activities"},
		Data: []dto.BulkRowDTO{
			{RowData: map[string]string{"Care Setting": "Acute Care", "Care Activities": "Feeding"}},
			{RowData: map[string]string{"Care Setting": " "}},
			{RowData: map[string]string{"Care Setting": "Home", "Care Activities": "Bathing"}},
		},
	})
	assert.Equal(t, []string{"Care Setting", "Care Activities"}, sheet.Headers)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, 4, sheet.Rows[1].Number)
}

func TestParsePermission(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantSet bool
		wantOK  bool
	}{
		{in: "Y", want: "Y", wantSet: true, wantOK: true},
		{in: " lc ", want: "LC", wantSet: true, wantOK: true},
		{in: "x", wantOK: true},
		{in: "", wantOK: true},
		{in: "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, set, ok := ParsePermission(tt.in)
			assert.Equal(t, tt.want, string(p))
			assert.Equal(t, tt.wantSet, set)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestParseActivityType(t *testing.T) {
	for _, in := range []string{"Restricted Activity", "RESTRICTED_ACTIVITY", "restricted-activity"} {
		got, ok := ParseActivityType(in)
		assert.True(t, ok, in)
		assert.Equal(t, "RESTRICTED_ACTIVITY", string(got))
	}
	_, ok := ParseActivityType("Sometimes")
	assert.False(t, ok)
}
