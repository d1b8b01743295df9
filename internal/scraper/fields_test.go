package scraper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHiddenFields(t *testing.T) {
	page := `<html><body><form>
	<input type="hidden" id="__VIEWSTATE" value="vs-value" />
	<input type="hidden" id="__VIEWSTATEGENERATOR" value="gen-value" />
	<input type="hidden" id="__EVENTVALIDATION" value="ev-value" />
	<input type="text" id="tb_USER_ID" value="" />
	</form></body></html>`

	fields, err := ExtractHiddenFields(page)
	require.NoError(t, err)

	assert.Equal(t, "vs-value", fields.ViewState)
	assert.Equal(t, "gen-value", fields.ViewStateGenerator)
	assert.Equal(t, "ev-value", fields.EventValidation)

	form := fields.FormValues()
	assert.Equal(t, "vs-value", form["__VIEWSTATE"])
	assert.Equal(t, "gen-value", form["__VIEWSTATEGENERATOR"])
	assert.Equal(t, "ev-value", form["__EVENTVALIDATION"])
}

func TestExtractHiddenFieldsMissing(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		missing string
	}{
		{
			name: "no viewstate",
			page: `<input type="hidden" id="__VIEWSTATEGENERATOR" value="g" />
			<input type="hidden" id="__EVENTVALIDATION" value="e" />`,
			missing: "__VIEWSTATE",
		},
		{
			name: "no event validation",
			page: `<input type="hidden" id="__VIEWSTATE" value="v" />
			<input type="hidden" id="__VIEWSTATEGENERATOR" value="g" />`,
			missing: "__EVENTVALIDATION",
		},
		{
			name:    "empty page",
			page:    "<html><body></body></html>",
			missing: "__VIEWSTATE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractHiddenFields(tt.page)
			require.Error(t, err)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, tt.missing, parseErr.Field)
		})
	}
}

func TestExtractHiddenFieldsEmptyValueAllowed(t *testing.T) {
	// A present field with an empty value is still a valid token set; the
	// portal occasionally serves an empty generator
	page := `<input type="hidden" id="__VIEWSTATE" value="v" />
	<input type="hidden" id="__VIEWSTATEGENERATOR" value="" />
	<input type="hidden" id="__EVENTVALIDATION" value="e" />`

	fields, err := ExtractHiddenFields(page)
	require.NoError(t, err)
	assert.Empty(t, fields.ViewStateGenerator)
}
