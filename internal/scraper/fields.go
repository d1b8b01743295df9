package scraper

import (
	"strings"

	"golang.org/x/net/html"
)

// ASP.NET webforms hidden input identifiers. All three must accompany
// every form POST; the server rotates their values on each response.
const (
	fieldViewState          = "__VIEWSTATE"
	fieldEventValidation    = "__EVENTVALIDATION"
	fieldViewStateGenerator = "__VIEWSTATEGENERATOR"
)

// HiddenFields holds the anti-forgery tokens extracted from a portal page.
// A set is valid for exactly one subsequent POST.
type HiddenFields struct {
	ViewState          string
	EventValidation    string
	ViewStateGenerator string
}

// FormValues returns the tokens keyed by their form field names
func (f HiddenFields) FormValues() map[string]string {
	return map[string]string{
		fieldViewState:          f.ViewState,
		fieldEventValidation:    f.EventValidation,
		fieldViewStateGenerator: f.ViewStateGenerator,
	}
}

// ExtractHiddenFields pulls the three webforms tokens out of an HTML page.
// Returns a *ParseError naming the first missing field.
func ExtractHiddenFields(pageHTML string) (HiddenFields, error) {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		// html.Parse is lenient; an error here means truncated input
		return HiddenFields{}, &ParseError{Field: fieldViewState}
	}

	values := map[string]string{}
	collectInputValues(doc, values)

	var fields HiddenFields
	for _, want := range []struct {
		id   string
		dest *string
	}{
		{fieldViewState, &fields.ViewState},
		{fieldEventValidation, &fields.EventValidation},
		{fieldViewStateGenerator, &fields.ViewStateGenerator},
	} {
		v, ok := values[want.id]
		if !ok {
			return HiddenFields{}, &ParseError{Field: want.id}
		}
		*want.dest = v
	}

	return fields, nil
}

// collectInputValues walks the document and records the value attribute of
// every input element, keyed by id
func collectInputValues(n *html.Node, out map[string]string) {
	if n.Type == html.ElementNode && n.Data == "input" {
		var id, value string
		for _, attr := range n.Attr {
			switch attr.Key {
			case "id":
				id = attr.Val
			case "value":
				value = attr.Val
			}
		}
		if id != "" {
			out[id] = value
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectInputValues(child, out)
	}
}
