package providers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// StructuredData is the company profile returned by a successful extraction
type StructuredData struct {
	CompanyName       string          `json:"company_name"`
	ExtractedAsOfDate string          `json:"extracted_as_of_date,omitempty"`
	Subsidiaries      []Subsidiary    `json:"subsidiaries"`
	FinancialInfo     []FinancialFact `json:"financial_info"`
	NewsInfo          []NewsItem      `json:"news_info"`
}

// Subsidiary is a direct or indirect subsidiary of the researched company
type Subsidiary struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// FinancialFact is a single reported financial metric
type FinancialFact struct {
	Metric   string `json:"metric"`
	Value    string `json:"value,omitempty"`
	AsOfDate string `json:"as_of_date,omitempty"`
}

// UnmarshalJSON accepts numbers as well as strings for value and as_of_date
func (f *FinancialFact) UnmarshalJSON(b []byte) error {
	type plain FinancialFact
	var aux struct {
		plain
		Value    json.RawMessage `json:"value"`
		AsOfDate json.RawMessage `json:"as_of_date"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	value, err := scalarString(aux.Value)
	if err != nil {
		return eris.Wrap(err, "value")
	}
	asOf, err := scalarString(aux.AsOfDate)
	if err != nil {
		return eris.Wrap(err, "as_of_date")
	}

	*f = FinancialFact(aux.plain)
	f.Value = value
	f.AsOfDate = asOf
	return nil
}

// scalarString renders a JSON string, number or null as text
func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", eris.Errorf("expected a string or number, got %s", Truncate(string(raw), 40))
	}
	return n.String(), nil
}

// NewsItem is a recent development related to the company
type NewsItem struct {
	Headline string `json:"headline"`
	Date     string `json:"date,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// ParseStructuredData decodes raw model output into StructuredData and validates it.
// Markdown code fences around the JSON object are tolerated.
func ParseStructuredData(raw string) (*StructuredData, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, eris.New("empty response")
	}
	if !strings.HasPrefix(body, "{") {
		return nil, eris.Errorf("response is not a JSON object: %s", Truncate(body, 80))
	}

	var data StructuredData
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(&data); err != nil {
		return nil, eris.Wrap(err, "invalid JSON")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, eris.New("invalid JSON: trailing data after object")
	}

	if err := data.Validate(); err != nil {
		return nil, err
	}
	data.normalize()
	return &data, nil
}

// Validate checks the required fields of every record
func (d *StructuredData) Validate() error {
	if strings.TrimSpace(d.CompanyName) == "" {
		return eris.New("company_name is missing")
	}
	for i, s := range d.Subsidiaries {
		if strings.TrimSpace(s.Name) == "" {
			return eris.Errorf("subsidiaries[%d].name is missing", i)
		}
	}
	for i, f := range d.FinancialInfo {
		if strings.TrimSpace(f.Metric) == "" {
			return eris.Errorf("financial_info[%d].metric is missing", i)
		}
	}
	for i, n := range d.NewsInfo {
		if strings.TrimSpace(n.Headline) == "" {
			return eris.Errorf("news_info[%d].headline is missing", i)
		}
	}
	return nil
}

func (d *StructuredData) normalize() {
	if d.Subsidiaries == nil {
		d.Subsidiaries = []Subsidiary{}
	}
	if d.FinancialInfo == nil {
		d.FinancialInfo = []FinancialFact{}
	}
	if d.NewsInfo == nil {
		d.NewsInfo = []NewsItem{}
	}
}

func stripCodeFence(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
