package domain

// ExtractedField is one labeled value parsed from a responder reply
type ExtractedField struct {
	Label string
	Value string
	Icon  string
}

// Extraction is the result of parsing a responder reply
type Extraction struct {
	Lines  []string         // Display lines, in input order
	Fields []ExtractedField // One entry per label, first-appearance order
}

// Empty reports whether nothing could be parsed
func (e *Extraction) Empty() bool {
	return len(e.Lines) == 0
}

// Value returns the value recorded for label
func (e *Extraction) Value(label string) (string, bool) {
	for _, f := range e.Fields {
		if f.Label == label {
			return f.Value, true
		}
	}
	return "", false
}

// set records a field, overwriting the value of an existing label in place
func (e *Extraction) set(field ExtractedField) {
	for i := range e.Fields {
		if e.Fields[i].Label == field.Label {
			e.Fields[i] = field
			return
		}
	}
	e.Fields = append(e.Fields, field)
}

// Add appends a display line and records its field
func (e *Extraction) Add(field ExtractedField) {
	e.Lines = append(e.Lines, field.Icon+" "+field.Label+": "+field.Value)
	e.set(field)
}
