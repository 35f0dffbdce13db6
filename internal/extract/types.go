package extract

// Mapping represents one extraction rule.
type Mapping struct {
	Selector string `json:"selector"`        // evaluated relative to the document root
	Extract  string `json:"extract"`         // "text", "attr", "json"
	Attr     string `json:"attr,omitempty"`  // used when Extract == "attr"
	Field    string `json:"field"`           // key name in the output record
	Match    string `json:"match,omitempty"` // optional regex filter (applies to extracted text)
	All      bool   `json:"all,omitempty"`   // optional: collect all matches into []any
}

// MappingFile describes a page extraction config.
//
// EmbeddedJSON, when set, selects a <script> element whose body is a JSON
// document (e.g. "script#__NEXT_DATA__"); JSONPath then picks the sub-object
// holding the company profile ("props.pageProps.company"). Mappings add
// fields read from the visible HTML.
type MappingFile struct {
	EmbeddedJSON string    `json:"embedded_json,omitempty"`
	JSONPath     string    `json:"json_path,omitempty"`
	Mappings     []Mapping `json:"mappings,omitempty"`
}
