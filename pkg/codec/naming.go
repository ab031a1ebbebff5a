package codec

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// RootTag is the envelope element for every ELINK request and response.
const RootTag = "records"

// itemTags maps collection field names to the singular tag ELINK expects for
// each of their items.
var itemTags = map[string]string{
	"authors":             "author",
	"related_identifiers": "detail",
	"records":             "record",
}

// ItemTag returns the tag used for items of the collection field name.
// Names outside the table pass through unchanged.
func ItemTag(name string) string {
	if tag, ok := itemTags[name]; ok {
		return tag
	}
	return name
}

// elementName turns a field name into a valid XML element name. The second
// return value is set when the name could not be repaired and must travel in
// a name attribute on a generic "key" element instead.
func elementName(key string) (string, string) {
	if key != "" && isDigits(key) {
		key = "n" + key
	}
	key = strings.ReplaceAll(key, " ", "_")
	if validName(key) {
		return key, ""
	}
	return "key", key
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validName(s string) bool {
	if s == "" || strings.HasPrefix(strings.ToLower(s), "xml") {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	if !(first == '_' || unicode.IsLetter(first)) {
		return false
	}
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
		case r == '_', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}
