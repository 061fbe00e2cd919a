// Package schema implements model definitions and model-driven instance
// validation. A model maps field names to typed field descriptors; instances
// are validated structurally (no unknown fields, no missing required fields)
// and then field by field against the closed set of field types.
package schema

// FieldType is the closed set of type tags a model field may declare.
// Referencing a tag outside this set is a configuration error, reported by
// ErrUnknownFieldType rather than silently ignored.
type FieldType string

const (
	TypeBoolean               FieldType = "Boolean"
	TypeBigInteger            FieldType = "BigInteger"
	TypeChar                  FieldType = "Char"
	TypeCommaSeparatedInteger FieldType = "CommaSeparatedInteger"
	TypeDate                  FieldType = "Date"
	TypeDateTime              FieldType = "DateTime"
	TypeDecimal               FieldType = "Decimal"
	TypeDict                  FieldType = "Dict"
	TypeEmail                 FieldType = "Email"
	TypeEmbedded              FieldType = "Embedded"
	TypeEmbeddedList          FieldType = "EmbeddedList"
	TypeFile                  FieldType = "File"
	TypeFilePath              FieldType = "FilePath"
	TypeFloat                 FieldType = "Float"
	TypeImage                 FieldType = "Image"
	TypeInteger               FieldType = "Integer"
	TypeIPAddress             FieldType = "IPAddress"
	TypeIP4Address            FieldType = "IP4Address"
	TypeIP6Address            FieldType = "IP6Address"
	TypeList                  FieldType = "List"
	TypeLongInteger           FieldType = "LongInteger"
	TypeNullBoolean           FieldType = "NullBoolean"
	TypePositiveInteger       FieldType = "PositiveInteger"
	TypePositiveSmallInteger  FieldType = "PositiveSmallInteger"
	TypeSlug                  FieldType = "Slug"
	TypeSmallInteger          FieldType = "SmallInteger"
	TypeText                  FieldType = "Text"
	TypeTime                  FieldType = "Time"
	TypeURL                   FieldType = "URL"
	TypeXML                   FieldType = "XML"
)

// IsValid returns true if the tag is a recognized field type.
func (t FieldType) IsValid() bool {
	switch t {
	case TypeBoolean, TypeBigInteger, TypeChar, TypeCommaSeparatedInteger,
		TypeDate, TypeDateTime, TypeDecimal, TypeDict, TypeEmail,
		TypeEmbedded, TypeEmbeddedList, TypeFile, TypeFilePath, TypeFloat,
		TypeImage, TypeInteger, TypeIPAddress, TypeIP4Address, TypeIP6Address,
		TypeList, TypeLongInteger, TypeNullBoolean, TypePositiveInteger,
		TypePositiveSmallInteger, TypeSlug, TypeSmallInteger, TypeText,
		TypeTime, TypeURL, TypeXML:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether $inc may target the type.
func (t FieldType) IsNumeric() bool {
	switch t {
	case TypeBigInteger, TypeDecimal, TypeFloat, TypeInteger, TypeLongInteger,
		TypePositiveInteger, TypePositiveSmallInteger, TypeSmallInteger:
		return true
	default:
		return false
	}
}

// IsInteger reports whether $bit may target the type.
func (t FieldType) IsInteger() bool {
	switch t {
	case TypeBigInteger, TypeInteger, TypeLongInteger, TypePositiveInteger,
		TypePositiveSmallInteger, TypeSmallInteger:
		return true
	default:
		return false
	}
}

// IsListType reports whether array operators ($push and friends) may target
// the type.
func (t FieldType) IsListType() bool {
	return t == TypeList || t == TypeEmbeddedList
}

// IsEmbedded reports whether values of the type are themselves instances
// validated against their own models.
func (t FieldType) IsEmbedded() bool {
	return t == TypeEmbedded || t == TypeEmbeddedList
}

// String returns the tag text.
func (t FieldType) String() string {
	return string(t)
}
