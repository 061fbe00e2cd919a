package schema

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	emailRe = regexp.MustCompile(`(?i)^[-!#$%&'*+/=?^_` + "`" + `{}|~0-9A-Z]+(\.[-!#$%&'*+/=?^_` + "`" + `{}|~0-9A-Z]+)*@((?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+[A-Z]{2,6}\.?$)|^\[(25[0-5]|2[0-4]\d|[0-1]?\d?\d)(\.(25[0-5]|2[0-4]\d|[0-1]?\d?\d)){3}\]$`)
	slugRe  = regexp.MustCompile(`^[-\w]+$`)
	csvRe   = regexp.MustCompile(`^[\d,]+$`)
	urlRe   = regexp.MustCompile(`(?i)^(?:http|ftp)s?://(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+(?:[A-Z]{2,6}\.?|[A-Z0-9-]{2,}\.?)|localhost|\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})(?::\d+)?(?:/?|[/?]\S+)$`)
)

// ValidateScalar checks a value against a non-embedded field type. Embedded
// and EmbeddedList dispatch through Validator since they need the embedded
// model lookup. An unrecognized tag is ErrUnknownFieldType: a schema defect,
// not a validation failure.
func ValidateScalar(t FieldType, value any) error {
	switch t {
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return Invalid("not a bool")
		}
	case TypeNullBoolean:
		if value == nil {
			return nil
		}
		if _, ok := value.(bool); !ok {
			return Invalid("not a nullboolean")
		}
	case TypeChar, TypeText, TypeFilePath, TypeFile, TypeImage:
		if _, ok := value.(string); !ok {
			return Invalid("%v is not a string", value)
		}
	case TypeInteger:
		if _, ok := asInt(value); !ok {
			return Invalid("not an integer")
		}
	case TypePositiveInteger:
		n, ok := asInt(value)
		if !ok {
			return Invalid("not a positive integer")
		}
		if n < 0 {
			return Invalid("positive integer cannot be negative")
		}
	case TypeSmallInteger:
		n, ok := asInt(value)
		if !ok || n < -32768 || n > 32767 {
			return Invalid("not a small integer")
		}
	case TypePositiveSmallInteger:
		n, ok := asInt(value)
		if !ok || n < 0 || n > 32767 {
			return Invalid("not a positive small integer")
		}
	case TypeBigInteger, TypeLongInteger:
		if _, ok := asInt(value); !ok {
			return Invalid("not a big integer")
		}
	case TypeFloat:
		switch value.(type) {
		case float64, float32:
		default:
			return Invalid("not a float")
		}
	case TypeDecimal:
		if !isDecimal(value) {
			return Invalid("not a decimal")
		}
	case TypeDate:
		if !isTimeValue(value, "2006-01-02") {
			return Invalid("not a date")
		}
	case TypeDateTime:
		if !isTimeValue(value, time.RFC3339, time.RFC3339Nano) {
			return Invalid("not a datetime")
		}
	case TypeTime:
		if !isTimeValue(value, "15:04:05", "15:04") {
			return Invalid("not a time")
		}
	case TypeDict:
		if _, ok := value.(map[string]any); !ok {
			return Invalid("not a dict")
		}
	case TypeList:
		if _, ok := value.([]any); !ok {
			return Invalid("not a list")
		}
	case TypeEmail:
		s, ok := value.(string)
		if !ok || !emailRe.MatchString(s) {
			return Invalid("enter a valid e-mail address")
		}
	case TypeSlug:
		s, ok := value.(string)
		if !ok || !slugRe.MatchString(s) {
			return Invalid("enter a valid slug of letters, numbers, underscores or hyphens")
		}
	case TypeCommaSeparatedInteger:
		s, ok := value.(string)
		if !ok || !csvRe.MatchString(s) {
			return Invalid("enter only digits separated by commas")
		}
	case TypeURL:
		s, ok := value.(string)
		if !ok || !urlRe.MatchString(s) {
			return Invalid("enter a valid URL")
		}
	case TypeIPAddress:
		s, ok := value.(string)
		if !ok || net.ParseIP(s) == nil {
			return Invalid("enter a valid IPv4 or IPv6 address")
		}
	case TypeIP4Address:
		s, ok := value.(string)
		if !ok {
			return Invalid("enter a valid IPv4 address")
		}
		ip := net.ParseIP(s)
		if ip == nil || ip.To4() == nil || strings.Contains(s, ":") {
			return Invalid("enter a valid IPv4 address")
		}
	case TypeIP6Address:
		s, ok := value.(string)
		if !ok {
			return Invalid("enter a valid IPv6 address")
		}
		ip := net.ParseIP(s)
		if ip == nil || !strings.Contains(s, ":") {
			return Invalid("enter a valid IPv6 address")
		}
	case TypeXML:
		s, ok := value.(string)
		if !ok || !isWellFormedXML(s) {
			return Invalid("not well formed")
		}
	case TypeEmbedded, TypeEmbeddedList:
		return fmt.Errorf("%s requires embedded models; validate through Validator", t)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFieldType, t)
	}
	return nil
}

// asInt accepts anything convertible to a base-10 integer: Go integer kinds,
// integral floats (the JSON default number type), and numeric strings.
func asInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint32:
		return int64(v), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, false
		}
		return int64(v), true
	case float32:
		return asInt(float64(v))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// IsNumber reports whether the value is numeric, mirroring what $inc accepts
// as an argument.
func IsNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// AbsNumber returns the absolute value of a numeric argument, preserving its
// integer-versus-float shape.
func AbsNumber(value any) any {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return -v
		}
		return v
	case int64:
		if v < 0 {
			return -v
		}
		return v
	case int32:
		return AbsNumber(int64(v))
	case float64:
		return math.Abs(v)
	case float32:
		return math.Abs(float64(v))
	default:
		return value
	}
}

// isDecimal accepts numbers and strings holding decimal notation. Stored
// decimals travel as strings to avoid float drift.
func isDecimal(value any) bool {
	switch v := value.(type) {
	case float64, float32, int, int64, int32:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil
	default:
		return false
	}
}

func isTimeValue(value any, layouts ...string) bool {
	switch v := value.(type) {
	case time.Time:
		return true
	case string:
		for _, layout := range layouts {
			if _, err := time.Parse(layout, v); err == nil {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func isWellFormedXML(s string) bool {
	decoder := xml.NewDecoder(strings.NewReader(s))
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return true
		}
		if err != nil {
			return false
		}
	}
}
