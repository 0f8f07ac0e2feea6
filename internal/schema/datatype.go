package schema

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// typeAliases maps accepted spellings to the spelling format_type() uses.
var typeAliases = map[string]string{
	"int":                         "integer",
	"int4":                        "integer",
	"integer":                     "integer",
	"int2":                        "smallint",
	"smallint":                    "smallint",
	"int8":                        "bigint",
	"bigint":                      "bigint",
	"serial":                      "serial",
	"serial4":                     "serial",
	"serial2":                     "smallserial",
	"smallserial":                 "smallserial",
	"serial8":                     "bigserial",
	"bigserial":                   "bigserial",
	"float4":                      "real",
	"real":                        "real",
	"float":                       "double precision",
	"float8":                      "double precision",
	"double precision":            "double precision",
	"bool":                        "boolean",
	"boolean":                     "boolean",
	"decimal":                     "numeric",
	"numeric":                     "numeric",
	"varchar":                     "character varying",
	"character varying":           "character varying",
	"char":                        "character",
	"character":                   "character",
	"bpchar":                      "character",
	"varbit":                      "bit varying",
	"bit varying":                 "bit varying",
	"bit":                         "bit",
	"timestamp":                   "timestamp without time zone",
	"timestamp without time zone": "timestamp without time zone",
	"timestamptz":                 "timestamp with time zone",
	"timestamp with time zone":    "timestamp with time zone",
	"time":                        "time without time zone",
	"time without time zone":      "time without time zone",
	"timetz":                      "time with time zone",
	"time with time zone":         "time with time zone",
}

// serialTypes maps serial pseudo types to the integer type Postgres stores.
var serialTypes = map[string]string{
	"smallserial": "smallint",
	"serial":      "integer",
	"bigserial":   "bigint",
}

// CanonicalType folds a type spelling to the form format_type() returns,
// e.g. "VARCHAR(255)" to "character varying(255)" and "timestamptz(3)" to
// "timestamp(3) with time zone".
func CanonicalType(t string) string {
	s := strings.Join(strings.Fields(cases.Fold().String(t)), " ")

	array := ""
	for strings.HasSuffix(s, "[]") {
		array += "[]"
		s = strings.TrimSpace(strings.TrimSuffix(s, "[]"))
	}

	base, mod := s, ""
	if open := strings.Index(s, "("); open >= 0 {
		if end := strings.Index(s[open:], ")"); end >= 0 {
			mod = strings.ReplaceAll(s[open+1:open+end], " ", "")
			base = strings.Join(strings.Fields(s[:open]+" "+s[open+end+1:]), " ")
		}
	}

	canonical, known := typeAliases[base]
	if !known {
		if mod != "" {
			return base + "(" + mod + ")" + array
		}
		return base + array
	}

	switch canonical {
	case "numeric":
		if mod != "" && !strings.Contains(mod, ",") {
			mod += ",0"
		}
	case "character", "bit":
		if mod == "" {
			mod = "1"
		}
	}
	if mod == "" {
		return canonical + array
	}
	if rest, ok := strings.CutPrefix(canonical, "timestamp "); ok {
		return "timestamp(" + mod + ") " + rest + array
	}
	if rest, ok := strings.CutPrefix(canonical, "time "); ok {
		return "time(" + mod + ") " + rest + array
	}
	return canonical + "(" + mod + ")" + array
}

// IsSerial reports whether a canonical type is one of the serial types.
func IsSerial(dataType string) bool {
	_, ok := serialTypes[dataType]
	return ok
}

// StorageType returns the type a serial column is stored as, or dataType
// unchanged.
func StorageType(dataType string) string {
	if t, ok := serialTypes[dataType]; ok {
		return t
	}
	return dataType
}

// SerialFor returns the serial type for an integer storage type.
func SerialFor(storage string) (string, bool) {
	for serial, t := range serialTypes {
		if t == storage {
			return serial, true
		}
	}
	return "", false
}

// WithTypeModifiers fills the precision, scale, length and datetime
// precision fields of c from its canonical data type.
func WithTypeModifiers(c ColumnInfo) ColumnInfo {
	c.NumericPrecision, c.NumericScale, c.CharacterMaximumLength, c.DatetimePrecision = 0, 0, 0, 0
	if c.IsEnum {
		return c
	}
	dt := c.DataType
	open := strings.Index(dt, "(")
	end := strings.Index(dt, ")")
	if open < 0 || end < open {
		return c
	}
	args := strings.Split(dt[open+1:end], ",")
	first, _ := strconv.Atoi(args[0])
	base := dt[:open]
	switch {
	case base == "numeric":
		c.NumericPrecision = first
		if len(args) > 1 {
			c.NumericScale, _ = strconv.Atoi(args[1])
		}
	case base == "character varying" || base == "character" || base == "bit" || base == "bit varying":
		c.CharacterMaximumLength = first
	case base == "timestamp" || base == "time" || base == "interval":
		c.DatetimePrecision = first
	}
	return c
}
