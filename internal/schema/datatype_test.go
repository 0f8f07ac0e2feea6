package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalType(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"int", "integer"},
		{"INT4", "integer"},
		{"bigint", "bigint"},
		{"serial", "serial"},
		{"serial8", "bigserial"},
		{"varchar(255)", "character varying(255)"},
		{"VARCHAR ( 255 )", "character varying(255)"},
		{"character varying", "character varying"},
		{"char", "character(1)"},
		{"decimal(10, 2)", "numeric(10,2)"},
		{"numeric(8)", "numeric(8,0)"},
		{"timestamptz", "timestamp with time zone"},
		{"timestamptz(3)", "timestamp(3) with time zone"},
		{"timestamp(6) without time zone", "timestamp(6) without time zone"},
		{"timetz", "time with time zone"},
		{"bool", "boolean"},
		{"float8", "double precision"},
		{"text[]", "text[]"},
		{"int[]", "integer[]"},
		{"jsonb", "jsonb"},
		{"uuid", "uuid"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalType(tt.in))
		})
	}
}

func TestWithTypeModifiers(t *testing.T) {
	c := WithTypeModifiers(ColumnInfo{DataType: "numeric(10,2)"})
	assert.Equal(t, 10, c.NumericPrecision)
	assert.Equal(t, 2, c.NumericScale)

	c = WithTypeModifiers(ColumnInfo{DataType: "character varying(255)"})
	assert.Equal(t, 255, c.CharacterMaximumLength)

	c = WithTypeModifiers(ColumnInfo{DataType: "timestamp(3) with time zone"})
	assert.Equal(t, 3, c.DatetimePrecision)

	c = WithTypeModifiers(ColumnInfo{DataType: "text"})
	assert.Zero(t, c.NumericPrecision+c.NumericScale+c.CharacterMaximumLength+c.DatetimePrecision)
}

func TestSerialHelpers(t *testing.T) {
	assert.True(t, IsSerial("bigserial"))
	assert.False(t, IsSerial("bigint"))
	assert.Equal(t, "bigint", StorageType("bigserial"))
	assert.Equal(t, "text", StorageType("text"))

	s, ok := SerialFor("integer")
	assert.True(t, ok)
	assert.Equal(t, "serial", s)
	_, ok = SerialFor("text")
	assert.False(t, ok)
}
