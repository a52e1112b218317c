package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type diskRecord struct {
	DeviceID   *string
	Index      *uint32
	Removable  bool
	Partitions int
}

func (d diskRecord) Fields() []Field {
	return []Field{
		{Name: "DeviceID", Value: d.DeviceID},
		{Name: "Index", Value: d.Index},
		{Name: "Removable", Value: d.Removable},
		{Name: "Partitions", Value: d.Partitions},
	}
}

func ptr[T any](v T) *T { return &v }

func TestIsUndefinedValue(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected bool
	}{
		{name: "nil", value: nil, expected: true},
		{name: "false", value: false, expected: true},
		{name: "true", value: true, expected: false},
		{name: "zero int", value: 0, expected: true},
		{name: "zero uint32", value: uint32(0), expected: true},
		{name: "non zero", value: 3, expected: false},
		{name: "unknown", value: UnknownValue, expected: true},
		{name: "empty string", value: "", expected: false},
		{name: "text", value: "COM3", expected: false},
		{name: "nil pointer", value: (*string)(nil), expected: true},
		{name: "pointer to unknown", value: ptr(UnknownValue), expected: true},
		{name: "pointer to zero", value: ptr(uint32(0)), expected: false},
		{name: "pointer to false", value: ptr(false), expected: false},
		{name: "pointer to text", value: ptr("E:"), expected: false},
		{name: "nil slice", value: []string(nil), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsUndefinedValue(tt.value))
		})
	}
}

func TestIsUndefinedDataObject(t *testing.T) {
	assert.True(t, IsUndefinedDataObject(diskRecord{}))
	assert.True(t, IsUndefinedDataObject(diskRecord{DeviceID: ptr(UnknownValue)}))
	assert.False(t, IsUndefinedDataObject(diskRecord{Index: ptr(uint32(0))}))
	assert.False(t, IsUndefinedDataObject(diskRecord{Removable: true}))
	assert.False(t, IsUndefinedDataObject(diskRecord{DeviceID: ptr(`\\.\PHYSICALDRIVE1`)}))
}

func TestRetainValueOrDefault(t *testing.T) {
	assert.Equal(t, UnknownValue, RetainValueOrDefault(nil))
	assert.Equal(t, UnknownValue, RetainValueOrDefault((*string)(nil)))
	assert.Equal(t, UnknownValue, RetainValueOrDefault(0))
	assert.Equal(t, "E:", RetainValueOrDefault(ptr("E:")))
	assert.Equal(t, "2", RetainValueOrDefault(ptr(uint32(2))))
	assert.Equal(t, "0", RetainValueOrDefault(ptr(uint32(0))))
	assert.Equal(t, "true", RetainValueOrDefault(true))
}

func TestAsMapAndGet(t *testing.T) {
	rec := diskRecord{DeviceID: ptr(`\\.\PHYSICALDRIVE1`), Index: ptr(uint32(1))}

	m := AsMap(rec)
	assert.Equal(t, map[string]string{
		"DeviceID":   `\\.\PHYSICALDRIVE1`,
		"Index":      "1",
		"Removable":  UnknownValue,
		"Partitions": UnknownValue,
	}, m)

	v, ok := Get(rec, "Index")
	assert.True(t, ok)
	assert.Equal(t, rec.Index, v)

	_, ok = Get(rec, "Missing")
	assert.False(t, ok)
}

func TestString(t *testing.T) {
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "", String(ptr(UnknownValue)))
	assert.Equal(t, "COM4", String(ptr("COM4")))
}
