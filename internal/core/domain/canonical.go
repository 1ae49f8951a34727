package domain

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"io"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.trai.ch/zerr"
)

// Blob classes stored under the "class" key of every canonical envelope.
const (
	ClassPod             = "pod"
	ClassPipeline        = "pipeline"
	ClassResolvedPod     = "resolved_pod"
	ClassExecutionRecord = "execution_record"
	ClassTree            = "tree"
)

// maxSafeInteger bounds the floats that are rendered as plain integers.
const maxSafeInteger = 1 << 53

var (
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	numberType        = reflect.TypeFor[json.Number]()
)

// EncodeCanonical serializes v into its canonical byte form.
//
// The output is compact JSON: object keys are sorted bytewise, strings are
// trimmed and must be valid UTF-8, integral numbers are written without a
// fraction and other floats in their shortest round-trip form. Structs are
// encoded through their json tags, and omitempty drops empty values.
// NaN, infinities and kinds without a canonical form (channels, funcs,
// complex numbers) fail with ErrEncoding.
func EncodeCanonical(v any) ([]byte, error) {
	e := &encoder{}
	if err := e.encode("$", reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// DecodeCanonical parses canonical bytes into generic values. Numbers are
// returned as json.Number so that re-encoding is byte-identical.
func DecodeCanonical(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, zerr.Wrap(ErrDefinitionDecodeFailed, err.Error())
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, zerr.Wrap(ErrDefinitionDecodeFailed, "trailing data after value")
	}
	return v, nil
}

// NormalizeValue returns the canonical-equivalent generic form of v.
func NormalizeValue(v any) (any, error) {
	b, err := EncodeCanonical(v)
	if err != nil {
		return nil, err
	}
	return DecodeCanonical(b)
}

// ClassOf returns the class of a canonical envelope blob.
func ClassOf(blob []byte) (string, bool) {
	var head struct {
		Class string `json:"class"`
	}
	if err := json.Unmarshal(blob, &head); err != nil || head.Class == "" {
		return "", false
	}
	return head.Class, true
}

type envelope[T any] struct {
	Class string `json:"class"`
	Spec  T      `json:"spec"`
}

func encodeEnvelope[T any](class string, spec T) ([]byte, error) {
	return EncodeCanonical(envelope[T]{Class: class, Spec: spec})
}

func decodeEnvelope[T any](class string, b []byte) (T, error) {
	var env envelope[T]
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return env.Spec, zerr.Wrap(ErrDefinitionDecodeFailed, err.Error())
	}
	if env.Class != class {
		return env.Spec, zerr.With(
			zerr.With(zerr.Wrap(ErrDefinitionDecodeFailed, "unexpected blob class"), "expected_class", class),
			"class", env.Class,
		)
	}
	return env.Spec, nil
}

type encoder struct {
	buf bytes.Buffer
}

type member struct {
	key   string
	value reflect.Value
}

//nolint:cyclop // one case per reflect kind
func (e *encoder) encode(path string, v reflect.Value) error {
	if !v.IsValid() {
		e.buf.WriteString("null")
		return nil
	}

	if v.Type() == numberType {
		return e.encodeNumber(path, v.String())
	}

	if v.Type().Implements(textMarshalerType) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return encodingError(path, err.Error())
		}
		return e.encodeString(path, string(text))
	}

	switch v.Kind() {
	case reflect.Bool:
		e.buf.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		return e.encodeFloat(path, v.Float())
	case reflect.String:
		return e.encodeString(path, v.String())
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		return e.encode(path, v.Elem())
	case reflect.Slice, reflect.Array:
		return e.encodeList(path, v)
	case reflect.Map:
		return e.encodeMap(path, v)
	case reflect.Struct:
		return e.encodeStruct(path, v)
	default:
		return encodingError(path, "unsupported kind "+v.Kind().String())
	}
	return nil
}

func (e *encoder) encodeNumber(path, s string) error {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		e.buf.WriteString(strconv.FormatInt(i, 10))
		return nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		e.buf.WriteString(strconv.FormatUint(u, 10))
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return encodingError(path, "malformed number "+strconv.Quote(s))
	}
	return e.encodeFloat(path, f)
}

func (e *encoder) encodeFloat(path string, f float64) error {
	if math.IsNaN(f) {
		return encodingError(path, "NaN is not allowed")
	}
	if math.IsInf(f, 0) {
		return encodingError(path, "infinity is not allowed")
	}
	if f == math.Trunc(f) && math.Abs(f) < maxSafeInteger {
		e.buf.WriteString(strconv.FormatInt(int64(f), 10))
		return nil
	}
	e.buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

func (e *encoder) encodeString(path, s string) error {
	if !utf8.ValidString(s) {
		return encodingError(path, "string is not valid UTF-8")
	}
	writeQuoted(&e.buf, strings.TrimSpace(s))
	return nil
}

func (e *encoder) encodeList(path string, v reflect.Value) error {
	e.buf.WriteByte('[')
	for i := range v.Len() {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.encode(path+"["+strconv.Itoa(i)+"]", v.Index(i)); err != nil {
			return err
		}
	}
	e.buf.WriteByte(']')
	return nil
}

func (e *encoder) encodeMap(path string, v reflect.Value) error {
	if v.Type().Key().Kind() != reflect.String {
		return encodingError(path, "map keys must be strings")
	}

	members := make([]member, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		if !utf8.ValidString(key) {
			return encodingError(path, "map key is not valid UTF-8")
		}
		members = append(members, member{key: strings.TrimSpace(key), value: iter.Value()})
	}
	return e.writeObject(path, members)
}

func (e *encoder) encodeStruct(path string, v reflect.Value) error {
	t := v.Type()
	members := make([]member, 0, t.NumField())
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		omitEmpty := false
		if tag, ok := field.Tag.Lookup("json"); ok {
			if tag == "-" {
				continue
			}
			tagName, opts, _ := strings.Cut(tag, ",")
			if tagName != "" {
				name = tagName
			}
			omitEmpty = slices.Contains(strings.Split(opts, ","), "omitempty")
		}

		fv := v.Field(i)
		if omitEmpty && isEmptyValue(fv) {
			continue
		}
		members = append(members, member{key: name, value: fv})
	}
	return e.writeObject(path, members)
}

func (e *encoder) writeObject(path string, members []member) error {
	slices.SortFunc(members, func(a, b member) int {
		return strings.Compare(a.key, b.key)
	})

	e.buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			if members[i-1].key == m.key {
				return encodingError(path, "duplicate key "+strconv.Quote(m.key))
			}
			e.buf.WriteByte(',')
		}
		writeQuoted(&e.buf, m.key)
		e.buf.WriteByte(':')
		if err := e.encode(path+"."+m.key, m.value); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.String:
		return v.Len() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}

const hexDigits = "0123456789abcdef"

func writeQuoted(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[r>>4])
				buf.WriteByte(hexDigits[r&0xf])
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

func encodingError(path, reason string) error {
	return zerr.With(zerr.Wrap(ErrEncoding, reason), "path", path)
}
