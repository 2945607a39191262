package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValueKind identifies the variant held by a Value
type ValueKind int

const (
	NullValue ValueKind = iota
	BoolValue
	IntValue
	FloatValue
	StringValue
	ArrayValue
	ObjectValue
)

// Value is a structured document value, used for the json body source.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Int    int64
	Float  float64
	Str    string
	Items  []Value
	Fields map[string]Value
}

// ValueFromNode converts a decoded YAML node into a Value.
func ValueFromNode(node *yaml.Node) (Value, error) {
	if node == nil {
		return Value{Kind: NullValue}, nil
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Value{Kind: NullValue}, nil
		}
		return ValueFromNode(node.Content[0])
	case yaml.AliasNode:
		return ValueFromNode(node.Alias)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := ValueFromNode(child)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Value{Kind: ArrayValue, Items: items}, nil
	case yaml.MappingNode:
		fields := make(map[string]Value, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if key.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: object keys must be scalars", key.Line)
			}
			item, err := ValueFromNode(node.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			fields[key.Value] = item
		}
		return Value{Kind: ObjectValue, Fields: fields}, nil
	case yaml.ScalarNode:
		return scalarValue(node)
	default:
		return Value{}, fmt.Errorf("line %d: unsupported yaml node", node.Line)
	}
}

func scalarValue(node *yaml.Node) (Value, error) {
	switch node.ShortTag() {
	case "!!null":
		return Value{Kind: NullValue}, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return Value{}, err
		}
		return Value{Kind: BoolValue, Bool: b}, nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			// out of int64 range, keep it as a float
			f, ferr := strconv.ParseFloat(node.Value, 64)
			if ferr != nil {
				return Value{}, err
			}
			return Value{Kind: FloatValue, Float: f}, nil
		}
		return Value{Kind: IntValue, Int: i}, nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return Value{}, err
		}
		return Value{Kind: FloatValue, Float: f}, nil
	default:
		return Value{Kind: StringValue, Str: node.Value}, nil
	}
}

// writeFloat emits the shortest digits of f. Whole numbers keep a ".0" so
// the value reads back as a float; magnitudes of 1e16 and up or below 1e-5
// switch to exponent form without a '+' sign.
func writeFloat(buf *bytes.Buffer, f float64) {
	s := strconv.FormatFloat(f, 'e', -1, 64)
	if s[0] == '-' {
		buf.WriteByte('-')
		s = s[1:]
	}
	mant, expPart, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(expPart)
	digits := strings.Replace(mant, ".", "", 1)
	n, point := len(digits), exp+1

	switch {
	case n <= point && point <= 16:
		buf.WriteString(digits)
		buf.WriteString(strings.Repeat("0", point-n))
		buf.WriteString(".0")
	case 0 < point && point <= 16:
		buf.WriteString(digits[:point])
		buf.WriteByte('.')
		buf.WriteString(digits[point:])
	case -5 < point && point <= 0:
		buf.WriteString("0.")
		buf.WriteString(strings.Repeat("0", -point))
		buf.WriteString(digits)
	default:
		buf.WriteByte(digits[0])
		if n > 1 {
			buf.WriteByte('.')
			buf.WriteString(digits[1:])
		}
		buf.WriteByte('e')
		buf.WriteString(strconv.Itoa(exp))
	}
}

// IsNull reports whether v is the null value
func (v Value) IsNull() bool {
	return v.Kind == NullValue
}

// String serializes v as compact JSON with object keys in sorted order.
func (v Value) String() string {
	var buf bytes.Buffer
	v.write(&buf)
	return buf.String()
}

func (v Value) write(buf *bytes.Buffer) {
	switch v.Kind {
	case BoolValue:
		buf.WriteString(strconv.FormatBool(v.Bool))
	case IntValue:
		buf.WriteString(strconv.FormatInt(v.Int, 10))
	case FloatValue:
		if math.IsInf(v.Float, 0) || math.IsNaN(v.Float) {
			// JSON has no representation for these
			buf.WriteString("null")
			return
		}
		writeFloat(buf, v.Float)
	case StringValue:
		writeJSONString(buf, v.Str)
	case ArrayValue:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			item.write(buf)
		}
		buf.WriteByte(']')
	case ObjectValue:
		keys := make([]string, 0, len(v.Fields))
		for k := range v.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, k)
			buf.WriteByte(':')
			v.Fields[k].write(buf)
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
}

func writeJSONString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	encoder := json.NewEncoder(&tmp)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(s); err != nil {
		buf.WriteString(`""`)
		return
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
}
