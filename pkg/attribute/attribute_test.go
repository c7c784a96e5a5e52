package attribute

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestIsRequiredAttributeValueEmpty(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected bool
	}{
		{"undefined", nil, true},
		{"null", Absent{}, true},
		{"empty string", Text(""), true},
		{"nil list", NumericList(nil), true},
		{"empty list", NumericList{}, true},
		{"zero", Numeric(0), false},
		{"negative", Numeric(-1.5), false},
		{"text", Text("a"), false},
		{"whitespace", Text(" "), false},
		{"single element list", NumericList{1}, false},
		{"zero element list", NumericList{0}, false},
		{"multi element list", NumericList{1, 2, 3}, false},
	}

	for _, test := range tests {
		result := IsRequiredAttributeValueEmpty(test.value)
		if result != test.expected {
			t.Errorf("%s: IsRequiredAttributeValueEmpty(%#v) = %v, expected %v",
				test.name, test.value, result, test.expected)
		}
	}
}

func TestGet(t *testing.T) {
	attrs := Attributes{"class": Text("car"), "nil": nil}

	if v := attrs.Get("class"); v != Text("car") {
		t.Errorf("Get(class) = %#v", v)
	}
	if _, ok := attrs.Get("missing").(Absent); !ok {
		t.Error("Get(missing) should be Absent")
	}
	if _, ok := attrs.Get("nil").(Absent); !ok {
		t.Error("Get(nil) should be Absent")
	}

	var empty Attributes
	if _, ok := empty.Get("class").(Absent); !ok {
		t.Error("Get on nil Attributes should be Absent")
	}
}

func TestMissingRequired(t *testing.T) {
	attrs := Attributes{
		"class":      NumericList{2},
		"occluded":   Numeric(0),
		"comment":    Text(""),
		"categories": NumericList{},
		"reviewer":   Absent{},
	}
	required := []string{"reviewer", "class", "comment", "occluded", "categories", "truncated"}

	missing := MissingRequired(attrs, required)
	expected := []string{"reviewer", "comment", "categories", "truncated"}
	if !reflect.DeepEqual(missing, expected) {
		t.Errorf("MissingRequired = %v, expected %v", missing, expected)
	}

	if missing := MissingRequired(attrs, nil); len(missing) != 0 {
		t.Errorf("MissingRequired with no required names = %v", missing)
	}
}

func TestUnmarshalJSON(t *testing.T) {
	data := []byte(`{
		"comment": "",
		"label": "car",
		"score": 0,
		"classes": [1, 2.5],
		"none": [],
		"reviewer": null
	}`)

	var attrs Attributes
	if err := json.Unmarshal(data, &attrs); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	expected := Attributes{
		"comment":  Text(""),
		"label":    Text("car"),
		"score":    Numeric(0),
		"classes":  NumericList{1, 2.5},
		"none":     NumericList{},
		"reviewer": Absent{},
	}
	if !reflect.DeepEqual(attrs, expected) {
		t.Errorf("Unmarshal = %#v, expected %#v", attrs, expected)
	}
}

func TestUnmarshalJSONRejectsOtherShapes(t *testing.T) {
	inputs := []string{
		`{"a": true}`,
		`{"a": {"b": 1}}`,
		`{"a": ["x"]}`,
		`{"a": [[1]]}`,
		`{"a": [null]}`,
		`{"a": [1, null]}`,
	}

	for _, in := range inputs {
		var attrs Attributes
		err := json.Unmarshal([]byte(in), &attrs)
		if !errors.Is(err, ErrUnsupportedShape) {
			t.Errorf("Unmarshal(%s) error = %v, expected ErrUnsupportedShape", in, err)
		}
	}
}

func TestMarshalJSON(t *testing.T) {
	attrs := Attributes{
		"b": Numeric(1.5),
		"a": Text("x"),
		"c": NumericList(nil),
		"d": Absent{},
		"e": nil,
	}

	data, err := json.Marshal(attrs)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	expected := `{"a":"x","b":1.5,"c":[],"d":null,"e":null}`
	if string(data) != expected {
		t.Errorf("Marshal = %s, expected %s", data, expected)
	}
}

func TestJSONPreservesEmptiness(t *testing.T) {
	attrs := Attributes{
		"zero":  Numeric(0),
		"empty": Text(""),
		"list":  NumericList{},
		"null":  Absent{},
		"set":   NumericList{3},
	}

	data, err := json.Marshal(attrs)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded Attributes
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	for name, v := range attrs {
		before := IsRequiredAttributeValueEmpty(v)
		after := IsRequiredAttributeValueEmpty(decoded.Get(name))
		if before != after {
			t.Errorf("%s: emptiness changed from %v to %v after JSON", name, before, after)
		}
	}
}

func BenchmarkIsRequiredAttributeValueEmpty(b *testing.B) {
	values := []Value{nil, Absent{}, Text(""), Text("a"), Numeric(0), NumericList{}, NumericList{1}}
	for i := 0; i < b.N; i++ {
		IsRequiredAttributeValueEmpty(values[i%len(values)])
	}
}

func TestPointerValues(t *testing.T) {
	empty := Text("")
	filled := Text("x")
	zero := Numeric(0)
	list := NumericList{2}
	var nilText *Text

	tests := []struct {
		name     string
		value    Value
		expected bool
	}{
		{"empty text pointer", &empty, true},
		{"text pointer", &filled, false},
		{"numeric pointer", &zero, false},
		{"list pointer", &list, false},
		{"absent pointer", &Absent{}, true},
		{"nil text pointer", nilText, true},
	}

	for _, test := range tests {
		if got := IsRequiredAttributeValueEmpty(test.value); got != test.expected {
			t.Errorf("%s: IsRequiredAttributeValueEmpty = %v, expected %v",
				test.name, got, test.expected)
		}
	}

	attrs := Attributes{"a": &filled, "b": nilText}
	if got := attrs.Get("a"); got != Text("x") {
		t.Errorf("Get(a) = %#v, expected Text(\"x\")", got)
	}
	if _, ok := attrs.Get("b").(Absent); !ok {
		t.Errorf("Get(b) = %#v, expected Absent", attrs.Get("b"))
	}

	data, err := json.Marshal(attrs)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"a":"x","b":null}` {
		t.Errorf("Marshal = %s", data)
	}
}
