package encoder_test

import (
	"encoding/json"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/pkg/encoder"
)

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type profile struct {
	ID      uuid.UUID         `json:"id"`
	Name    string            `json:"name" form:"name"`
	Tags    []string          `json:"tags" form:"tag"`
	Scores  map[string]int    `json:"scores" form:"-"`
	Origin  point             `json:"origin" form:"origin"`
	Created time.Time         `json:"created" form:"created"`
	Extra   map[string]string `json:"extra,omitempty" form:"-"`
}

type upper string

// upperEncoder stores strings upper-cased; registered ahead of the built-ins.
type upperEncoder struct{}

func (upperEncoder) Recognizes(t reflect.Type) bool { return t == reflect.TypeFor[upper]() }

func (upperEncoder) Encode(_ *encoder.Registry, t reflect.Type, raw any) (reflect.Value, error) {
	s, ok := raw.(string)
	if !ok {
		return reflect.Value{}, &encoder.Error{Message: "expected string"}
	}
	return reflect.ValueOf(upper(strings.ToUpper(s))), nil
}

func (upperEncoder) Serialize(_ *encoder.Registry, v reflect.Value) (any, error) {
	return string(v.Interface().(upper)), nil
}

func TestRegistryRoundTrip(t *testing.T) {
	t.Parallel()

	reg := encoder.New()
	created := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	values := []any{
		"hello",
		true,
		int(-42),
		int8(7),
		uint16(65535),
		3.25,
		float32(1.5),
		90 * time.Second,
		uuid.MustParse("0a0e2d5e-3a3f-4a43-9c0b-7b1ad3f1c2aa"),
		created,
		[]int{1, 2, 3},
		[2]string{"a", "b"},
		map[string]float64{"a": 1.5},
		map[string][]int{"evens": {2, 4}},
		point{X: 1, Y: 2},
		profile{
			ID:      uuid.MustParse("0a0e2d5e-3a3f-4a43-9c0b-7b1ad3f1c2aa"),
			Name:    "Ann",
			Tags:    []string{"x"},
			Scores:  map[string]int{"go": 10},
			Origin:  point{X: 3},
			Created: created,
		},
	}

	for _, v := range values {
		typ := reflect.TypeOf(v)
		t.Run(typ.String(), func(t *testing.T) {
			t.Parallel()

			serialized, err := reg.Serialize(v)
			require.NoError(t, err)

			got, err := reg.Encode(typ, serialized)
			require.NoError(t, err)
			assert.Equal(t, v, got.Interface())
		})
	}

	t.Run("survives a JSON trip", func(t *testing.T) {
		t.Parallel()

		in := []uuid.UUID{uuid.MustParse("0a0e2d5e-3a3f-4a43-9c0b-7b1ad3f1c2aa")}
		serialized, err := reg.Serialize(in)
		require.NoError(t, err)
		b, err := json.Marshal(serialized)
		require.NoError(t, err)

		var decoded any
		require.NoError(t, json.Unmarshal(b, &decoded))
		got, err := reg.Encode(reflect.TypeOf(in), decoded)
		require.NoError(t, err)
		assert.Equal(t, in, got.Interface())
	})
}

func TestRegistryEncode(t *testing.T) {
	t.Parallel()

	reg := encoder.New()

	t.Run("parses scalars from strings", func(t *testing.T) {
		t.Parallel()

		v, err := reg.Encode(reflect.TypeFor[int](), "7")
		require.NoError(t, err)
		assert.Equal(t, 7, v.Interface())

		v, err = reg.Encode(reflect.TypeFor[bool](), "on")
		require.NoError(t, err)
		assert.Equal(t, true, v.Interface())

		v, err = reg.Encode(reflect.TypeFor[*int](), []string{"3", "4"})
		require.NoError(t, err)
		assert.Equal(t, 3, *v.Interface().(*int))
	})

	t.Run("reports malformed input", func(t *testing.T) {
		t.Parallel()

		_, err := reg.Encode(reflect.TypeFor[int](), "seven")
		e, ok := encoder.AsError(err)
		require.True(t, ok)
		assert.Contains(t, e.Message, "invalid integer")

		_, err = reg.Encode(reflect.TypeFor[int8](), "300")
		require.Error(t, err)

		_, err = reg.Encode(reflect.TypeFor[[]int](), []string{"1", "x"})
		e, ok = encoder.AsError(err)
		require.True(t, ok)
		assert.Equal(t, "[1]", e.Field)
	})

	t.Run("decodes structs from JSON", func(t *testing.T) {
		t.Parallel()

		v, err := reg.Encode(reflect.TypeFor[point](), []byte(`{"x":4,"y":5}`))
		require.NoError(t, err)
		assert.Equal(t, point{X: 4, Y: 5}, v.Interface())

		_, err = reg.Encode(reflect.TypeFor[point](), []byte(`{"x":"four"}`))
		e, ok := encoder.AsError(err)
		require.True(t, ok)
		assert.Equal(t, "x", e.Field)
	})

	t.Run("builds structs from form values", func(t *testing.T) {
		t.Parallel()

		form := url.Values{
			"name":     {"Ann"},
			"tag":      {"a", "b"},
			"origin.x": {"9"},
			"created":  {"2024-05-01T12:30:00Z"},
		}
		v, err := reg.Encode(reflect.TypeFor[profile](), form)
		require.NoError(t, err)

		p := v.Interface().(profile)
		assert.Equal(t, "Ann", p.Name)
		assert.Equal(t, []string{"a", "b"}, p.Tags)
		assert.Equal(t, 9, p.Origin.X)
		assert.True(t, p.Created.Equal(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)))

		_, err = reg.Encode(reflect.TypeFor[profile](), url.Values{"origin.y": {"nope"}})
		e, ok := encoder.AsError(err)
		require.True(t, ok)
		assert.Equal(t, "origin.y", e.Field)
	})

	t.Run("decodes free-form JSON", func(t *testing.T) {
		t.Parallel()

		v, err := reg.Encode(reflect.TypeFor[any](), []byte(`{"a":[1,2]}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": []any{1.0, 2.0}}, v.Interface())
	})

	t.Run("rejects unsupported types", func(t *testing.T) {
		t.Parallel()

		_, err := reg.Encode(reflect.TypeFor[chan int](), "x")
		require.ErrorIs(t, err, encoder.ErrUnsupportedType)
		assert.Equal(t, encoder.CategoryUnknown, reg.Category(reflect.TypeFor[chan int]()))
	})
}

func TestRegistryCustomEncoders(t *testing.T) {
	t.Parallel()

	reg := encoder.New(upperEncoder{})

	v, err := reg.Encode(reflect.TypeFor[upper](), "shout")
	require.NoError(t, err)
	assert.Equal(t, upper("SHOUT"), v.Interface())

	// custom encoders win over the built-in scalar encoder for named strings
	out, err := reg.Serialize(upper("X"))
	require.NoError(t, err)
	assert.Equal(t, "X", out)
	assert.Equal(t, encoder.CategoryScalar, reg.Category(reflect.TypeFor[upper]()))

	plain := encoder.New()
	v, err = plain.Encode(reflect.TypeFor[upper](), "shout")
	require.NoError(t, err)
	assert.Equal(t, upper("shout"), v.Interface())
}

func TestCategory(t *testing.T) {
	t.Parallel()

	reg := encoder.New()
	cases := map[reflect.Type]encoder.Category{
		reflect.TypeFor[string]():          encoder.CategoryScalar,
		reflect.TypeFor[*uuid.UUID]():      encoder.CategoryScalar,
		reflect.TypeFor[time.Time]():       encoder.CategoryScalar,
		reflect.TypeFor[[]int]():           encoder.CategorySequence,
		reflect.TypeFor[map[string]int]():  encoder.CategoryMapping,
		reflect.TypeFor[map[string]any]():  encoder.CategoryJSON,
		reflect.TypeFor[json.RawMessage](): encoder.CategoryJSON,
		reflect.TypeFor[point]():           encoder.CategoryAggregate,
	}
	for typ, want := range cases {
		assert.Equal(t, want, reg.Category(typ), typ.String())
	}
}
