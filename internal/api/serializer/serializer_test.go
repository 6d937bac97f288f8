package serializer

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/phrazzld/viewset/internal/api/shared"
	"github.com/phrazzld/viewset/internal/field"
	"github.com/phrazzld/viewset/internal/model"
	"github.com/phrazzld/viewset/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noteModel(opts ...model.Option) *model.Model {
	return model.New("Note", field.NewSchema(
		field.PrimaryKey("id"),
		field.String("title", field.Required()),
		field.String("body", field.Blank(), field.Default("")),
		field.Integer("priority", field.Default(int64(1))),
		field.String("status", field.Choices("open", "closed"), field.Nullable()),
		field.String("owner", field.ReadOnly(), field.Nullable()),
	), opts...)
}

func mustNew(t *testing.T, g Generic, opts Options) Serializer {
	t.Helper()
	s, err := g.New(opts)
	require.NoError(t, err)
	return s
}

func TestNewRequiresModel(t *testing.T) {
	t.Parallel()

	_, err := Generic{}.New(Options{})
	assert.ErrorIs(t, err, ErrContract)
}

func TestSerializeRestrictsToFields(t *testing.T) {
	t.Parallel()

	doc := store.Document{
		"id":               "n1",
		"title":            "hello",
		"body":             "secret",
		store.CreatedField: "2024-01-01T00:00:00Z",
		store.DeletedField: nil,
	}

	t.Run("declared fields only", func(t *testing.T) {
		t.Parallel()
		s := mustNew(t, Generic{Fields: []string{"id", "title", "priority"}}, Options{Model: noteModel(), Instance: doc})
		out, err := s.Serialize(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "n1", "title": "hello"}, out)
	})

	t.Run("nil fields exports everything but meta", func(t *testing.T) {
		t.Parallel()
		s := mustNew(t, Generic{}, Options{Model: noteModel(), Instance: doc})
		out, err := s.Serialize(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "n1", "title": "hello", "body": "secret"}, out)
	})

	t.Run("getter derives value", func(t *testing.T) {
		t.Parallel()
		g := Generic{
			Fields: []string{"id", "summary"},
			Getters: map[string]Getter{
				"summary": func(_ context.Context, d store.Document) (any, error) {
					return d["title"].(string) + "!", nil
				},
			},
		}
		out, err := mustNew(t, g, Options{Model: noteModel(), Instance: doc}).Serialize(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "n1", "summary": "hello!"}, out)
	})

	t.Run("getter error propagates", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		g := Generic{
			Fields:  []string{"x"},
			Getters: map[string]Getter{"x": func(context.Context, store.Document) (any, error) { return nil, boom }},
		}
		_, err := mustNew(t, g, Options{Model: noteModel(), Instance: doc}).Serialize(context.Background())
		assert.ErrorIs(t, err, boom)
	})
}

func TestSerializeMany(t *testing.T) {
	t.Parallel()

	docs := []store.Document{{"id": "a", "title": "A"}, {"id": "b", "title": "B"}}
	s := mustNew(t, Generic{Fields: []string{"id"}}, Options{Model: noteModel(), Instance: docs, Many: true})

	out, err := s.Serialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": "a"}, {"id": "b"}}, out)

	empty := mustNew(t, Generic{}, Options{Model: noteModel(), Instance: []store.Document{}, Many: true})
	out, err = empty.Serialize(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestSerializeContractErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"no instance", Options{}, ErrNoInstance},
		{"array without many", Options{Instance: []store.Document{{}}}, ErrArrayMismatch},
		{"object with many", Options{Instance: store.Document{}, Many: true}, ErrArrayMismatch},
		{"unsupported type", Options{Instance: "nope"}, ErrInstanceType},
		{"unsupported item", Options{Instance: []any{1}, Many: true}, ErrInstanceType},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tc.opts.Model = noteModel()
			_, err := mustNew(t, Generic{}, tc.opts).Serialize(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrContract)

			var se *SerializationError
			assert.True(t, errors.As(err, &se))
		})
	}
}

func TestDeserialize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    map[string]any
		partial bool
		want    store.Document
		errs    map[string]string
	}{
		{
			name: "applies defaults and cleans",
			data: map[string]any{"id": "n1", "title": "t", "priority": float64(3), "status": "open"},
			want: store.Document{"id": "n1", "title": "t", "body": "", "priority": int64(3), "status": "open"},
		},
		{
			name: "absent nullable becomes null",
			data: map[string]any{"id": "n1", "title": "t"},
			want: store.Document{"id": "n1", "title": "t", "body": "", "priority": int64(1), "status": nil},
		},
		{
			name: "collects every error",
			data: map[string]any{"title": 5, "status": "pending", "color": "red", "size": 1},
			errs: map[string]string{
				"title":  "Invalid value: expected string, got number",
				"status": "Invalid choice pending: must be one of [open closed]",
				"color":  "Field not recognized",
				"size":   "Field not recognized",
			},
		},
		{
			name: "integer too large to store exactly",
			data: map[string]any{"id": "n1", "title": "t", "priority": 1e20},
			errs: map[string]string{"priority": "Invalid value: integer out of range"},
		},
		{
			name: "required missing",
			data: map[string]any{"id": "n1"},
			errs: map[string]string{"title": "Required value"},
		},
		{
			name:    "partial skips absent fields",
			data:    map[string]any{"status": "closed"},
			partial: true,
			want:    store.Document{"status": "closed"},
		},
		{
			name:    "partial still validates present fields",
			data:    map[string]any{"title": ""},
			partial: true,
			errs:    map[string]string{"title": "Blank value not allowed"},
		},
		{
			name: "read-only input is dropped",
			data: map[string]any{"id": "n1", "title": "t", "owner": "mallory"},
			want: store.Document{"id": "n1", "title": "t", "body": "", "priority": int64(1), "status": nil},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := mustNew(t, Generic{}, Options{Model: noteModel(), Data: tc.data, Partial: tc.partial})
			got, err := s.Deserialize(context.Background())

			if tc.errs != nil {
				var de *DeserializationError
				require.True(t, errors.As(err, &de), "expected DeserializationError, got %v", err)
				assert.Equal(t, tc.errs, de.Errors)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDeserializeStripsInternalKeys(t *testing.T) {
	t.Parallel()

	m := model.New("Blob", nil)
	data := map[string]any{"_id": "x", "__created": "now", "name": "n", "nested": map[string]any{"a": 1}}

	got, err := mustNew(t, Generic{}, Options{Model: m, Data: data}).Deserialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.Document{"name": "n", "nested": map[string]any{"a": 1}}, got)
}

func TestDeserializeExtraFields(t *testing.T) {
	t.Parallel()

	data := map[string]any{"id": "n1", "title": "t", "color": "red"}
	got, err := mustNew(t, Generic{}, Options{Model: noteModel(model.WithExtraFields()), Data: data}).
		Deserialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "red", got.(store.Document)["color"])
}

func TestDeserializeFieldWhitelist(t *testing.T) {
	t.Parallel()

	g := Generic{Fields: []string{"title"}}
	_, err := mustNew(t, g, Options{Model: noteModel(), Data: map[string]any{"title": "t", "status": "open"}}).
		Deserialize(context.Background())

	var de *DeserializationError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, map[string]string{"status": "Field not recognized"}, de.Errors)
}

func TestDeserializeMany(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		data := []any{
			map[string]any{"id": "a", "title": "A"},
			map[string]any{"id": "b", "title": "B"},
		}
		got, err := mustNew(t, Generic{Fields: []string{"id", "title"}}, Options{Model: noteModel(), Data: data, Many: true}).
			Deserialize(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []store.Document{{"id": "a", "title": "A"}, {"id": "b", "title": "B"}}, got)
	})

	t.Run("errors keyed by index", func(t *testing.T) {
		t.Parallel()
		data := []any{map[string]any{"title": "ok"}, map[string]any{}, "junk"}
		_, err := mustNew(t, Generic{Fields: []string{"title"}}, Options{Model: noteModel(), Data: data, Many: true}).
			Deserialize(context.Background())

		var de *DeserializationError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, map[string]string{
			"1.title":          "Required value",
			"2." + NonFieldKey: "Invalid value: expected object",
		}, de.Errors)
	})
}

func TestDeserializeContractErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"no data", Options{}, ErrNoData},
		{"array without many", Options{Data: []any{}}, ErrArrayMismatch},
		{"object with many", Options{Data: map[string]any{}, Many: true}, ErrArrayMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tc.opts.Model = noteModel()
			_, err := mustNew(t, Generic{}, tc.opts).Deserialize(context.Background())
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrContract)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	g := Generic{Fields: []string{"id", "title", "body", "priority", "status"}}
	stored := store.Document{
		"id": "n1", "title": "t", "body": "b", "priority": int64(7), "status": "closed",
		store.UpdatedField: "2024-01-01T00:00:00Z",
	}

	wire, err := mustNew(t, g, Options{Model: noteModel(), Instance: stored}).Serialize(context.Background())
	require.NoError(t, err)

	back, err := mustNew(t, g, Options{Model: noteModel(), Data: wire}).Deserialize(context.Background())
	require.NoError(t, err)

	for _, name := range g.Fields {
		assert.Equal(t, stored[name], back.(store.Document)[name], name)
	}
}

func TestDeserializationErrorContract(t *testing.T) {
	t.Parallel()

	err := &DeserializationError{Errors: map[string]string{"b": "two", "a": "one"}}
	assert.Equal(t, "invalid input: a: one; b: two", err.Error())

	se, ok := shared.AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode())
	assert.Equal(t, map[string]any{"error": map[string]string{"a": "one", "b": "two"}}, se.ResponseBody())
}

func TestFieldsOf(t *testing.T) {
	t.Parallel()

	m := noteModel()
	assert.Len(t, FieldsOf(Generic{}, m), 6)

	fs := FieldsOf(Generic{Fields: []string{"title", "summary"}}, m)
	require.Len(t, fs, 2)
	assert.Equal(t, field.KindString, fs[0].Kind)
	assert.Equal(t, field.KindAny, fs[1].Kind)
}

func TestDeserializeIgnoresDerivedFields(t *testing.T) {
	t.Parallel()

	g := Generic{
		Fields: []string{"title", "created_at"},
		Getters: map[string]Getter{
			"created_at": func(_ context.Context, d store.Document) (any, error) { return d[store.CreatedField], nil },
		},
	}
	got, err := mustNew(t, g, Options{Model: noteModel(), Data: map[string]any{"title": "t", "created_at": "forged"}}).
		Deserialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.Document{"title": "t"}, got)
}
