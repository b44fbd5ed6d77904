package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractNestedFieldHomeAway(t *testing.T) {
	pair := mustDecode(t, `{"h": 2, "a": 1}`)

	home, err := ExtractNestedField(pair, "", ShapeHomeAway, "H")
	require.NoError(t, err)
	n, ok := home.Int64()
	require.True(t, ok)
	require.EqualValues(t, 2, n)

	away, err := ExtractNestedField(pair, "", ShapeHomeAway, " a ")
	require.NoError(t, err)
	n, _ = away.Int64()
	require.EqualValues(t, 1, n)

	_, err = ExtractNestedField(pair, "", ShapeHomeAway, "Z")
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestExtractNestedFieldFromRecordAndJSONString(t *testing.T) {
	rec := mustDecode(t, `{"goals": "{'h': '3', 'a': '0'}", "xG": {"h": "2.1", "a": "0.3"}}`)

	v, err := ExtractNestedField(rec, "goals", ShapeHomeAway, "H")
	require.NoError(t, err)
	require.Equal(t, "3", v.Text())

	v, err = ExtractNestedField(rec, "xG", ShapeHomeAway, "A")
	require.NoError(t, err)
	f, _ := v.Float()
	require.Equal(t, 0.3, f)

	_, err = ExtractNestedField(rec, "forecast", ShapeForecast, "D")
	require.ErrorIs(t, err, ErrMissingColumn)

	_, err = ExtractNestedField(rec, "xG", ShapeHomeAway, "X")
	var fe *InvalidFieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "xG", fe.Field)
}

func TestForecastPercent(t *testing.T) {
	f, err := DecodeForecast(mustDecode(t, `{"w": "0.4567", "d": "0.2911", "l": 0.2522}`))
	require.NoError(t, err)

	cases := map[string]float64{"H": 45.67, "w": 45.67, "A": 25.22, "L": 25.22, "d": 29.11}
	for subkey, want := range cases {
		got, err := f.Percent(subkey)
		require.NoError(t, err, subkey)
		require.Equal(t, want, got, subkey)
	}

	_, err = f.Percent("x")
	require.ErrorIs(t, err, ErrInvalidField)

	v, err := ExtractNestedField(mustDecode(t, `{"w": 0.5, "d": 0.25, "l": 0.25}`), "", ShapeForecast, "D")
	require.NoError(t, err)
	p, _ := v.Float()
	require.Equal(t, 0.25, p)
}

func TestDecodeForecastRejectsText(t *testing.T) {
	_, err := DecodeForecast(mustDecode(t, `{"w": "high", "d": 0.2, "l": 0.1}`))
	require.ErrorIs(t, err, ErrTypeCoercion)

	_, err = DecodeForecast(mustDecode(t, `{"w": 0.5, "d": 0.2}`))
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestMaxMinAvgStat(t *testing.T) {
	m, err := DecodeMaxMinAvg(mustDecode(t, `{"max": "5", "min": 0, "avg": 2.5}`))
	require.NoError(t, err)

	for subkey, want := range map[string]float64{"max": 5, "MAXIMUM": 5, "min": 0, "minimum": 0, "avg": 2.5, "Average": 2.5} {
		got, err := m.Stat(subkey)
		require.NoError(t, err, subkey)
		require.Equal(t, want, got, subkey)
	}
	_, err = m.Stat("median")
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestAgainstCounter(t *testing.T) {
	a, err := DecodeAgainst(mustDecode(t, `{"shots": 10, "goals": "2", "xG": 1.5}`))
	require.NoError(t, err)
	require.Equal(t, Against{Shots: 10, Goals: 2, XG: 1.5}, a)

	v, err := a.Counter("xG")
	require.NoError(t, err)
	f, _ := v.Float()
	require.Equal(t, 1.5, f)

	_, err = a.Counter("corners")
	require.ErrorIs(t, err, ErrInvalidField)

	_, err = DecodeAgainst(mustDecode(t, `{"shots": 1.5, "goals": 0, "xG": 0}`))
	require.ErrorIs(t, err, ErrTypeCoercion)

	_, err = DecodeAgainst(mustDecode(t, `{"shots": "1e20", "goals": 0, "xG": 0}`))
	require.ErrorIs(t, err, ErrTypeCoercion)

	_, err = DecodeAgainst(mustDecode(t, `{"shots": 3, "goals": 99999999999999999999, "xG": 0}`))
	require.ErrorIs(t, err, ErrTypeCoercion)
}

func TestNestedValueMustBeObject(t *testing.T) {
	_, err := DecodeHomeAway(mustDecode(t, `[1, 2]`))
	require.ErrorIs(t, err, ErrShape)

	_, err = DecodeHomeAway(String("{not json"))
	require.ErrorIs(t, err, ErrParse)
}

func TestTeamTitle(t *testing.T) {
	title, err := TeamTitle(mustDecode(t, `{"id": "89", "title": "Manchester United", "short_title": "MUN"}`))
	require.NoError(t, err)
	require.Equal(t, "Manchester United", title)

	_, err = TeamTitle(mustDecode(t, `{"id": "89"}`))
	require.ErrorIs(t, err, ErrMissingColumn)
}
