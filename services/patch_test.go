package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePatchRejectsNonObjects(t *testing.T) {
	for _, body := range []string{``, `null`, `[1,2]`, `"id"`, `{`} {
		_, err := ParsePatch([]byte(body))
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, body)
	}
}

func TestPatchID(t *testing.T) {
	p, err := ParsePatch([]byte(`{"id":"a1","isOpen":true}`))
	require.NoError(t, err)
	id, err := p.ID()
	require.NoError(t, err)
	assert.Equal(t, "a1", id)

	for _, body := range []string{`{}`, `{"id":null}`, `{"id":""}`, `{"id":7}`} {
		p, err := ParsePatch([]byte(body))
		require.NoError(t, err)
		_, err = p.ID()
		assert.Error(t, err, body)
	}
}

func TestPatchUpdatesOnlySuppliedKnownKeys(t *testing.T) {
	p, err := ParsePatch([]byte(`{
		"id": "a1",
		"duration": 45,
		"latitude": null,
		"isOpen": false,
		"openedAt": "2024-05-01T08:30:00Z",
		"somethingElse": "ignored"
	}`))
	require.NoError(t, err)

	updates, err := p.updates(appointmentFields)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"duration": 45,
		"latitude": nil,
		"isOpen":   false,
		"openedAt": time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
	}, updates)
}

func TestPatchUpdatesTypeErrors(t *testing.T) {
	cases := map[string]string{
		"string for bool":      `{"isOpen":"yes"}`,
		"fractional integer":   `{"duration":1.5}`,
		"null required time":   `{"date":null}`,
		"garbage timestamp":    `{"startTime":"tomorrow"}`,
		"null required string": `{"clientID":null}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := ParsePatch([]byte(body))
			require.NoError(t, err)
			_, err = p.updates(appointmentFields)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestPatchOutside(t *testing.T) {
	p, err := ParsePatch([]byte(`{"id":"a1","isOpen":true,"clientID":"c9","date":"2024-05-01"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"clientID", "date"}, p.outside(workerAppointmentFields))

	p, err = ParsePatch([]byte(`{"id":"a1","isOpen":true,"openedAt":null}`))
	require.NoError(t, err)
	assert.Empty(t, p.outside(workerAppointmentFields))
}

func TestPatchStringList(t *testing.T) {
	p, err := ParsePatch([]byte(`{"workerIds":["w1","w2"],"serviceIds":null,"bad":[1]}`))
	require.NoError(t, err)

	ids, ok, err := p.StringList("workerIds")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"w1", "w2"}, ids)

	ids, ok, err = p.StringList("serviceIds")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, ids)

	_, ok, err = p.StringList("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = p.StringList("bad")
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{
		"2024-05-01T08:30:00Z",
		"2024-05-01T08:30:00.123+02:00",
		"2024-05-01T08:30:00",
		"2024-05-01T08:30",
		"2024-05-01",
	} {
		_, err := ParseTimestamp(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseTimestamp("01.05.2024")
	assert.Error(t, err)
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{FieldErrors: map[string]string{"date": "is required", "clientID": "is required"}}
	assert.Equal(t, "validation failed: clientID: is required, date: is required", err.Error())
}
