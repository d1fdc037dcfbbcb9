package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	st := NewSessionToken("secret")

	token, err := st.Issue("abc")
	require.NoError(t, err)

	id, err := st.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.NoError(t, st.Authorize(token, "abc"))
	assert.ErrorIs(t, st.Authorize(token, "other"), ErrInvalidToken)
}

func TestSessionTokenRejectsForeignSecret(t *testing.T) {
	token, err := NewSessionToken("one").Issue("abc")
	require.NoError(t, err)

	_, err = NewSessionToken("two").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionTokenExpiry(t *testing.T) {
	st := NewSessionToken("secret").WithTTL(time.Minute)
	issued := time.Now()
	st.now = func() time.Time { return issued }

	token, err := st.Issue("abc")
	require.NoError(t, err)

	st.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = st.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionTokenEmptySecret(t *testing.T) {
	st := NewSessionToken("")
	_, err := st.Issue("abc")
	assert.ErrorIs(t, err, ErrEmptySecret)
	_, err = st.Verify("x")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestSessionTokenGarbage(t *testing.T) {
	_, err := NewSessionToken("secret").Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
