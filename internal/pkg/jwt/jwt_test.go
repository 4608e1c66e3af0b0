package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	m := NewManager("s3cret", time.Hour)
	token, err := m.Sign("user-1", []string{"ADMINS"})
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.True(t, claims.InGroup("ADMINS"))
	assert.False(t, claims.InGroup("EDITORS"))
}

func TestParseRejectsOtherSecret(t *testing.T) {
	token, err := NewManager("one", time.Hour).Sign("u", nil)
	require.NoError(t, err)

	_, err = NewManager("two", time.Hour).Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewManager("s", time.Hour)
	m.ttl = -time.Minute
	token, err := m.Sign("u", nil)
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.Error(t, err)
}
