package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterRejectsEmptyURL(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	err := r.Register("")
	assert.ErrorIs(t, err, ErrEmptyURL)

	_, ok := r.Current()
	assert.False(t, ok)
}

func TestCurrentReflectsMostRecentRegistration(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	_, ok := r.Current()
	require.False(t, ok)

	require.NoError(t, r.Register("http://agent/one"))
	url, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, "http://agent/one", url)

	require.NoError(t, r.Register("http://agent/two"))
	url, ok = r.Current()
	require.True(t, ok)
	assert.Equal(t, "http://agent/two", url)
	assert.False(t, r.RegisteredAt().IsZero())
}
