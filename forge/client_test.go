package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGiteaClientWithoutToken(t *testing.T) {
	c, err := NewGiteaClient("https://gitea.example.com", "")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestNewGiteaClientWithToken(t *testing.T) {
	c, err := NewGiteaClient("https://gitea.example.com", "some-token")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestNewGiteaClientRejectsMalformedBaseURL(t *testing.T) {
	_, err := NewGiteaClient("://not-a-url", "")
	assert.Error(t, err)
}

func TestGiteaClientSatisfiesClientInterface(t *testing.T) {
	var _ Client = (*GiteaClient)(nil)
}
