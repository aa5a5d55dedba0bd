package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderVerificationEmail(t *testing.T) {
	link := "http://localhost:8080/verify-email/some-token"
	body, err := renderVerificationEmail(link)
	require.NoError(t, err)

	assert.Contains(t, body, link)
	assert.Contains(t, body, "Verify Email")
}

func TestRenderPasswordResetEmail(t *testing.T) {
	link := "http://localhost:3000/reset-password/some-token"
	body, err := renderPasswordResetEmail(link)
	require.NoError(t, err)

	assert.Contains(t, body, link)
	assert.Contains(t, body, "Reset Password")
	assert.Contains(t, body, "expire in 1 hour")
}

func TestRenderEscapesToken(t *testing.T) {
	// html/template escapes anything unsafe in the link
	body, err := renderPasswordResetEmail(`http://x/"><script>alert(1)</script>`)
	require.NoError(t, err)

	assert.NotContains(t, body, "<script>")
}
