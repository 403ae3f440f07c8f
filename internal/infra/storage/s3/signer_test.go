package s3

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSignerValidatesInput(t *testing.T) {
	_, err := NewSigner("", false, "k", "s", "bucket", time.Minute, nil)
	require.Error(t, err)

	_, err = NewSigner("http://localhost:9000", false, "k", "s", " ", time.Minute, nil)
	require.Error(t, err)
}

func TestSignedURLPresignsKey(t *testing.T) {
	signer, err := NewSigner("http://localhost:9000", false, "access", "secret", "listings", 5*time.Minute, nil)
	require.NoError(t, err)

	raw, err := signer.SignedURL(context.Background(), "/listing-1/cover.jpg")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "localhost:9000", u.Host)
	require.True(t, strings.HasSuffix(u.Path, "/listings/listing-1/cover.jpg"), u.Path)
	require.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
	require.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestSignedURLKeepsAbsoluteURLs(t *testing.T) {
	signer, err := NewSigner("localhost:9000", false, "access", "secret", "listings", 0, nil)
	require.NoError(t, err)

	raw, err := signer.SignedURL(context.Background(), "https://cdn.example.com/a.jpg")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/a.jpg", raw)

	_, err = signer.SignedURL(context.Background(), "  ")
	require.Error(t, err)
}

func TestNoopSignerReturnsKey(t *testing.T) {
	raw, err := NoopSigner{}.SignedURL(context.Background(), "k.jpg")
	require.NoError(t, err)
	require.Equal(t, "k.jpg", raw)
}
