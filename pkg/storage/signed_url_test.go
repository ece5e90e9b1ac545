package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerSignAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("report-1", "reports/5a.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claim, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "report-1", claim.ReportID)
	require.Equal(t, "reports/5a.csv", claim.Path)
	require.WithinDuration(t, expiresAt, claim.ExpiresAt, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Sign("report-1", "reports/5a.csv")
	require.NoError(t, err)
	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = signer.Parse(token, false)
	require.True(t, errors.Is(err, ErrTokenExpired))

	claim, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "reports/5a.csv", claim.Path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Sign("report-1", "reports/5a.csv")
	require.NoError(t, err)

	other := NewSignedURLSigner("other", time.Hour)
	_, err = other.Parse(token, false)
	require.True(t, errors.Is(err, ErrInvalidToken))

	_, err = signer.Parse("a.b.c", false)
	require.True(t, errors.Is(err, ErrInvalidToken))

	_, _, err = signer.Sign("bad.id", "x.csv")
	require.Error(t, err)
}
