package auth

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = bytes.Repeat([]byte("k"), MinKeySize)

func newSigner(t *testing.T, opts ...Option) *Signer {
	t.Helper()
	s, err := NewSigner(testKey, opts...)
	require.NoError(t, err)
	return s
}

func TestNewSigner_WeakKey(t *testing.T) {
	t.Parallel()

	_, err := NewSigner([]byte("short"))
	require.ErrorIs(t, err, ErrWeakKey)

	_, err = NewSigner(bytes.Repeat([]byte("x"), MinKeySize-1))
	require.ErrorIs(t, err, ErrWeakKey)
}

func TestNewSigner_CopiesKey(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte("z"), MinKeySize)
	s, err := NewSigner(key)
	require.NoError(t, err)

	tok, err := s.IssueAccessToken("42", time.Now().Add(time.Hour))
	require.NoError(t, err)

	for i := range key {
		key[i] = 0
	}
	_, err = s.Verify(tok)
	require.NoError(t, err)
}

func TestIssueAndVerify_Access(t *testing.T) {
	t.Parallel()
	s := newSigner(t)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok, err := s.IssueAccessToken("42", exp)
	require.NoError(t, err)

	claims, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.True(t, claims.ExpiresAt.Time.Equal(exp))
	assert.NotEmpty(t, claims.ID)
}

func TestIssueAnonymous_NoSubject(t *testing.T) {
	t.Parallel()
	s := newSigner(t)

	tok, err := s.IssueAnonymousToken(time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Empty(t, claims.Subject)

	_, err = s.GetUserIDFromToken(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestIssue_SameSecondTokensDiffer(t *testing.T) {
	t.Parallel()
	s := newSigner(t)

	exp := time.Now().Add(time.Hour)
	a, err := s.IssueAnonymousToken(exp)
	require.NoError(t, err)
	b, err := s.IssueAnonymousToken(exp)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerify_ExpiredReturnsClaims(t *testing.T) {
	t.Parallel()
	s := newSigner(t)

	tok, err := s.IssueAccessToken("u1", time.Now().Add(-time.Second))
	require.NoError(t, err)

	claims, err := s.Verify(tok)
	require.ErrorIs(t, err, common.ErrTokenExpired)
	require.NotNil(t, claims)
	assert.Equal(t, "u1", claims.Subject)

	_, err = s.GetUserIDFromToken(tok)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestVerify_UsesClock(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newSigner(t, WithClock(func() time.Time { return now }))

	tok, err := s.IssueAccessToken("u1", now.Add(time.Minute))
	require.NoError(t, err)

	id, err := s.GetUserIDFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

func TestVerify_WrongKey(t *testing.T) {
	t.Parallel()

	tok, err := newSigner(t).IssueAccessToken("u2", time.Now().Add(time.Hour))
	require.NoError(t, err)

	other, err := NewSigner(bytes.Repeat([]byte("o"), MinKeySize))
	require.NoError(t, err)

	_, err = other.Verify(tok)
	assert.ErrorIs(t, err, common.ErrInvalidSignature)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()
	s := newSigner(t)

	claims := jwt.RegisteredClaims{Subject: "u3", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	require.NoError(t, err)
	_, err = s.Verify(hs256)
	assert.ErrorIs(t, err, common.ErrInvalidSignature)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Verify(none)
	assert.Error(t, err)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	t.Parallel()
	s := newSigner(t)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "u"}).SignedString(testKey)
	require.NoError(t, err)

	_, err = s.Verify(tok)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrTokenExpired))
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()
	s := newSigner(t)

	for _, tok := range []string{"", "not.a.jwt", "abc", "a.b.c.d"} {
		_, err := s.Verify(tok)
		assert.ErrorIs(t, err, common.ErrMalformedToken, "token %q", tok)
	}
}

func TestVerify_AnySingleCharacterChangeIsRejected(t *testing.T) {
	t.Parallel()
	s := newSigner(t)

	tok, err := s.IssueAccessToken("42", time.Now().Add(time.Hour))
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		if tok[i] == '.' {
			continue
		}
		repl := byte('A')
		if tok[i] == 'A' {
			repl = 'B'
		}
		tampered := tok[:i] + string(repl) + tok[i+1:]

		_, err := s.Verify(tampered)
		require.Error(t, err, "position %d accepted", i)
	}

	sig := tok[strings.LastIndex(tok, ".")+1:]
	mid := len(tok) - len(sig)/2
	repl := byte('A')
	if tok[mid] == 'A' {
		repl = 'B'
	}
	_, err = s.Verify(tok[:mid] + string(repl) + tok[mid+1:])
	assert.ErrorIs(t, err, common.ErrInvalidSignature)
}
