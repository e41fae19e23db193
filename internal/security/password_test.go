package security

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = ScryptParams{N: 1024, R: 8, P: 1, KeyLen: 64, SaltLen: 16}

func TestHashPassword_Format(t *testing.T) {
	hash, err := HashPassword("Secret123")
	require.NoError(t, err)

	key, salt, ok := strings.Cut(hash, ".")
	require.True(t, ok)
	assert.Len(t, key, 128)
	assert.Len(t, salt, 32)
	assert.NotContains(t, hash, "Secret123")
}

func TestHashPassword_FreshSaltEveryCall(t *testing.T) {
	first, err := HashPassword("Secret123")
	require.NoError(t, err)
	second, err := HashPassword("Secret123")
	require.NoError(t, err)

	_, saltA, _ := strings.Cut(first, ".")
	_, saltB, _ := strings.Cut(second, ".")
	assert.NotEqual(t, saltA, saltB)
	assert.NotEqual(t, first, second)

	assert.True(t, ComparePasswords("Secret123", first))
	assert.True(t, ComparePasswords("Secret123", second))
}

func TestComparePasswords_WrongPassword(t *testing.T) {
	cases := []struct{ password, wrong string }{
		{"Secret123", "WRONG"},
		{"Secret123", "secret123"},
		{"Secret123", "Secret1234"},
		{"", " "},
		{"æøå-unicode", "aoa-unicode"},
	}
	for _, tc := range cases {
		hash, err := HashPasswordWithParams(tc.password, fastParams)
		require.NoError(t, err)
		assert.False(t, comparePasswordsWithParams(tc.wrong, hash, fastParams), "%q vs %q", tc.password, tc.wrong)
		assert.True(t, comparePasswordsWithParams(tc.password, hash, fastParams))
	}
}

func TestComparePasswords_Malformed(t *testing.T) {
	valid, err := HashPasswordWithParams("x", fastParams)
	require.NoError(t, err)
	key, salt, _ := strings.Cut(valid, ".")

	for _, stored := range []string{
		"",
		"not-a-valid-hash",
		".",
		"." + salt,
		key + ".",
		"zz" + key[2:] + "." + salt,
		key[:10] + "." + salt,
	} {
		assert.NotPanics(t, func() {
			assert.False(t, comparePasswordsWithParams("x", stored, fastParams), stored)
		})
	}
}

func TestComparePasswords_SplitsOnFirstDot(t *testing.T) {
	hash, err := HashPasswordWithParams("x", fastParams)
	require.NoError(t, err)
	assert.False(t, comparePasswordsWithParams("x", hash+".extra", fastParams))
}

func TestHashPassword_InvalidParams(t *testing.T) {
	_, err := HashPasswordWithParams("x", ScryptParams{N: 3, R: 8, P: 1, KeyLen: 64, SaltLen: 16})
	require.Error(t, err)
}

func TestHasher(t *testing.T) {
	h, err := NewHasherWithParams(2, fastParams)
	require.NoError(t, err)

	ctx := context.Background()
	hash, err := h.Hash(ctx, "Secret123")
	require.NoError(t, err)

	ok, err := h.Compare(ctx, "Secret123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(ctx, "nope", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.DummyCompare(ctx, "anything"))
}

func TestHasher_CancelledBeforeSlot(t *testing.T) {
	h, err := NewHasherWithParams(1, fastParams)
	require.NoError(t, err)

	require.NoError(t, h.slots.Acquire(context.Background(), 1))
	defer h.slots.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = h.Hash(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
}
