package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec("a-32-byte-secret-key-for-aes-256", "a-16-byte-iv-val")
	require.NoError(t, err)

	plaintext := []byte(`{"external_id":"TRX-1-20250101120000-ABCD1234","status":"PENDING"}`)

	encrypted, err := codec.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, string(plaintext), encrypted)

	decrypted, err := codec.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestCodec_ShortSecretsAreNormalized(t *testing.T) {
	codec, err := NewCodec("short", "iv")
	require.NoError(t, err)

	encrypted, err := codec.Encrypt([]byte("payload"))
	require.NoError(t, err)

	decrypted, err := codec.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), decrypted)
}

func TestCodec_EmptyMaterialRejected(t *testing.T) {
	_, err := NewCodec("", "iv")
	assert.Error(t, err)

	_, err = NewCodec("key", "")
	assert.Error(t, err)
}

func TestCodec_DecryptRejectsGarbage(t *testing.T) {
	codec, err := NewCodec("key-material", "iv-material")
	require.NoError(t, err)

	_, err = codec.Decrypt("not base64!!!")
	assert.Error(t, err)

	// Valid base64 but not block aligned.
	_, err = codec.Decrypt("YWJj")
	assert.Error(t, err)
}

func TestCodec_DifferentKeysCannotDecrypt(t *testing.T) {
	a, err := NewCodec("key-a", "iv-shared")
	require.NoError(t, err)
	b, err := NewCodec("key-b", "iv-shared")
	require.NoError(t, err)

	encrypted, err := a.Encrypt([]byte("secret payload"))
	require.NoError(t, err)

	decrypted, err := b.Decrypt(encrypted)
	if err == nil {
		assert.NotEqual(t, []byte("secret payload"), decrypted)
	}
}
