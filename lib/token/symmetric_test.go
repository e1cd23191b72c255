package token

import (
	"context"
	"github.com/stretchr/testify/assert"
	"math/rand"
	"testing"
)

func TestSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	be, err := NewSymmetricEncoder(rng)
	assert.Nil(t, be)
	assert.NotNil(t, err)

	be, err = NewSymmetricEncoder(rng, WithGeneratedSymmetricKey(12))
	assert.Nil(t, be)
	assert.NotNil(t, err)

	be, err = NewSymmetricEncoder(rng, WithGeneratedSymmetricKey(128))
	assert.NotNil(t, be)
	assert.Nil(t, err)

	data, err := be.Encode([]byte{1, 2, 3, 4})
	assert.Nil(t, err)
	_, original, err := be.Decode(context.Background(), data)
	assert.Nil(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, original)
}

func TestSymmetricTampered(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	be, err := NewSymmetricEncoder(rng, WithGeneratedSymmetricKey(0))
	assert.NoError(t, err)

	data, err := be.Encode([]byte("session"))
	assert.NoError(t, err)
	data[len(data)-1] ^= 0xff
	_, original, err := be.Decode(context.Background(), data)
	assert.Error(t, err)
	assert.Nil(t, original)

	_, _, err = be.Decode(context.Background(), []byte{1, 2})
	assert.Error(t, err)
}
