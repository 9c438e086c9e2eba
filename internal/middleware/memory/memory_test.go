package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStorage(t *testing.T) {
	s := NewStorage()

	assert.Nil(t, s.Get("missing"))

	s.Set("key", []byte("content"), time.Minute)
	assert.Equal(t, []byte("content"), s.Get("key"))

	s.Set("key", []byte("newer"), time.Minute)
	assert.Equal(t, []byte("newer"), s.Get("key"))
}

func TestStorage_expiry(t *testing.T) {
	s := NewStorage()

	s.Set("key", []byte("content"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Nil(t, s.Get("key"))
}
