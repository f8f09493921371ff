package retrans

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheHitReturnsIdenticalBytes(t *testing.T) {
	c := New(50 * time.Millisecond)
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	key := NewKey(1234, mac, nil)

	_, ok := c.Get(key)
	require.False(t, ok)

	c.Put(key, []byte("offer-bytes"))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("offer-bytes"), got)
}

func TestCacheEntryExpires(t *testing.T) {
	c := New(10 * time.Millisecond)
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	key := NewKey(1, mac, nil)

	c.Put(key, []byte("x"))
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	c := New(10 * time.Millisecond)
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")

	c.Put(NewKey(1, mac, nil), []byte("a"))
	time.Sleep(20 * time.Millisecond)
	c.Put(NewKey(2, mac, nil), []byte("b"))

	removed := c.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
}

func TestKeyDistinguishesRequestedIP(t *testing.T) {
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	ip1 := net.ParseIP("192.168.1.10")
	ip2 := net.ParseIP("192.168.1.11")

	k1 := NewKey(1, mac, ip1)
	k2 := NewKey(1, mac, ip2)
	assert.NotEqual(t, k1, k2)
}
