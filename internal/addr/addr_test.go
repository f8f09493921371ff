package addr

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToIntFromIntRoundTrip(t *testing.T) {
	ip := net.ParseIP("192.168.1.100")
	i, err := ToInt(ip)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xC0A80164), i)
	assert.True(t, FromInt(i).Equal(ip))
}

func TestToIntInvalid(t *testing.T) {
	_, err := ToInt(net.ParseIP("::1"))
	assert.Error(t, err)
}

func TestInSubnet(t *testing.T) {
	network := net.ParseIP("192.168.1.0")
	mask := net.ParseIP("255.255.255.0")

	assert.True(t, InSubnet(net.ParseIP("192.168.1.77"), network, mask))
	assert.False(t, InSubnet(net.ParseIP("192.168.2.77"), network, mask))
}

func TestNewPoolOrdering(t *testing.T) {
	_, err := NewPool("192.168.1.102", "192.168.1.100")
	assert.Error(t, err)

	p, err := NewPool("192.168.1.100", "192.168.1.102")
	require.NoError(t, err)
	assert.EqualValues(t, 3, p.Size())
}

func TestPoolEachAscendingOrder(t *testing.T) {
	p, err := NewPool("192.168.1.100", "192.168.1.102")
	require.NoError(t, err)

	var seen []uint32
	p.Each(func(ip uint32) bool {
		seen = append(seen, ip)
		return true
	})

	require.Len(t, seen, 3)
	assert.True(t, seen[0] < seen[1])
	assert.True(t, seen[1] < seen[2])
}

func TestPoolEachStopsEarly(t *testing.T) {
	p, err := NewPool("192.168.1.100", "192.168.1.110")
	require.NoError(t, err)

	count := 0
	p.Each(func(ip uint32) bool {
		count++
		return count < 2
	})

	assert.Equal(t, 2, count)
}
