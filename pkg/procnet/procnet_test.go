package procnet

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRawConn struct {
	calls int
}

func (f *fakeRawConn) Control(fn func(fd uintptr)) error {
	f.calls++
	fn(^uintptr(0))
	return nil
}

func (f *fakeRawConn) Read(fn func(fd uintptr) bool) error  { return nil }
func (f *fakeRawConn) Write(fn func(fd uintptr) bool) error { return nil }

var _ syscall.RawConn = (*fakeRawConn)(nil)

func TestControlWithoutDevice(t *testing.T) {
	b := New()
	rc := &fakeRawConn{}

	require.NoError(t, b.Control("tcp4", "192.0.2.1:80", rc))
	assert.Zero(t, rc.calls)
}

func TestControlWithDevice(t *testing.T) {
	b := New()
	b.SetDevice("wlan0")
	assert.Equal(t, "wlan0", b.Device())

	rc := &fakeRawConn{}
	err := b.Control("tcp4", "192.0.2.1:80", rc)
	assert.Error(t, err)

	b.SetDevice("")
	assert.Empty(t, b.Device())
}

func TestDialerUsesControl(t *testing.T) {
	b := New()
	d := b.Dialer(0)
	require.NotNil(t, d.Control)

	client := b.HTTPClient(0)
	require.NotNil(t, client.Transport)
}
