//go:build !windows

package hostcounters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStubReaderReportsUnsupported(t *testing.T) {
	r, err := NewReader(4)
	assert.NoError(t, err)

	_, _, err = r.HostUsage()
	assert.ErrorIs(t, err, ErrUnsupported)

	_, _, err = r.ProcessUsage(100)
	assert.ErrorIs(t, err, ErrUnsupported)

	assert.Equal(t, "", r.ProcessName(100))
	assert.NoError(t, r.Close())
}
