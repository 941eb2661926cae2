//go:build !windows

package hostcounters

// NewReader returns a stub reader on non-Windows platforms. The
// production target is Windows; this exists so the rest of the module
// builds and tests on any host.
func NewReader(numCores int) (Reader, error) {
	return stubReader{}, nil
}

type stubReader struct{}

func (stubReader) HostUsage() (float64, float64, error)        { return 0, 0, ErrUnsupported }
func (stubReader) ProcessUsage(pid int32) (float64, float64, error) { return 0, 0, ErrUnsupported }
func (stubReader) ProcessName(pid int32) string                { return "" }
func (stubReader) Close() error                                { return nil }
