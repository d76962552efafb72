//go:build !windows

package backend

// unsupported is the backend on platforms without ETW.
type unsupported struct{}

// New returns the platform backend.
func New() Backend { return unsupported{} }

func (unsupported) StartTrace(TraceConfig, Callback) (Trace, error) { return nil, ErrUnsupported }
func (unsupported) StartKernelTrace(KernelTraceConfig, Callback) (Trace, error) {
	return nil, ErrUnsupported
}
func (unsupported) OpenFile(string, Callback) (Trace, error) { return nil, ErrUnsupported }
func (unsupported) StopByName(string) error                  { return ErrUnsupported }
func (unsupported) MaxFilterPID() uint32                     { return 0 }
