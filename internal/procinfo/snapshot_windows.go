//go:build windows

package procinfo

import (
	"fmt"
	"path/filepath"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc/mgr"
)

// Snapshot enumerates running processes with the Toolhelp snapshot API and
// annotates service hosts with their service name.
func Snapshot() (map[uint32]Info, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(snapshot)

	var pe32 windows.ProcessEntry32
	pe32.Size = uint32(unsafe.Sizeof(pe32))
	if err := windows.Process32First(snapshot, &pe32); err != nil {
		return nil, err
	}

	processes := make(map[uint32]Info)
	for {
		processes[pe32.ProcessID] = Info{
			PID:       pe32.ProcessID,
			ParentPID: pe32.ParentProcessID,
			Name:      windows.UTF16ToString(pe32.ExeFile[:]),
		}
		if err := windows.Process32Next(snapshot, &pe32); err != nil {
			if err == windows.ERROR_NO_MORE_FILES {
				break
			}
			return nil, err
		}
	}

	// Service names are best effort; the SCM may refuse unprivileged callers.
	if services, err := runningServices(); err == nil {
		for pid, name := range services {
			if info, ok := processes[pid]; ok {
				info.Service = name
				processes[pid] = info
			}
		}
	}
	return processes, nil
}

// lookupName resolves one pid through QueryFullProcessImageName.
func lookupName(pid uint32) (string, error) {
	switch pid {
	case 0:
		return "Idle", nil
	case 4:
		return "System", nil
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", err
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", err
	}
	return filepath.Base(windows.UTF16ToString(buf[:size])), nil
}

// runningServices maps the pid of every running Win32 service to its name.
// A host running several services keeps the last one enumerated.
func runningServices() (map[uint32]string, error) {
	m, err := mgr.Connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SCM: %w", err)
	}
	defer m.Disconnect()

	var bytesNeeded, servicesReturned uint32
	bufSize := uint32(16384)
	buf := make([]byte, bufSize)
	for {
		err = windows.EnumServicesStatusEx(
			m.Handle,
			windows.SC_ENUM_PROCESS_INFO,
			windows.SERVICE_WIN32,
			windows.SERVICE_ACTIVE,
			&buf[0],
			bufSize,
			&bytesNeeded,
			&servicesReturned,
			nil,
			nil,
		)
		if err == nil {
			break
		}
		if err == syscall.ERROR_MORE_DATA {
			bufSize = bytesNeeded
			buf = make([]byte, bufSize)
			continue
		}
		return nil, fmt.Errorf("EnumServicesStatusEx failed: %w", err)
	}

	out := make(map[uint32]string, servicesReturned)
	if servicesReturned == 0 {
		return out, nil
	}
	services := unsafe.Slice((*windows.ENUM_SERVICE_STATUS_PROCESS)(unsafe.Pointer(&buf[0])), servicesReturned)
	for i := range services {
		if pid := services[i].ServiceStatusProcess.ProcessId; pid != 0 {
			out[pid] = windows.UTF16PtrToString(services[i].ServiceName)
		}
	}
	return out, nil
}
