//go:build !windows

package procinfo

import "github.com/shirou/gopsutil/process"

// Snapshot enumerates running processes through gopsutil.
func Snapshot() (map[uint32]Info, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]Info, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			// The process may have exited since enumeration.
			continue
		}
		ppid, _ := p.Ppid()
		out[uint32(p.Pid)] = Info{PID: uint32(p.Pid), ParentPID: uint32(ppid), Name: name}
	}
	return out, nil
}

func lookupName(pid uint32) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	return p.Name()
}
