package session

import "etwtap/internal/maps"

// liveNames holds the names of running sessions, keyed by kind and name, so
// two live sessions of one kind cannot share a name within the process.
var liveNames = maps.NewConcurrentMap[string, struct{}]()

func registryKey(kind, name string) string { return kind + "/" + name }

// acquireName reserves name for kind. It returns a release func, or false
// when the name is taken.
func acquireName(kind, name string) (func(), bool) {
	key := registryKey(kind, name)
	if _, loaded := liveNames.LoadOrStore(key, func() struct{} { return struct{}{} }); loaded {
		return nil, false
	}
	return func() { liveNames.Delete(key) }, true
}

// LiveSessions returns the names of the running sessions and kernel sessions.
func LiveSessions() []string {
	var names []string
	liveNames.Range(func(key string, _ struct{}) bool {
		names = append(names, key)
		return true
	})
	return names
}
