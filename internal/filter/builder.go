package filter

// Builder collects filters that must all pass.
type Builder struct {
	filters []EventFilter
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends f and returns b for chaining.
func (b *Builder) Add(f EventFilter) *Builder {
	b.filters = append(b.filters, f)
	return b
}

func (b *Builder) EventIDs(ids ...uint16) *Builder        { return b.Add(EventIDs(ids...)) }
func (b *Builder) ExcludeEventIDs(ids ...uint16) *Builder { return b.Add(ExcludeEventIDs(ids...)) }
func (b *Builder) Opcodes(ops ...uint8) *Builder          { return b.Add(Opcodes(ops...)) }
func (b *Builder) ProcessID(pid uint32) *Builder          { return b.Add(ProcessID(pid)) }
func (b *Builder) ProcessName(substr string) *Builder     { return b.Add(ProcessName(substr)) }
func (b *Builder) Custom(p Predicate) *Builder            { return b.Add(Custom(p)) }

// Filters returns a copy of the collected filters in insertion order.
func (b *Builder) Filters() []EventFilter {
	return append([]EventFilter(nil), b.filters...)
}

func (b *Builder) Len() int { return len(b.filters) }

// MatchesAll is true when every filter passes both axes. name may be empty
// when the process name is unknown.
func (b *Builder) MatchesAll(id uint16, opcode uint8, pid uint32, name string) bool {
	for _, f := range b.filters {
		if !f.Matches(id, opcode) || !f.MatchesProcess(pid, name) {
			return false
		}
	}
	return true
}
