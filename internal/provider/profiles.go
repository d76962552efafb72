package provider

import (
	"sort"

	"github.com/google/uuid"

	"etwtap/internal/etwerr"
	"etwtap/internal/filter"
)

// KernelCategoryMask mirrors the kernel session category bits a profile may
// request. It is kept as a plain uint32 so this package does not depend on
// the session package.
type KernelCategoryMask = uint32

// ProfileDef groups the providers and kernel categories for one area of
// interest.
type ProfileDef struct {
	Name        string
	Description string
	Providers   []Provider
	// KernelCategories is non-zero when the profile also wants the kernel
	// logger.
	KernelCategories KernelCategoryMask
}

func known(guid uuid.UUID, level TraceLevel, keywords uint64, filters ...filter.EventFilter) Provider {
	p := NewFromGUID(guid)
	p.Name = NameOf(guid)
	p.Level = level
	if keywords != 0 {
		p.KeywordsAny = keywords
	}
	p.Filters = filters
	return p
}

// processCorrelation is added to profiles whose events need process names.
func processCorrelation() Provider {
	p := known(KernelProcessGUID, LevelInformation, 0x10) // WINEVENT_KEYWORD_PROCESS
	p.EnableProperties = PropertyProcessStartKey
	return p
}

var profiles = []ProfileDef{
	{
		Name:             "process",
		Description:      "process and image lifecycle",
		Providers:        []Provider{processCorrelation()},
		KernelCategories: 0x1 | 0x4, // Process | ImageLoad
	},
	{
		Name:        "file",
		Description: "file create, read, write and delete",
		Providers: []Provider{
			processCorrelation(),
			// KERNEL_FILE_KEYWORD_FILEIO | CREATE | READ | WRITE | DELETE_PATH
			known(KernelFileGUID, LevelInformation, 0x7A0, filter.EventIDs(12, 14, 15, 16, 26)),
		},
	},
	{
		Name:        "disk",
		Description: "physical disk I/O",
		Providers: []Provider{
			processCorrelation(),
			known(KernelDiskGUID, LevelVerbose, 0),
		},
		KernelCategories: 0x100, // DiskIo
	},
	{
		Name:        "network",
		Description: "TCP/IP, DNS and NDIS activity",
		Providers: []Provider{
			known(TCPIPGUID, LevelInformation, 0),
			known(DNSClientGUID, LevelInformation, 0),
			known(NDISGUID, LevelInformation, 0),
		},
		KernelCategories: 0x10000, // Network
	},
	{
		Name:        "registry",
		Description: "registry key and value access",
		Providers: []Provider{
			processCorrelation(),
			known(KernelRegistryGUID, LevelInformation, 0),
		},
		KernelCategories: 0x20000, // Registry
	},
	{
		Name:        "dns",
		Description: "DNS client queries",
		Providers:   []Provider{known(DNSClientGUID, LevelInformation, 0)},
	},
	{
		Name:        "security",
		Description: "security auditing",
		Providers:   []Provider{known(SecurityAuditingGUID, LevelInformation, 0)},
	},
	{
		Name:        "powershell",
		Description: "PowerShell engine and script blocks",
		Providers:   []Provider{known(PowerShellGUID, LevelVerbose, 0)},
	},
	{
		Name:        "session-watch",
		Description: "ETW session start and stop notifications",
		// ETW_KEYWORD_SESSION, session start (10) and stop (11)
		Providers: []Provider{known(KernelEventTracingGUID, LevelVerbose, 0x10, filter.EventIDs(10, 11))},
	},
}

// Profile returns the named profile.
func Profile(name string) (ProfileDef, error) {
	for _, p := range profiles {
		if p.Name == name {
			return p.clone(), nil
		}
	}
	return ProfileDef{}, etwerr.InvalidConfig("unknown profile %q", name)
}

// ProfileNames lists the built-in profiles in order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

func (d ProfileDef) clone() ProfileDef {
	d.Providers = append([]Provider(nil), d.Providers...)
	return d
}

// Merge combines provider lists and folds duplicates by GUID. Keyword masks
// are ORed and the highest level wins. A duplicate clears the filters so
// neither copy over-filters the other.
func Merge(lists ...[]Provider) []Provider {
	var out []Provider
	index := map[uuid.UUID]int{}
	for _, list := range lists {
		for _, p := range list {
			i, exists := index[p.GUID]
			if !exists {
				index[p.GUID] = len(out)
				p.Filters = append([]filter.EventFilter(nil), p.Filters...)
				out = append(out, p)
				continue
			}
			existing := &out[i]
			if existing.KeywordsAny == AnyKeyword || p.KeywordsAny == AnyKeyword ||
				existing.KeywordsAny == 0 || p.KeywordsAny == 0 {
				existing.KeywordsAny = AnyKeyword
			} else {
				existing.KeywordsAny |= p.KeywordsAny
			}
			existing.KeywordsAll &= p.KeywordsAll
			existing.EnableProperties |= p.EnableProperties
			existing.StackTrace = existing.StackTrace || p.StackTrace
			existing.Enabled = existing.Enabled || p.Enabled
			if p.Level > existing.Level {
				existing.Level = p.Level
			}
			if existing.Name == "" {
				existing.Name = p.Name
			}
			existing.Filters = nil
		}
	}
	return out
}
