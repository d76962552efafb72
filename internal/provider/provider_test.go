package provider

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etwtap/internal/etwerr"
	"etwtap/internal/filter"
)

func TestDefaults(t *testing.T) {
	p, err := New("{22fb2cd6-0e7b-422b-a0c7-2fad1fd0e716}")
	require.NoError(t, err)
	assert.Equal(t, KernelProcessGUID, p.GUID)
	assert.Equal(t, LevelVerbose, p.Level)
	assert.Equal(t, AnyKeyword, p.KeywordsAny)
	assert.Zero(t, p.KeywordsAll)
	assert.True(t, p.Enabled)
	assert.False(t, p.StackTrace)
}

func TestParseGUID(t *testing.T) {
	for _, s := range []string{
		"22fb2cd6-0e7b-422b-a0c7-2fad1fd0e716",
		"{22fb2cd6-0e7b-422b-a0c7-2fad1fd0e716}",
		" 22FB2CD6-0E7B-422B-A0C7-2FAD1FD0E716 ",
	} {
		g, err := ParseGUID(s)
		require.NoError(t, err, s)
		assert.Equal(t, KernelProcessGUID, g)
	}

	for _, s := range []string{"", "not-a-guid", "urn:uuid:22fb2cd6-0e7b-422b-a0c7-2fad1fd0e716", "22fb2cd60e7b422ba0c72fad1fd0e716"} {
		_, err := ParseGUID(s)
		assert.ErrorIs(t, err, etwerr.ErrInvalidProviderGUID, s)
	}
}

func TestMatchesEventLevel(t *testing.T) {
	p := NewFromGUID(uuid.New())
	p.Level = LevelWarning

	for _, lvl := range []uint8{0, 1, 2, 3} {
		assert.True(t, p.MatchesEvent(1, 0, lvl, 0), "level %d", lvl)
	}
	for _, lvl := range []uint8{4, 5} {
		assert.False(t, p.MatchesEvent(1, 0, lvl, 0), "level %d", lvl)
	}
}

func TestMatchesEventKeywordsAny(t *testing.T) {
	p := NewFromGUID(uuid.New())
	p.KeywordsAny = 0x0F

	assert.True(t, p.MatchesEvent(1, 0, 4, 0x01))
	assert.True(t, p.MatchesEvent(1, 0, 4, 0x08))
	assert.False(t, p.MatchesEvent(1, 0, 4, 0x10))

	p.KeywordsAny = AnyKeyword
	assert.True(t, p.MatchesEvent(1, 0, 4, 0x10))
	assert.True(t, p.MatchesEvent(1, 0, 4, 0))

	p.KeywordsAny = 0
	assert.True(t, p.MatchesEvent(1, 0, 4, 0x10))
}

func TestMatchesEventKeywordsAll(t *testing.T) {
	p := NewFromGUID(uuid.New())
	p.KeywordsAll = 0x03

	assert.True(t, p.MatchesEvent(1, 0, 4, 0x03))
	assert.True(t, p.MatchesEvent(1, 0, 4, 0x07))
	assert.False(t, p.MatchesEvent(1, 0, 4, 0x01))
}

func TestMatchesEventFilters(t *testing.T) {
	p := NewFromGUID(uuid.New())
	p.Filters = []filter.EventFilter{filter.EventIDs(1, 2, 3), filter.ProcessID(1000)}

	assert.True(t, p.MatchesEvent(2, 0, 4, 0))
	assert.False(t, p.MatchesEvent(4, 0, 4, 0))
	assert.True(t, p.MatchesProcess(1000, ""))
	assert.False(t, p.MatchesProcess(2000, ""))
	assert.True(t, p.HasProcessFilters())
	assert.False(t, p.NeedsProcessName())
	assert.Equal(t, []uint32{1000}, p.ProcessIDHints())
	assert.Equal(t, []uint16{1, 2, 3}, p.EventIDHints())
}

func TestEnableFlags(t *testing.T) {
	p := NewFromGUID(uuid.New())
	p.EnableProperties = PropertyProcessStartKey
	assert.Equal(t, PropertyProcessStartKey, p.EnableFlags())
	p.StackTrace = true
	assert.Equal(t, PropertyProcessStartKey|PropertyStackTrace, p.EnableFlags())
}

func TestLevels(t *testing.T) {
	assert.Equal(t, LevelVerbose, LevelFromUint8(5))
	assert.Equal(t, LevelVerbose, LevelFromUint8(200))
	assert.Equal(t, LevelError, LevelFromUint8(2))

	for in, want := range map[string]TraceLevel{
		"critical": LevelCritical,
		"WARN":     LevelWarning,
		"info":     LevelInformation,
		"3":        LevelWarning,
		"255":      LevelVerbose,
		"":         LevelVerbose,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, etwerr.ErrInvalidConfig)
	assert.Equal(t, "warning", LevelWarning.String())
}

func TestLookup(t *testing.T) {
	p, err := Lookup("microsoft-windows-dns-client")
	require.NoError(t, err)
	assert.Equal(t, DNSClientGUID, p.GUID)
	assert.Equal(t, "Microsoft-Windows-DNS-Client", p.Name)

	p, err = Lookup(TCPIPGUID.String())
	require.NoError(t, err)
	assert.Equal(t, "Microsoft-Windows-TCPIP", p.Name)

	_, err = Lookup("Some-Unknown-Provider")
	assert.ErrorIs(t, err, etwerr.ErrInvalidProviderGUID)
	assert.Contains(t, KnownNames(), "Microsoft-Windows-PowerShell")
}

func TestProfiles(t *testing.T) {
	names := ProfileNames()
	assert.Contains(t, names, "network")
	assert.Contains(t, names, "process")

	net, err := Profile("network")
	require.NoError(t, err)
	assert.Len(t, net.Providers, 3)
	assert.NotZero(t, net.KernelCategories)

	net.Providers[0].Level = LevelAlways
	again, _ := Profile("network")
	assert.Equal(t, LevelInformation, again.Providers[0].Level, "profiles are copied")

	_, err = Profile("nope")
	assert.ErrorIs(t, err, etwerr.ErrInvalidConfig)
}

func TestMerge(t *testing.T) {
	file, _ := Profile("file")
	reg, _ := Profile("registry")
	merged := Merge(file.Providers, reg.Providers)

	// Kernel-Process appears in both and folds into one entry.
	assert.Len(t, merged, 3)
	count := 0
	for _, p := range merged {
		if p.GUID == KernelProcessGUID {
			count++
			assert.Equal(t, PropertyProcessStartKey, p.EnableProperties)
		}
		if p.GUID == KernelFileGUID {
			assert.Len(t, p.Filters, 1, "unique providers keep their filters")
		}
	}
	assert.Equal(t, 1, count)

	a := NewFromGUID(TCPIPGUID)
	a.KeywordsAny = 0x1
	a.Level = LevelError
	a.Filters = []filter.EventFilter{filter.EventIDs(1)}
	b := NewFromGUID(TCPIPGUID)
	b.KeywordsAny = 0x2
	b.Level = LevelVerbose
	out := Merge([]Provider{a}, []Provider{b})
	require.Len(t, out, 1)
	assert.Equal(t, uint64(0x3), out[0].KeywordsAny)
	assert.Equal(t, LevelVerbose, out[0].Level)
	assert.Empty(t, out[0].Filters)
}
