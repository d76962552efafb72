package session

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etwtap/internal/backend"
	"etwtap/internal/backend/backendtest"
	"etwtap/internal/etwerr"
)

func newTestKernel(t *testing.T, fake *backendtest.Fake, mutate func(*KernelConfig)) *KernelSession {
	t.Helper()
	cfg := DefaultKernelConfig()
	cfg.Name = "etwtap-kernel-" + t.Name()
	if mutate != nil {
		mutate(&cfg)
	}
	k := NewKernelSession(cfg, WithBackend(fake), WithLogger(quietLogger()))
	t.Cleanup(func() { _ = k.Close() })
	return k
}

func TestKernelCategoryValues(t *testing.T) {
	assert.EqualValues(t, 0x7, CategoryAllBasic)
	assert.EqualValues(t, 0x02000000, CategoryFileIo)
	assert.EqualValues(t, 0x10000, CategoryNetwork)
	assert.Equal(t, CategoryAllBasic, DefaultKernelConfig().Categories)
	assert.Equal(t, DefaultKernelName, DefaultKernelConfig().Name)
}

func TestKernelCategoryString(t *testing.T) {
	assert.Equal(t, "process|thread|image_load", CategoryAllBasic.String())
	assert.Equal(t, "all", CategoryAll.String())
	assert.Equal(t, "none", KernelCategory(0).String())
	assert.Equal(t, "disk_io|0x8", (CategoryDiskIo | 0x8).String())
}

func TestParseCategories(t *testing.T) {
	for in, want := range map[string]KernelCategory{
		"process":        CategoryProcess,
		"process,thread": CategoryProcess | CategoryThread,
		"DiskIo|file-io": CategoryDiskIo | CategoryFileIo,
		"all_basic":      CategoryAllBasic,
		"all":            CategoryAll,
		"0x10000":        CategoryNetwork,
		"registry, 256":  CategoryRegistry | CategoryDiskIo,
		"":               0,
	} {
		got, err := ParseCategories(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCategories("process,bogus")
	assert.ErrorIs(t, err, etwerr.ErrInvalidConfig)

	got, err := ParseCategoryList([]string{"network", "registry"})
	require.NoError(t, err)
	assert.Equal(t, CategoryNetwork|CategoryRegistry, got)
}

func TestKernelSessionLifecycle(t *testing.T) {
	fake := backendtest.New()
	k := newTestKernel(t, fake, nil)

	assert.ErrorIs(t, k.Stop(), etwerr.ErrNotRunning)
	require.NoError(t, k.Start())
	assert.ErrorIs(t, k.Start(), etwerr.ErrAlreadyRunning)

	cfgs := fake.KernelConfigs()
	require.Len(t, cfgs, 1)
	assert.EqualValues(t, CategoryAllBasic, cfgs[0].Flags)
	assert.Equal(t, backend.KernelLoggerName, fake.LastTrace().Name())

	require.NoError(t, k.Stop())
	assert.ErrorIs(t, k.Stop(), etwerr.ErrNotRunning)
}

func TestKernelStopIfExistsStopsBothNames(t *testing.T) {
	fake := backendtest.New()
	k := newTestKernel(t, fake, nil)
	require.NoError(t, k.Start())
	defer k.Stop()
	assert.ElementsMatch(t, []string{backend.KernelLoggerName, k.Name()}, fake.StoppedNames())
}

func TestKernelZeroCategories(t *testing.T) {
	fake := backendtest.New()
	k := newTestKernel(t, fake, nil)
	k.SetCategories(0)
	assert.ErrorIs(t, k.Start(), etwerr.ErrInvalidConfig)
	assert.Empty(t, fake.Traces())

	k.EnableCategory(CategoryNetwork)
	k.EnableCategory(CategoryRegistry)
	assert.Equal(t, CategoryNetwork|CategoryRegistry, k.Categories())
	require.NoError(t, k.Start())
	require.NoError(t, k.Stop())
}

func TestKernelCapacityLoss(t *testing.T) {
	fake := backendtest.New()
	k := newTestKernel(t, fake, func(c *KernelConfig) { c.ChannelCapacity = 2 })
	require.NoError(t, k.Start())
	for range 5 {
		fake.LastTrace().Emit(record(36, 4), nil)
	}
	st := k.Stats()
	assert.EqualValues(t, 2, st.EventsProcessed)
	assert.EqualValues(t, 3, st.EventsLost)
	require.NoError(t, k.Stop())
	assert.Len(t, drain(k), 2)
}

func TestDroppedKernelSessionIsStopped(t *testing.T) {
	fake := backendtest.New()
	name := "etwtap-kernel-dropped"
	func() {
		cfg := DefaultKernelConfig()
		cfg.Name = name
		k := NewKernelSession(cfg, WithBackend(fake), WithLogger(quietLogger()))
		require.NoError(t, k.Start())
	}()
	require.True(t, isLive(registryKey(kindKernel, name)))

	assert.Eventually(t, func() bool {
		runtime.GC()
		return fake.LastTrace().Stopped() && !isLive(registryKey(kindKernel, name))
	}, 5*time.Second, 10*time.Millisecond)
}

func TestKernelResetStatsRebasesBackendCounters(t *testing.T) {
	fake := backendtest.New()
	k := newTestKernel(t, fake, nil)
	require.NoError(t, k.Start())
	fake.LastTrace().SetStats(backend.TraceStats{EventsLost: 4, BuffersLost: 1})

	k.ResetStats()
	st := k.Stats()
	assert.Zero(t, st.EventsLost)
	assert.Zero(t, st.BuffersLost)
	require.NoError(t, k.Stop())
}
