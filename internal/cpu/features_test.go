package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFeaturesSet 测试特性集合操作
func TestFeaturesSet(t *testing.T) {
	s := Of(AVX)
	assert.True(t, s.IsSupported(SSE2), "SSE2 is always present")
	assert.True(t, s.IsSupported(AVX))
	assert.False(t, s.IsSupported(SSE41))

	s = s.Without(AVX)
	assert.False(t, s.IsSupported(AVX))
	assert.True(t, s.Without(SSE2).IsSupported(SSE2))
	assert.False(t, s.IsSupported(Feature(200)))
	assert.Equal(t, []Feature{SSE2, SSE41}, Of(SSE41).List())
	assert.Equal(t, "sse2,sse4.1,avx", Of(AVX, SSE41).String())
}

func TestParseFeature(t *testing.T) {
	for _, name := range []string{"sse4.1", "SSE41", "sse4_1", " sse4.1 "} {
		f, err := ParseFeature(name)
		require.NoError(t, err, name)
		assert.Equal(t, SSE41, f)
	}
	_, err := ParseFeature("avx512")
	require.ErrorIs(t, err, ErrUnknownFeature)
}

// TestParseList 测试特性列表解析和隐含关系
func TestParseList(t *testing.T) {
	s, err := ParseList("baseline")
	require.NoError(t, err)
	assert.Equal(t, Baseline, s)

	s, err = ParseList("avx")
	require.NoError(t, err)
	assert.True(t, s.IsSupported(AVX))
	assert.True(t, s.IsSupported(SSE41), "avx implies sse4.1")
	assert.True(t, s.IsSupported(SSSE3))

	s, err = ParseList("sse4.1,")
	require.NoError(t, err)
	assert.False(t, s.IsSupported(AVX))
	assert.True(t, s.IsSupported(SSE41))

	_, err = ParseList("sse4.1,mmx")
	require.ErrorIs(t, err, ErrUnknownFeature)
}

func TestDetectHasBaseline(t *testing.T) {
	assert.True(t, Detect().IsSupported(SSE2))
}

// TestOracleInitOnce 特性表只能初始化一次
func TestOracleInitOnce(t *testing.T) {
	var o Oracle
	require.NoError(t, o.Init(Of(SSE41)))
	require.ErrorIs(t, o.Init(Of(AVX)), ErrAlreadyInitialized)
	assert.Equal(t, Of(SSE41), o.Features())
	assert.True(t, o.IsSupported(SSE2))
	assert.False(t, o.IsSupported(AVX))
}

// TestOracleDetectsLazily 未初始化时探测宿主，之后不能再 Init
func TestOracleDetectsLazily(t *testing.T) {
	var o Oracle
	assert.Equal(t, Detect(), o.Features())
	assert.ErrorIs(t, o.Init(Of(AVX)), ErrAlreadyInitialized)
}

// TestInitOnce 测试进程级特性只能初始化一次
func TestInitOnce(t *testing.T) {
	o := Process()
	o.mu.Lock()
	saved, savedInit := o.set, o.init
	o.init = false
	o.mu.Unlock()
	t.Cleanup(func() {
		o.mu.Lock()
		o.set, o.init = saved, savedInit
		o.mu.Unlock()
	})

	require.NoError(t, Init(Of(SSE41)))
	require.ErrorIs(t, Init(Of(AVX)), ErrAlreadyInitialized)
	assert.Equal(t, Of(SSE41), Global())
	assert.Equal(t, Global(), Process().Features())
}
