package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAbsoluteLabel(t *testing.T) {
	label, err := ParseLabel("//base/allocator:shim", "current", "")
	require.NoError(t, err)
	assert.Equal(t, "base/allocator", label.Dir)
	assert.Equal(t, "shim", label.Name)
	assert.Equal(t, "//base/allocator:shim", label.String())
}

func TestParseImplicitName(t *testing.T) {
	label, err := ParseLabel("//base/allocator", "", "")
	require.NoError(t, err)
	assert.Equal(t, "allocator", label.Name)
}

func TestParseRelativeLabel(t *testing.T) {
	label, err := ParseLabel(":helper", "tools/gen", "")
	require.NoError(t, err)
	assert.Equal(t, "tools/gen", label.Dir)
	assert.Equal(t, "helper", label.Name)
}

func TestParseRelativeDirLabel(t *testing.T) {
	label, err := ParseLabel("sub:thing", "tools", "")
	require.NoError(t, err)
	assert.Equal(t, "tools/sub", label.Dir)
	assert.Equal(t, "thing", label.Name)
}

func TestParseToolchainSuffix(t *testing.T) {
	label, err := ParseLabel("//base:base(//toolchains:arm)", "", "")
	require.NoError(t, err)
	assert.Equal(t, "//toolchains:arm", label.Toolchain)
	assert.Equal(t, "//base:base(//toolchains:arm)", label.String())
}

func TestParseInheritsToolchain(t *testing.T) {
	label, err := ParseLabel(":x", "dir", "//toolchains:arm")
	require.NoError(t, err)
	assert.Equal(t, "//toolchains:arm", label.Toolchain)
}

func TestParseInvalidLabels(t *testing.T) {
	for _, s := range []string{
		"",
		":",
		"//foo:bar:baz",
		"//foo/../bar:x",
		"//foo:bar(",
	} {
		_, err := ParseLabel(s, "", "")
		assert.Error(t, err, "expected %q to fail", s)
	}
}

func TestInterningIsIdentity(t *testing.T) {
	a, err := ParseLabel("//foo:bar", "", "")
	require.NoError(t, err)
	b, err := ParseLabel(":bar", "foo", "")
	require.NoError(t, err)
	assert.Same(t, a, b)
	c, err := ParseLabel("//foo:bar(//tc:t)", "", "")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestInterningConcurrent(t *testing.T) {
	done := make(chan *Label)
	for i := 0; i < 8; i++ {
		go func() {
			done <- InternLabel("race/dir", "name", "")
		}()
	}
	first := <-done
	for i := 1; i < 8; i++ {
		assert.Same(t, first, <-done)
	}
}

func TestLabelShortString(t *testing.T) {
	a := InternLabel("dir", "a", "")
	b := InternLabel("dir", "b", "")
	c := InternLabel("other", "c", "")
	assert.Equal(t, ":b", b.ShortString(a))
	assert.Equal(t, "//other:c", c.ShortString(a))
}

func TestPatternExact(t *testing.T) {
	pattern, err := ParseLabelPattern(":allowed", "pkg")
	require.NoError(t, err)
	assert.True(t, pattern.Matches(InternLabel("pkg", "allowed", "")))
	assert.False(t, pattern.Matches(InternLabel("pkg", "other", "")))
}

func TestPatternDirectory(t *testing.T) {
	pattern, err := ParseLabelPattern("//pkg:*", "")
	require.NoError(t, err)
	assert.True(t, pattern.Matches(InternLabel("pkg", "anything", "")))
	assert.False(t, pattern.Matches(InternLabel("pkg/sub", "x", "")))
}

func TestPatternRecursive(t *testing.T) {
	pattern, err := ParseLabelPattern("//pkg/*", "")
	require.NoError(t, err)
	assert.True(t, pattern.Matches(InternLabel("pkg", "x", "")))
	assert.True(t, pattern.Matches(InternLabel("pkg/sub/deep", "x", "")))
	assert.False(t, pattern.Matches(InternLabel("pkgother", "x", "")))
}

func TestPatternStar(t *testing.T) {
	pattern, err := ParseLabelPattern("*", "anywhere")
	require.NoError(t, err)
	assert.True(t, pattern.Matches(InternLabel("any/dir", "x", "")))
}
