package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphAddAndLookup(t *testing.T) {
	g := NewGraph()
	target := NewTarget(InternLabel("dir", "a", ""), Group, Location{})
	require.Nil(t, g.AddTarget(target))
	assert.Equal(t, target, g.Target(target.Label))
	assert.Nil(t, g.Target(InternLabel("dir", "missing", "")))
	assert.Equal(t, 1, g.Len())
}

func TestGraphDuplicateTarget(t *testing.T) {
	g := NewGraph()
	label := InternLabel("dir", "dup", "")
	require.Nil(t, g.AddTarget(NewTarget(label, Group, Location{Filename: "a.gn", Line: 1})))
	err := g.AddTarget(NewTarget(label, Group, Location{Filename: "a.gn", Line: 9}))
	require.NotNil(t, err)
	assert.Contains(t, err.Msg, "Duplicate target")
	require.Equal(t, 1, len(err.Sub))
	assert.Equal(t, 1, err.Sub[0].Loc.Line)
}

func TestGraphDuplicateConfig(t *testing.T) {
	g := NewGraph()
	label := InternLabel("dir", "cfg", "")
	require.Nil(t, g.AddConfig(&Config{Label: label}))
	assert.NotNil(t, g.AddConfig(&Config{Label: label}))
}

func TestGraphPreservesCommitOrder(t *testing.T) {
	g := NewGraph()
	for _, name := range []string{"c", "a", "b"} {
		require.Nil(t, g.AddTarget(NewTarget(InternLabel("dir", name, ""), Group, Location{})))
	}
	targets := g.AllTargets()
	require.Equal(t, 3, len(targets))
	assert.Equal(t, "c", targets[0].Label.Name)
	assert.Equal(t, "a", targets[1].Label.Name)
	assert.Equal(t, "b", targets[2].Label.Name)
}

func TestTargetTypeStrings(t *testing.T) {
	assert.Equal(t, "executable", Executable.String())
	assert.Equal(t, Executable, TargetTypeFromString("executable"))
	assert.Equal(t, UnknownTarget, TargetTypeFromString("nonsense"))
	assert.True(t, SharedLibrary.IsLinkable())
	assert.False(t, Group.IsLinkable())
}
