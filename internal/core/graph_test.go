package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/chartkit/internal/primitives"
)

// mediaChart:
//
//	m
//	└── app (compound, initial idle)
//	    ├── idle
//	    ├── running (parallel)
//	    │   ├── audio: muted, loud
//	    │   └── video: sd, hd
//	    └── h (shallow history)
func mediaChart() primitives.MachineConfig {
	audio := comp("audio",
		leaf("muted").Transition("TOGGLE", "loud"),
		leaf("loud").Transition("TOGGLE", "muted"),
	)
	video := comp("video",
		leaf("sd").Transition("HD", "hd"),
		leaf("hd"),
	)
	app := comp("app",
		leaf("idle").Transition("START", "running"),
		par("running", audio, video),
		hist("h", false),
	).WithInitial("idle")
	return chart("m", "app", app)
}

func TestBuildGraphLayout(t *testing.T) {
	g, err := BuildGraph(mediaChart())
	require.NoError(t, err)

	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"m", "app", "idle", "running", "audio", "muted", "loud", "video", "sd", "hd", "h"}, ids)

	running, ok := g.Node("running")
	require.True(t, ok)
	assert.Equal(t, primitives.Parallel, running.Type)
	assert.Len(t, running.Children, 2)
	assert.Equal(t, 2, running.Depth)

	root := g.Nodes()[0]
	assert.Equal(t, NoNode, root.Parent)
	assert.Equal(t, "m", root.ID)
}

func TestGraphQueries(t *testing.T) {
	g, err := BuildGraph(mediaChart())
	require.NoError(t, err)

	assert.Equal(t, []string{"audio", "running", "app", "m"}, g.Ancestors("muted"))
	assert.Nil(t, g.Ancestors("missing"))

	assert.Equal(t, "audio", g.LeastCommonCompoundAncestor("muted", "loud"))
	assert.Equal(t, "app", g.LeastCommonCompoundAncestor("muted", "sd"), "parallel states are skipped")
	assert.Equal(t, "app", g.LeastCommonCompoundAncestor("idle", "running"))
	assert.Equal(t, "m", g.LeastCommonCompoundAncestor("app", "idle"), "app is not a proper ancestor of itself")

	assert.Equal(t, []string{"muted", "sd"}, g.DefaultDescendants("running"))
	assert.Equal(t, []string{"idle"}, g.DefaultDescendants("app"))
	assert.Equal(t, []string{"idle"}, g.DefaultDescendants("m"))
	assert.Equal(t, []string{"idle"}, g.DefaultDescendants("h"))
	assert.Equal(t, []string{"hd"}, g.DefaultDescendants("hd"))

	assert.True(t, g.IsDescendant("sd", "running"))
	assert.True(t, g.IsDescendant("sd", "m"))
	assert.False(t, g.IsDescendant("running", "sd"))
	assert.False(t, g.IsDescendant("app", "app"))
	assert.False(t, g.IsDescendant("loud", "video"))

	path, ok := g.Path("sd")
	require.True(t, ok)
	assert.Equal(t, "app.running.video.sd", path)
}

func TestGraphResolve(t *testing.T) {
	g, err := BuildGraph(mediaChart())
	require.NoError(t, err)
	sd, _ := g.Node("sd")
	idle, _ := g.Node("idle")

	for _, ref := range []string{"sd", "#sd", "app.running.video.sd", "m.app.running.video.sd"} {
		i, ok := g.Resolve(ref)
		assert.True(t, ok, ref)
		assert.Equal(t, sd.Index, i, ref)
	}
	i, ok := g.Resolve("m.app.idle")
	assert.True(t, ok)
	assert.Equal(t, idle.Index, i)

	for _, ref := range []string{"nope", "#nope", "app.sd", "running.video.sd"} {
		_, ok := g.Resolve(ref)
		assert.False(t, ok, ref)
	}
}

func TestDefaultEntryFromRootCoversParallelSiblings(t *testing.T) {
	cfg := chart("m", "p.a.a2",
		par("p",
			comp("a", leaf("a1"), leaf("a2")),
			comp("b", leaf("b1"), leaf("b2").Transition("X", "a1")),
		),
	)
	// a1 and b2 must be reachable for the definition to build.
	cfg.States["p"].Children[0].Children[1].Transition("Y", "b2")
	g, err := BuildGraph(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "b1"}, g.DefaultDescendants("m"))
}

func TestBuildGraphErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  func() primitives.MachineConfig
		code DefinitionCode
	}{
		{
			name: "duplicate id",
			cfg: func() primitives.MachineConfig {
				return chart("m", "a", comp("a", leaf("x")), comp("b", leaf("x")))
			},
			code: CodeDuplicateID,
		},
		{
			name: "state named like the machine",
			cfg: func() primitives.MachineConfig {
				return chart("m", "a", comp("a", leaf("m")))
			},
			code: CodeDuplicateID,
		},
		{
			name: "dangling target",
			cfg: func() primitives.MachineConfig {
				return chart("m", "a", leaf("a").Transition("GO", "nowhere"))
			},
			code: CodeDanglingTarget,
		},
		{
			name: "dangling initial",
			cfg: func() primitives.MachineConfig {
				return chart("m", "missing", leaf("a"))
			},
			code: CodeDanglingTarget,
		},
		{
			name: "state registered under another key",
			cfg: func() primitives.MachineConfig {
				cfg := chart("m", "a", leaf("a"))
				cfg.States["b"] = leaf("island")
				return cfg
			},
			code: CodeOrphan,
		},
		{
			name: "initial is not a child",
			cfg: func() primitives.MachineConfig {
				return chart("m", "a", comp("a", leaf("a1")).WithInitial("other"))
			},
			code: CodeMissingDefault,
		},
		{
			name: "compound with only history",
			cfg: func() primitives.MachineConfig {
				return chart("m", "a", comp("a", hist("h", false)))
			},
			code: CodeMissingDefault,
		},
		{
			name: "parallel with one region",
			cfg: func() primitives.MachineConfig {
				return chart("m", "p", par("p", leaf("r1")))
			},
			code: CodeParallelRegions,
		},
		{
			name: "parallel region is parallel",
			cfg: func() primitives.MachineConfig {
				return chart("m", "p", par("p", leaf("r1"), par("r2", leaf("x"), leaf("y"))))
			},
			code: CodeParallelRegions,
		},
		{
			name: "history with children",
			cfg: func() primitives.MachineConfig {
				h := hist("h", true).WithChildren(leaf("x"))
				return chart("m", "a", comp("a", leaf("a1"), h))
			},
			code: CodeHistoryPlacement,
		},
		{
			name: "top-level history",
			cfg: func() primitives.MachineConfig {
				return chart("m", "a", leaf("a"), hist("h", false))
			},
			code: CodeHistoryPlacement,
		},
		{
			name: "internal target outside source",
			cfg: func() primitives.MachineConfig {
				a := comp("a", leaf("a1"))
				a.AddTransition("GO", primitives.TransitionConfig{Target: "b", Internal: true})
				return chart("m", "a", a, leaf("b"))
			},
			code: CodeInvalidTransition,
		},
		{
			name: "multi target in one region",
			cfg: func() primitives.MachineConfig {
				b := leaf("b")
				b.AddTransition("GO", primitives.TransitionConfig{Targets: []string{"a1", "a2"}})
				return chart("m", "b", comp("a", leaf("a1"), leaf("a2")), b)
			},
			code: CodeInvalidTransition,
		},
		{
			name: "multi target nested in each other",
			cfg: func() primitives.MachineConfig {
				b := leaf("b")
				b.AddTransition("GO", primitives.TransitionConfig{Targets: []string{"p", "x"}})
				return chart("m", "b", par("p", comp("r1", leaf("x")), leaf("r2")), b)
			},
			code: CodeInvalidTransition,
		},
		{
			name: "empty event pattern",
			cfg: func() primitives.MachineConfig {
				a := leaf("a")
				a.On = map[string][]primitives.TransitionConfig{" ": {{Target: "a"}}}
				return chart("m", "a", a)
			},
			code: CodeInvalidTransition,
		},
		{
			name: "malformed target",
			cfg: func() primitives.MachineConfig {
				return chart("m", "a", leaf("a").Transition("GO", "a..b"))
			},
			code: CodeInvalidTransition,
		},
		{
			name: "atomic with children",
			cfg: func() primitives.MachineConfig {
				return chart("m", "a", leaf("a").WithChildren(leaf("x")))
			},
			code: CodeInvalidState,
		},
		{
			name: "unknown type",
			cfg: func() primitives.MachineConfig {
				return chart("m", "a", primitives.NewStateConfig("a", "weird"))
			},
			code: CodeInvalidState,
		},
		{
			name: "no states",
			cfg: func() primitives.MachineConfig {
				return chart("m", "a")
			},
			code: CodeInvalidState,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDefinition(tt.cfg())
			require.Error(t, err)
			var de *DefinitionError
			require.True(t, errors.As(err, &de), "got %T: %v", err, err)
			assert.Equal(t, tt.code, de.Code, de.Error())
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestBuildGraphAcceptsUnreachableStates(t *testing.T) {
	tests := []struct {
		name string
		cfg  primitives.MachineConfig
		want []string
	}{
		{"top-level island", chart("m", "a", leaf("a"), leaf("island")), []string{"island"}},
		{"nested sibling", chart("m", "a", comp("a", leaf("a1"), leaf("a2"))), []string{"a2"}},
		{
			"parallel regions",
			chart("m", "P", par("P",
				comp("regionA", leaf("a1"), leaf("a2")),
				comp("regionB", leaf("b1"), leaf("b2")),
			)),
			[]string{"a2", "b2"},
		},
		{"everything reached", mediaChart(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := BuildGraph(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.Unreachable())
		})
	}
}

func TestNewDefinitionVersion(t *testing.T) {
	def, err := NewDefinition(mediaChart())
	require.NoError(t, err)
	again, err := NewDefinition(mediaChart())
	require.NoError(t, err)
	assert.NotEmpty(t, def.Version())
	assert.Equal(t, def.Version(), again.Version())
	assert.Equal(t, "m", def.ID())

	pinned := mediaChart()
	pinned.Version = "v2"
	def, err = NewDefinition(pinned)
	require.NoError(t, err)
	assert.Equal(t, "v2", def.Version())
}
