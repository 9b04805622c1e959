package production

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/primitives"
)

// DefaultVisualizer renders definitions as Graphviz DOT, Mermaid
// stateDiagram-v2, Markdown and JSON. current lists the active state IDs to
// highlight (Machine.ActiveStates); it may be nil.
type DefaultVisualizer struct{}

func NewVisualizer() *DefaultVisualizer { return &DefaultVisualizer{} }

// Edge is one rendered transition.
type Edge struct {
	From     string   `json:"from"`
	To       []string `json:"to,omitempty"`
	Event    string   `json:"event"`
	Guard    string   `json:"guard,omitempty"`
	Actions  []string `json:"actions,omitempty"`
	Internal bool     `json:"internal,omitempty"`
}

// Label renders "EVENT [guard] / a, b".
func (e Edge) Label() string {
	var b strings.Builder
	b.WriteString(e.Event)
	if e.Guard != "" {
		fmt.Fprintf(&b, " [%s]", e.Guard)
	}
	if len(e.Actions) > 0 {
		fmt.Fprintf(&b, " / %s", strings.Join(e.Actions, ", "))
	}
	return b.String()
}

// chartModel is the graph of a definition with resolved edges.
type chartModel struct {
	graph *core.Graph
	nodes []core.Node
	edges []Edge
}

func buildModel(config primitives.MachineConfig) (*chartModel, error) {
	g, err := core.BuildGraph(config)
	if err != nil {
		return nil, err
	}
	m := &chartModel{graph: g, nodes: g.Nodes()}
	for _, n := range m.nodes[1:] {
		s := n.Config
		exact, wildcard := primitives.OrderPatterns(s.On)
		for _, event := range append(exact, wildcard...) {
			for _, t := range s.On[event] {
				m.edges = append(m.edges, m.edge(n.ID, event, t))
			}
		}
		for _, t := range s.Always {
			m.edges = append(m.edges, m.edge(n.ID, primitives.AlwaysEvent, t))
		}
	}
	return m, nil
}

func (m *chartModel) edge(from, event string, t primitives.TransitionConfig) Edge {
	e := Edge{From: from, Event: event, Guard: core.RefName(t.Guard), Internal: t.Internal}
	for _, ref := range t.TargetRefs() {
		if i, ok := m.graph.Resolve(ref); ok {
			e.To = append(e.To, m.nodes[i].ID)
		}
	}
	for _, a := range t.Actions {
		e.Actions = append(e.Actions, core.RefName(a))
	}
	return e
}

func activeSet(current []string) map[string]bool {
	active := make(map[string]bool, len(current))
	for _, id := range current {
		active[id] = true
	}
	return active
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// ExportDOT generates Graphviz DOT source for the statechart. Compound and
// parallel states become clusters; active atomic states are filled green and
// active containers orange.
func (v *DefaultVisualizer) ExportDOT(config primitives.MachineConfig, current []string) string {
	m, err := buildModel(config)
	if err != nil {
		return fmt.Sprintf("digraph %s {\n  label=%s;\n}\n", quote(config.ID), quote("invalid definition: "+err.Error()))
	}
	active := activeSet(current)

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", quote(config.ID))
	b.WriteString("  rankdir=LR;\n  compound=true;\n")
	b.WriteString("  node [shape=box, fontsize=10, style=rounded];\n  edge [fontsize=9];\n")
	b.WriteString("  \"__start\" [shape=point];\n")
	fmt.Fprintf(&b, "  \"__start\" -> %s;\n", quote(m.graph.Initial()))

	for _, c := range m.nodes[0].Children {
		m.renderDOT(&b, c, active, 1)
	}
	for _, e := range m.edges {
		if len(e.To) == 0 {
			fmt.Fprintf(&b, "  %s -> %s [label=%s, style=dashed];\n", quote(e.From), quote(e.From), quote(e.Label()))
			continue
		}
		for _, to := range e.To {
			fmt.Fprintf(&b, "  %s -> %s [label=%s];\n", quote(e.From), quote(to), quote(e.Label()))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func (m *chartModel) renderDOT(b *strings.Builder, i core.NodeIndex, active map[string]bool, depth int) {
	n := m.nodes[i]
	indent := strings.Repeat("  ", depth)
	switch {
	case n.Type.IsHistory():
		label := "H"
		if n.Type == primitives.DeepHistory {
			label = "H*"
		}
		fmt.Fprintf(b, "%s%s [label=%s, shape=circle];\n", indent, quote(n.ID), quote(label))
	case len(n.Children) == 0:
		style := ""
		if active[n.ID] {
			style = ", style=\"rounded,filled\", fillcolor=lightgreen"
		}
		fmt.Fprintf(b, "%s%s [label=%s%s];\n", indent, quote(n.ID), quote(n.ID), style)
	default:
		fmt.Fprintf(b, "%ssubgraph %s {\n", indent, quote("cluster_"+n.ID))
		fmt.Fprintf(b, "%s  label=%s;\n", indent, quote(fmt.Sprintf("%s (%s)", n.ID, n.Type)))
		switch {
		case active[n.ID]:
			fmt.Fprintf(b, "%s  style=filled;\n%s  fillcolor=orange;\n", indent, indent)
		case n.Type == primitives.Parallel:
			fmt.Fprintf(b, "%s  style=dashed;\n", indent)
		}
		fmt.Fprintf(b, "%s  %s [label=%s, shape=ellipse];\n", indent, quote(n.ID), quote(n.ID))
		for _, c := range n.Children {
			m.renderDOT(b, c, active, depth+1)
		}
		fmt.Fprintf(b, "%s}\n", indent)
	}
}

// ExportMermaid renders a Mermaid stateDiagram-v2. Parallel regions are
// separated with "--"; active states get the "active" class.
func (v *DefaultVisualizer) ExportMermaid(config primitives.MachineConfig, current []string) (string, error) {
	m, err := buildModel(config)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&b, "    [*] --> %s\n", m.graph.Initial())
	for _, c := range m.nodes[0].Children {
		m.renderMermaid(&b, c, 1)
	}
	for _, e := range m.edges {
		targets := e.To
		if len(targets) == 0 {
			targets = []string{e.From}
		}
		for _, to := range targets {
			fmt.Fprintf(&b, "    %s --> %s : %s\n", e.From, to, e.Label())
		}
	}

	active := activeSet(current)
	var highlighted []string
	for _, n := range m.nodes[1:] {
		if active[n.ID] && !n.Type.IsHistory() {
			highlighted = append(highlighted, n.ID)
		}
	}
	if len(highlighted) > 0 {
		b.WriteString("    classDef active fill:#9f9,stroke:#393\n")
		fmt.Fprintf(&b, "    class %s active\n", strings.Join(highlighted, ","))
	}
	return b.String(), nil
}

func (m *chartModel) renderMermaid(b *strings.Builder, i core.NodeIndex, depth int) {
	n := m.nodes[i]
	indent := strings.Repeat("    ", depth)
	switch {
	case n.Type.IsHistory():
		label := "H"
		if n.Type == primitives.DeepHistory {
			label = "H*"
		}
		fmt.Fprintf(b, "%sstate \"%s\" as %s\n", indent, label, n.ID)
	case len(n.Children) == 0:
		fmt.Fprintf(b, "%s%s\n", indent, n.ID)
	default:
		fmt.Fprintf(b, "%sstate %s {\n", indent, n.ID)
		if n.Type == primitives.Compound {
			if def := n.Config.DefaultChild(); def != nil {
				fmt.Fprintf(b, "%s    [*] --> %s\n", indent, def.ID)
			}
		}
		first := true
		for _, c := range n.Children {
			if n.Type == primitives.Parallel && !m.nodes[c].Type.IsHistory() {
				if !first {
					fmt.Fprintf(b, "%s    --\n", indent)
				}
				first = false
			}
			m.renderMermaid(b, c, depth+1)
		}
		fmt.Fprintf(b, "%s}\n", indent)
	}
}

// ExportMarkdown renders a human-readable description: the state table, the
// transition table and a Mermaid diagram.
func (v *DefaultVisualizer) ExportMarkdown(config primitives.MachineConfig, current []string) (string, error) {
	m, err := buildModel(config)
	if err != nil {
		return "", err
	}
	diagram, err := v.ExportMermaid(config, current)
	if err != nil {
		return "", err
	}
	active := activeSet(current)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", config.ID)
	if config.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", config.Description)
	}
	fmt.Fprintf(&b, "- **Initial:** `%s`\n", m.graph.Initial())
	fmt.Fprintf(&b, "- **Version:** `%s`\n", primitives.ComputeVersion(&config))
	if len(current) > 0 {
		fmt.Fprintf(&b, "- **Active:** `%s`\n", strings.Join(current, "`, `"))
	}

	b.WriteString("\n## States\n\n| State | Type | Path | Entry | Exit |\n| --- | --- | --- | --- | --- |\n")
	for _, n := range m.nodes[1:] {
		name := n.ID
		if active[n.ID] {
			name = "**" + n.ID + "**"
		}
		fmt.Fprintf(&b, "| %s | %s | `%s` | %s | %s |\n", name, n.Type, n.Path,
			refList(n.Config.Entry), refList(n.Config.Exit))
	}

	if len(m.edges) > 0 {
		b.WriteString("\n## Transitions\n\n| From | Event | Guard | Targets | Actions |\n| --- | --- | --- | --- | --- |\n")
		for _, e := range m.edges {
			targets := strings.Join(e.To, ", ")
			if targets == "" {
				targets = "_(none)_"
			}
			if e.Internal {
				targets += " (internal)"
			}
			fmt.Fprintf(&b, "| %s | `%s` | %s | %s | %s |\n",
				e.From, e.Event, e.Guard, targets, strings.Join(e.Actions, ", "))
		}
	}

	fmt.Fprintf(&b, "\n## Diagram\n\n```mermaid\n%s```\n", diagram)
	return b.String(), nil
}

func refList(refs []primitives.ActionRef) string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, core.RefName(r))
	}
	return strings.Join(names, ", ")
}

// chartJSON is the JSON export. Guards and actions are reduced to their
// names so definitions holding closures still serialize.
type chartJSON struct {
	ID          string      `json:"id"`
	Description string      `json:"description,omitempty"`
	Version     string      `json:"version"`
	Initial     string      `json:"initial"`
	States      []stateJSON `json:"states"`
	Transitions []Edge      `json:"transitions"`
}

type stateJSON struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Path     string   `json:"path"`
	Parent   string   `json:"parent,omitempty"`
	Children []string `json:"children,omitempty"`
	Entry    []string `json:"entry,omitempty"`
	Exit     []string `json:"exit,omitempty"`
}

// ExportJSON serializes the resolved structure of the definition.
func (v *DefaultVisualizer) ExportJSON(config primitives.MachineConfig) ([]byte, error) {
	m, err := buildModel(config)
	if err != nil {
		return nil, err
	}
	out := chartJSON{
		ID:          config.ID,
		Description: config.Description,
		Version:     primitives.ComputeVersion(&config),
		Initial:     m.graph.Initial(),
		Transitions: m.edges,
	}
	for _, n := range m.nodes[1:] {
		s := stateJSON{ID: n.ID, Type: string(n.Type), Path: n.Path}
		if n.Parent != m.graph.Root() {
			s.Parent = m.nodes[n.Parent].ID
		}
		for _, c := range n.Children {
			s.Children = append(s.Children, m.nodes[c].ID)
		}
		for _, a := range n.Config.Entry {
			s.Entry = append(s.Entry, core.RefName(a))
		}
		for _, a := range n.Config.Exit {
			s.Exit = append(s.Exit, core.RefName(a))
		}
		out.States = append(out.States, s)
	}
	return json.MarshalIndent(out, "", "  ")
}
