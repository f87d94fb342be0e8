package tui

import (
	"fmt"
	"strings"

	"collab-hub/internal/hierarchy"
)

func renderSnapshot(snapshot hierarchy.Snapshot, showEdges bool) string {
	var b strings.Builder
	for _, root := range snapshot.Roots {
		renderNode(&b, root, "", true, true)
	}
	if showEdges && len(snapshot.CollaborationEdges) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Collaboration"))
		b.WriteString("\n")
		for _, edge := range snapshot.CollaborationEdges {
			b.WriteString(renderEdge(edge))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderNode(b *strings.Builder, node *hierarchy.Node, prefix string, last, root bool) {
	connector := "├─ "
	childPrefix := prefix + "│  "
	if last {
		connector = "└─ "
		childPrefix = prefix + "   "
	}
	if root {
		connector = ""
		childPrefix = "   "
	}
	b.WriteString(prefix + connector + nodeLine(node) + "\n")
	for i, child := range node.Children {
		renderNode(b, child, childPrefix, i == len(node.Children)-1, false)
	}
}

func nodeLine(node *hierarchy.Node) string {
	line := node.SessionKey
	if node.Label != "" {
		line = fmt.Sprintf("%s %s", node.SessionKey, dimStyle.Render(previewText(node.Label, 40)))
	}
	if node.Status != "" {
		line = statusGlyph(node.Status) + " " + line
	}
	if node.AgentID != "" {
		line += dimStyle.Render(" [" + node.AgentID + "]")
	}
	if node.Usage.InputTokens > 0 || node.Usage.OutputTokens > 0 {
		line += dimStyle.Render(fmt.Sprintf(" %d/%d tok", node.Usage.InputTokens, node.Usage.OutputTokens))
	}
	return line
}

func statusGlyph(status hierarchy.RunStatus) string {
	switch status {
	case hierarchy.RunRunning:
		return runningStyle.Render("●")
	case hierarchy.RunCompleted:
		return completedStyle.Render("✓")
	case hierarchy.RunFailed:
		return failedStyle.Render("✗")
	default:
		return dimStyle.Render("○")
	}
}

func renderEdge(edge hierarchy.Edge) string {
	line := fmt.Sprintf("%s ─%s→ %s", edge.Source, edge.Type, edge.Target)
	if edge.Topic != "" {
		line += dimStyle.Render("  (" + previewText(edge.Topic, 40) + ")")
	}
	return edgeStyle.Render(line)
}

func previewText(text string, limit int) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
