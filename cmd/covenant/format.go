package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"covenant"
	"covenant/internal/graph"
	"covenant/internal/registry"
	"covenant/internal/track"
)

var validFormats = []string{"json", "text"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

// output writes v as indented JSON or hands it to the text formatter,
// per the --format flag.
func output[T any](v T, text func(io.Writer, T)) error {
	if flagFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(os.Stdout, v)
	return nil
}

func formatValidationText(w io.Writer, r *covenant.ValidationReport) {
	if r.Aligned {
		fmt.Fprintf(w, "OK %s", r.Manifest)
		if r.File != "" {
			fmt.Fprintf(w, " (%s, %s mode, %s)", r.File, r.Mode, r.Category)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "FAIL %s (%s mode)\n", r.Manifest, r.Mode)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tARTIFACT\tDETAIL")
		for _, e := range r.Errors {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Kind, e.Artifact, e.Detail)
		}
		tw.Flush()
	}
	if len(r.Commands) > 0 {
		fmt.Fprintln(w, "validation commands:")
		for _, argv := range r.Commands {
			fmt.Fprintf(w, "  %s\n", strings.Join(argv, " "))
		}
	}
}

// graphReport is the CLI projection of a built graph.
type graphReport struct {
	Nodes     int            `json:"nodes"`
	Edges     int            `json:"edges"`
	NodeTypes map[string]int `json:"nodeTypes"`
	EdgeTypes map[string]int `json:"edgeTypes"`
}

func graphSummary(g *covenant.Graph) graphReport {
	report := graphReport{
		Nodes:     g.NodeCount(),
		Edges:     g.EdgeCount(),
		NodeTypes: make(map[string]int),
		EdgeTypes: make(map[string]int),
	}
	for _, n := range g.Nodes() {
		report.NodeTypes[string(n.Type)]++
	}
	for _, e := range g.Edges() {
		report.EdgeTypes[string(e.Type)]++
	}
	return report
}

func formatGraphText(w io.Writer, r graphReport) {
	fmt.Fprintf(w, "%d nodes, %d edges\n", r.Nodes, r.Edges)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, typ := range []graph.NodeType{graph.NodeManifest, graph.NodeFile, graph.NodeModule, graph.NodeArtifact} {
		if n := r.NodeTypes[string(typ)]; n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", typ, n)
		}
	}
	for _, typ := range []graph.EdgeType{
		graph.EdgeSupersedes, graph.EdgeCreates, graph.EdgeEdits, graph.EdgeReads,
		graph.EdgeDefines, graph.EdgeDeclares, graph.EdgeContains,
	} {
		if n := r.EdgeTypes[string(typ)]; n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", typ, n)
		}
	}
	tw.Flush()
}

func formatTrackingText(w io.Writer, r *track.Report) {
	fmt.Fprintf(w, "%d files: %d tracked, %d registered, %d undeclared\n",
		r.Total(), len(r.Tracked), len(r.Registered), len(r.Undeclared))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tFILE\tISSUES")
	for _, bucket := range [][]track.FileStatus{r.Tracked, r.Registered, r.Undeclared} {
		for _, f := range bucket {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", f.State, f.Path, strings.Join(f.Issues, "; "))
		}
	}
	tw.Flush()
}

// manifestRow is one line of the manifests listing.
type manifestRow struct {
	Task     int    `json:"task"`
	Goal     string `json:"goal"`
	TaskType string `json:"taskType"`
	Path     string `json:"path"`
}

type manifestListing struct {
	Manifests []manifestRow    `json:"manifests"`
	Issues    []registry.Issue `json:"issues,omitempty"`
}

func formatManifestsText(w io.Writer, l manifestListing) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tTYPE\tGOAL\tPATH")
	for _, m := range l.Manifests {
		fmt.Fprintf(tw, "%03d\t%s\t%s\t%s\n", m.Task, m.TaskType, m.Goal, m.Path)
	}
	tw.Flush()
	for _, issue := range l.Issues {
		fmt.Fprintf(w, "warning: %s\n", issue)
	}
}
