package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/Strob0t/agentmesh/internal/domain/agent"
)

// printAgents writes the resolved agents as a table sorted by URL.
func printAgents(w io.Writer, agents map[string]agent.Descriptor) error {
	if len(agents) == 0 {
		_, err := fmt.Fprintln(w, "no reachable agents")
		return err
	}

	urls := make([]string, 0, len(agents))
	for u := range agents {
		urls = append(urls, u)
	}
	slices.Sort(urls)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tNAME\tVERSION\tSKILLS")
	for _, u := range urls {
		d := agents[u]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u, d.Name, d.Version, strings.Join(d.SkillNames(), ", "))
	}
	return tw.Flush()
}
