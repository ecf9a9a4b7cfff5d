package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "notion-proxy",
	Short: "HTTP proxy that assembles renderable Notion pages",
	Long: `notion-proxy exposes Notion pages as a single JSON block graph. For each
request it expands the blocks transitively referenced by the page and resolves
at most one embedded collection, under a hard per-request budget of outbound
Notion API calls.`,
}
