package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/ingest"
)

var (
	parseOutput string
	chunkOutput string
)

// parseCmd splits a statute text file into per-article records.
var parseCmd = &cobra.Command{
	Use:   "parse <statute.txt>",
	Short: "Split a statute text file into structured articles",
	Long: `Reads a plain-text statute, strips page noise, and splits it into
articles with their chapter and section context. The result is written
as an articles JSON file for the chunk step.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		articles, err := ingest.ParseFile(args[0])
		if err != nil {
			fail(err)
		}
		if err := ingest.WriteArticles(parseOutput, articles); err != nil {
			fail(err)
		}
		fmt.Printf("Parsed %d articles into %s\n", len(articles), parseOutput)
	},
}

// chunkCmd cuts articles into clause-level chunks.
var chunkCmd = &cobra.Command{
	Use:   "chunk <articles.json>",
	Short: "Cut articles into clause-level chunks",
	Long: `Splits each article into one chunk per clause. Articles with a single
clause or none stay whole. Every chunk text is prefixed with its position
in the code (chapter, section, article, clause) so embeddings carry the
hierarchy.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		articles, err := ingest.ReadArticles(args[0])
		if err != nil {
			fail(err)
		}
		chunks := ingest.ChunkAll(articles)
		if err := ingest.WriteChunks(chunkOutput, chunks); err != nil {
			fail(err)
		}
		fmt.Printf("Created %d chunks from %d articles into %s\n", len(chunks), len(articles), chunkOutput)
	},
}

func init() {
	parseCmd.Flags().StringVarP(&parseOutput, "output", "o", "data/processed/articles.json", "Output articles JSON file")
	chunkCmd.Flags().StringVarP(&chunkOutput, "output", "o", "data/processed/chunks.json", "Output chunks JSON file")
}
