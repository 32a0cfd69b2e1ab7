package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cathedral/cathedral/internal/app"
	"github.com/cathedral/cathedral/internal/history"
)

var (
	exportFormat string
	exportOutput string
	exportOnly   string
)

type exportedMessage struct {
	Role      string `json:"role" yaml:"role"`
	Content   string `json:"content" yaml:"content"`
	Image     string `json:"image,omitempty" yaml:"image,omitempty"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
}

type exportedSession struct {
	ID       string            `json:"id" yaml:"id"`
	Name     string            `json:"name" yaml:"name"`
	Messages []exportedMessage `json:"messages" yaml:"messages"`
}

type exportDocument struct {
	Persona  string            `json:"persona" yaml:"persona"`
	Sessions []exportedSession `json:"sessions" yaml:"sessions"`
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Work with stored conversations",
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions with their messages in chronological order",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(strings.TrimSpace(exportFormat))
		if format != "json" && format != "yaml" {
			return fmt.Errorf("unsupported format %q (expected json or yaml)", exportFormat)
		}
		return withStores(cmd, func(ctx context.Context, st app.Stores) error {
			doc := buildExport(ctx, st, exportOnly)

			out := cmd.OutOrStdout()
			if exportOutput != "" {
				f, err := os.Create(exportOutput)
				if err != nil {
					return fmt.Errorf("create %s: %w", exportOutput, err)
				}
				defer f.Close()
				out = f
			}
			return writeExport(out, format, doc)
		})
	},
}

func buildExport(ctx context.Context, st app.Stores, only string) exportDocument {
	doc := exportDocument{Persona: st.Persona.Namespace, Sessions: []exportedSession{}}
	for _, s := range st.Sessions.List(ctx) {
		if only != "" && s.ID != only {
			continue
		}
		msgs := st.History.Chronological(ctx, s.ID)
		es := exportedSession{ID: s.ID, Name: s.Name, Messages: make([]exportedMessage, 0, len(msgs))}
		for _, m := range msgs {
			es.Messages = append(es.Messages, toExported(m))
		}
		doc.Sessions = append(doc.Sessions, es)
	}
	return doc
}

func toExported(m history.Message) exportedMessage {
	out := exportedMessage{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
	if m.Image != nil {
		out.Image = *m.Image
	}
	return out
}

func writeExport(w io.Writer, format string, doc exportDocument) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func init() {
	historyExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json or yaml")
	historyExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	historyExportCmd.Flags().StringVar(&exportOnly, "session", "", "Export only this session id")
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
