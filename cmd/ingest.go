package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"case-rag/internal/helper"
	"case-rag/internal/ingest"
)

var (
	ingestCaseID string
	ingestFiles  []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Upload, chunk and embed documents into a case",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCaseID, "case", "", "case id the documents belong to")
	ingestCmd.Flags().StringSliceVarP(&ingestFiles, "file", "f", nil, "document file to ingest (repeatable)")
	_ = ingestCmd.MarkFlagRequired("case")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.ingestService()
	for _, path := range ingestFiles {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return err
		}

		ref, err := svc.Ingest(ctx, ingest.Upload{
			CaseID:      ingestCaseID,
			FileName:    filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Reader:      f,
			Size:        info.Size(),
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		if err := helper.PrettyPrint(cmd.OutOrStdout(), ref); err != nil {
			return err
		}
	}
	return nil
}
