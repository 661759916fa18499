package vaultd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type auditParquetRow struct {
	ID        string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Seq       int64  `parquet:"name=seq, type=INT64"`
	Operation string `parquet:"name=operation, type=BYTE_ARRAY, convertedtype=UTF8"`
	Vault     string `parquet:"name=vault, type=BYTE_ARRAY, convertedtype=UTF8"`
	Caller    string `parquet:"name=caller, type=BYTE_ARRAY, convertedtype=UTF8"`
	Outcome   string `parquet:"name=outcome, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount    string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	Events    string `parquet:"name=events, type=BYTE_ARRAY, convertedtype=UTF8"`
	PrevHash  string `parquet:"name=prev_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	Hash      string `parquet:"name=hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportResult describes a written audit export.
type ExportResult struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// ExportAudit writes the audit records matching filter to a parquet file in
// dir. The file name carries the export time.
func ExportAudit(ctx context.Context, log *AuditLog, filter AuditFilter, dir string, now time.Time) (ExportResult, error) {
	records, err := log.List(ctx, filter)
	if err != nil {
		return ExportResult{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportResult{}, fmt.Errorf("vaultd: create export dir: %w", err)
	}
	name := fmt.Sprintf("vault-audit-%s.parquet", now.UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	if err := writeAuditParquet(path, records); err != nil {
		return ExportResult{}, err
	}
	return ExportResult{Path: path, Rows: len(records)}, nil
}

func writeAuditParquet(path string, records []AuditRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vaultd: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(auditParquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("vaultd: parquet schema: %w", err)
	}
	pw.RowGroupSize = 16 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, record := range records {
		row := &auditParquetRow{
			ID:        record.ID.String(),
			Seq:       int64(record.Seq),
			Operation: record.Operation,
			Vault:     record.Vault,
			Caller:    record.Caller,
			Outcome:   record.Outcome,
			Amount:    record.Amount,
			Events:    record.Events,
			PrevHash:  record.PrevHash,
			Hash:      record.Hash,
			CreatedAt: record.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("vaultd: write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("vaultd: finalize parquet: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("vaultd: close parquet: %w", err)
	}
	return nil
}
