package etl

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fortune/internal/store"
)

// FortuneRow matches the Athena table over the export prefix.
type FortuneRow struct {
	ID          string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	UserID      string `parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Category    string `parquet:"name=category, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Language    string `parquet:"name=language, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Fortune     string `parquet:"name=fortune, type=BYTE_ARRAY, convertedtype=UTF8"`
	HasElements bool   `parquet:"name=has_elements, type=BOOLEAN"`
	Wood        int32  `parquet:"name=wood, type=INT32"`
	Fire        int32  `parquet:"name=fire, type=INT32"`
	Earth       int32  `parquet:"name=earth, type=INT32"`
	Metal       int32  `parquet:"name=metal, type=INT32"`
	Water       int32  `parquet:"name=water, type=INT32"`
	CreatedAt   string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func rowFromRecord(r store.Record) FortuneRow {
	row := FortuneRow{
		ID:        r.ID,
		UserID:    r.UserID,
		Category:  string(r.Category),
		Language:  string(r.Language),
		Fortune:   r.Result.Fortune,
		CreatedAt: r.CreatedAt,
	}
	if e := r.Result.Elements; e != nil {
		row.HasElements = true
		row.Wood, row.Fire, row.Earth = int32(e.Wood), int32(e.Fire), int32(e.Earth)
		row.Metal, row.Water = int32(e.Metal), int32(e.Water)
	}
	return row
}

type RecordScanner interface {
	ScanCreatedOn(ctx context.Context, day string) ([]store.Record, error)
}

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

const maxDaysBack = 90

type ExportOptions struct {
	Bucket   string
	Prefix   string
	DaysBack int
}

// FortuneExport copies each day's fortune records into one Parquet object
// under <prefix>dt=YYYY-MM-DD/.
type FortuneExport struct {
	records RecordScanner
	s3      ObjectPutter
	opts    ExportOptions
	log     *zap.Logger
	now     func() time.Time
}

func NewFortuneExport(records RecordScanner, s3c ObjectPutter, opts ExportOptions, log *zap.Logger) *FortuneExport {
	if opts.Prefix == "" {
		opts.Prefix = "fortunes/"
	}
	switch {
	case opts.DaysBack <= 0:
		opts.DaysBack = 1
	case opts.DaysBack > maxDaysBack:
		opts.DaysBack = maxDaysBack
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FortuneExport{records: records, s3: s3c, opts: opts, log: log, now: time.Now}
}

type ExportResult struct {
	OK       bool   `json:"ok"`
	DaysBack int    `json:"days_back"`
	Files    int    `json:"files"`
	Rows     int    `json:"rows"`
	Bucket   string `json:"bucket"`
	Prefix   string `json:"prefix"`
}

// Run exports the last DaysBack UTC days, today included. Days are exported
// concurrently; the first failure cancels the rest.
func (e *FortuneExport) Run(ctx context.Context) (ExportResult, error) {
	if e.opts.Bucket == "" {
		return ExportResult{}, fmt.Errorf("missing env ANALYTICS_BUCKET")
	}

	var files, rows atomic.Int64
	today := e.now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := 0; i < e.opts.DaysBack; i++ {
		day := today.AddDate(0, 0, -i).Format("2006-01-02")
		g.Go(func() error {
			n, err := e.exportDay(gctx, day)
			if err != nil {
				return fmt.Errorf("export dt=%s: %w", day, err)
			}
			if n > 0 {
				files.Add(1)
				rows.Add(int64(n))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ExportResult{}, err
	}

	return ExportResult{
		OK:       true,
		DaysBack: e.opts.DaysBack,
		Files:    int(files.Load()),
		Rows:     int(rows.Load()),
		Bucket:   e.opts.Bucket,
		Prefix:   e.opts.Prefix,
	}, nil
}

func (e *FortuneExport) exportDay(ctx context.Context, day string) (int, error) {
	recs, err := e.records.ScanCreatedOn(ctx, day)
	if err != nil {
		return 0, err
	}

	rows := make([]FortuneRow, 0, len(recs))
	for _, r := range recs {
		if r.CreatedDay() != day {
			e.log.Warn("record outside partition", zap.String("dt", day), zap.String("id", r.ID), zap.String("created_at", r.CreatedAt))
			continue
		}
		rows = append(rows, rowFromRecord(r))
	}
	if len(rows) == 0 {
		e.log.Info("no records", zap.String("dt", day))
		return 0, nil
	}
	data, err := encodeParquet(rows)
	if err != nil {
		return 0, err
	}

	key := fmt.Sprintf("%sdt=%s/part-%s.parquet", ensureTrailingSlash(e.opts.Prefix), day, randHex(8))
	_, err = e.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		ACL:         s3types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return 0, fmt.Errorf("s3 putobject %s: %w", key, err)
	}
	e.log.Info("exported", zap.String("dt", day), zap.String("key", key), zap.Int("rows", len(rows)))
	return len(rows), nil
}

// encodeParquet writes rows through a temp file, the only sink parquet-go's
// local source offers, and returns the file bytes.
func encodeParquet(rows []FortuneRow) ([]byte, error) {
	localPath := filepath.Join(os.TempDir(), "fortunes_"+randHex(8)+".parquet")
	defer func() { _ = os.Remove(localPath) }()

	fw, err := local.NewLocalFileWriter(localPath)
	if err != nil {
		return nil, fmt.Errorf("parquet file writer: %w", err)
	}
	pw, err := writer.NewParquetWriter(fw, new(FortuneRow), 1)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024
	pw.CompressionType = 0

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return nil, fmt.Errorf("parquet write row %s: %w", row.ID, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("parquet write stop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("parquet close: %w", err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("read parquet tmp: %w", err)
	}
	return data, nil
}

func ensureTrailingSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
