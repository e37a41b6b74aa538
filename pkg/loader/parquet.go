package loader

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"

	"github.com/system0x7/dt/pkg/schema"
	"github.com/system0x7/dt/pkg/table"
)

var codecs = map[string]parquet.CompressionCodec{
	"":             parquet.CompressionCodec_SNAPPY,
	"snappy":       parquet.CompressionCodec_SNAPPY,
	"gzip":         parquet.CompressionCodec_GZIP,
	"none":         parquet.CompressionCodec_UNCOMPRESSED,
	"uncompressed": parquet.CompressionCodec_UNCOMPRESSED,
}

func readParquet(ctx context.Context, path string) (*table.Table, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer fr.Close()

	df, err := imports.LoadFromParquet(ctx, fr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyFile
	}

	cols := make([]schema.Column, len(df.Series))
	data := make([][]any, len(df.Series))
	for i, s := range df.Series {
		n := s.NRows()
		vals := make([]any, n)
		for r := 0; r < n; r++ {
			vals[r] = parquetValue(s.Value(r))
		}
		cols[i] = schema.Column{Name: s.Name(), Type: table.InferType(vals)}
		data[i] = vals
	}
	sch, err := schema.New(cols...)
	if err != nil {
		return nil, err
	}
	return table.New(sch, data)
}

// parquetValue narrows the physical types parquet columns decode to.
func parquetValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	}
	return v
}

// writeParquet writes t with the named codec. Boolean columns are stored
// as text.
func writeParquet(ctx context.Context, w io.Writer, t *table.Table, compression string) error {
	codec, ok := codecs[strings.ToLower(compression)]
	if !ok {
		return fmt.Errorf("%w: compression '%s' (use snappy, gzip or none)", ErrInvalidOption, compression)
	}
	if err := exports.ExportToParquet(ctx, w, t.Frame(), exports.ParquetExportOptions{
		CompressionType: &codec,
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}
