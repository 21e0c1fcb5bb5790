package pipeline

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/lucasjlepore/cyclelife"
)

// featureParquetSchema mirrors the report columns plus the dataset kind. The
// feature columns are generated from the catalogue, so the CSV-style writer with
// string metadata is used instead of a tagged struct.
func featureParquetSchema() []string {
	md := []string{
		"name=battery_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY",
		"name=dataset, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY",
	}
	for _, name := range cyclelife.FeatureNames() {
		md = append(md, fmt.Sprintf("name=%s, type=DOUBLE", name))
	}
	return append(md, "name=cycle_life, type=INT64")
}

func writeFeaturesParquet(path string, rows []Row) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	pw, err := writer.NewCSVWriter(featureParquetSchema(), fw, 4)
	if err != nil {
		_ = fw.Close()
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		rec := make([]interface{}, 0, cyclelife.FeatureCount+3)
		rec = append(rec, r.BatteryID, string(r.Dataset))
		for _, v := range r.Features {
			rec = append(rec, v)
		}
		rec = append(rec, int64(r.CycleLife))
		if err := pw.Write(rec); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}
