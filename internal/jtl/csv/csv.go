// Package csv implements jtl.Parser against JMeter's CSV results format
// (the "saveservice" default: timeStamp,elapsed,label,responseCode,
// responseMessage,threadName,dataType,success,bytes,...). As with
// internal/testplan/jmx, nothing in the corpus parses this domain format,
// so this reaches for the standard library's encoding/csv rather than
// inventing a third-party dependency to stand in for one.
package csv

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/jtl"
)

type Parser struct{}

func New() *Parser { return &Parser{} }

// columnIndex maps the header names this parser needs to their position in
// a row; any other columns JMeter writes (responseCode, threadName, ...)
// are ignored.
type columnIndex struct {
	timeStamp, elapsed, label, success, bytes int
}

func indexColumns(header []string) (columnIndex, error) {
	idx := columnIndex{-1, -1, -1, -1, -1}
	for i, name := range header {
		switch name {
		case "timeStamp":
			idx.timeStamp = i
		case "elapsed":
			idx.elapsed = i
		case "label":
			idx.label = i
		case "success":
			idx.success = i
		case "bytes":
			idx.bytes = i
		}
	}
	missing := map[string]int{"timeStamp": idx.timeStamp, "elapsed": idx.elapsed, "label": idx.label, "success": idx.success}
	for name, i := range missing {
		if i == -1 {
			return idx, errors.Errorf("jtl header missing required column %q", name)
		}
	}
	return idx, nil
}

// Parse reads a JMeter CSV .jtl file into Samples, in file order.
func (p *Parser) Parse(path string) ([]jtl.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening jtl file %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "reading jtl header in %s", path)
	}
	idx, err := indexColumns(header)
	if err != nil {
		return nil, errors.Wrapf(err, "in %s", path)
	}

	var samples []jtl.Sample
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading jtl row in %s", path)
		}
		sample, err := parseRow(row, idx)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing jtl row in %s", path)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func parseRow(row []string, idx columnIndex) (jtl.Sample, error) {
	millis, err := strconv.ParseInt(row[idx.timeStamp], 10, 64)
	if err != nil {
		return jtl.Sample{}, errors.Wrap(err, "parsing timeStamp")
	}
	elapsed, err := strconv.ParseFloat(row[idx.elapsed], 64)
	if err != nil {
		return jtl.Sample{}, errors.Wrap(err, "parsing elapsed")
	}
	var bytesRead int64
	if idx.bytes >= 0 && idx.bytes < len(row) {
		bytesRead, _ = strconv.ParseInt(row[idx.bytes], 10, 64)
	}
	return jtl.Sample{
		Label:        row[idx.label],
		Timestamp:    time.UnixMilli(millis),
		ResponseTime: elapsed,
		Success:      row[idx.success] == "true",
		Bytes:        bytesRead,
	}, nil
}
