// Package export renders cached weather history as CSV for admin download.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ardaweather/weather-dashboard/internal/observability"
	"github.com/ardaweather/weather-dashboard/internal/store"
)

// ErrNoData indicates that none of the selected cities had samples in the
// requested range.
var ErrNoData = errors.New("no data to export")

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Builder assembles CSV exports from cached history.
type Builder struct {
	cacheStore store.Store
	units      string
	logger     *zap.Logger
}

func NewBuilder(cacheStore store.Store, units string, logger *zap.Logger) *Builder {
	return &Builder{cacheStore: cacheStore, units: units, logger: logger}
}

// Build renders the export for the selected cities over [from, to].
// Cities with no samples in range are skipped and reported back; the
// export proceeds with whatever remains. ErrNoData is returned only when
// every city came up empty.
//
// The delimiter is a semicolon for multi-city exports and a comma for a
// single city. Rows are keyed by date+time and sorted ascending; a city
// with no sample at a given timestamp leaves its cells empty.
func (b *Builder) Build(ctx context.Context, cities []string, from, to time.Time) ([]byte, []string, error) {
	type rowData map[string]string

	rows := map[string]rowData{}
	skipped := []string{}

	for _, city := range cities {
		samples, err := b.cacheStore.RangeQuery(ctx, store.NormalizeCity(city), from, to)
		if err != nil {
			return nil, nil, fmt.Errorf("range query for %s: %w", city, err)
		}
		if len(samples) == 0 {
			skipped = append(skipped, city)
			observability.ExportCitySkippedTotal.Inc()
			b.logger.Info("no data for city, skipping", zap.String("city", city))
			continue
		}
		for _, s := range samples {
			key := s.Time.Format(dateLayout) + " " + s.Time.Format(timeLayout)
			row, ok := rows[key]
			if !ok {
				row = rowData{
					"Date": s.Time.Format(dateLayout),
					"Time": s.Time.Format(timeLayout),
				}
				rows[key] = row
			}
			row[city+"_Temp"] = b.formatTemp(s.Temp)
			row[city+"_Condition"] = s.Description
			row[city+"_Humidity"] = strconv.Itoa(s.Humidity) + "%"
			row[city+"_Wind"] = b.formatWind(s.WindSpeed)
		}
	}

	if len(rows) == 0 {
		return nil, skipped, ErrNoData
	}

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := []string{"Date", "Time"}
	for _, city := range cities {
		headers = append(headers,
			city+"_Temp", city+"_Condition", city+"_Humidity", city+"_Wind")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if len(cities) == 1 {
		w.Comma = ','
	}

	if err := w.Write(headers); err != nil {
		return nil, nil, fmt.Errorf("write export header: %w", err)
	}
	for _, k := range keys {
		row := rows[k]
		record := make([]string, len(headers))
		for i, h := range headers {
			record[i] = row[h]
		}
		if err := w.Write(record); err != nil {
			return nil, nil, fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, nil, fmt.Errorf("flush export: %w", err)
	}

	observability.ExportsTotal.Inc()
	return buf.Bytes(), skipped, nil
}

// Filename returns the download name for an export generated at ts,
// with the characters that are unsafe in filenames replaced.
func Filename(ts time.Time) string {
	stamp := ts.UTC().Format("2006-01-02T15-04-05Z")
	return "weather_export_" + stamp + ".csv"
}

func (b *Builder) formatTemp(temp float64) string {
	unit := "C"
	if b.units == "imperial" {
		unit = "F"
	}
	return strconv.FormatFloat(temp, 'f', -1, 64) + "°" + unit
}

func (b *Builder) formatWind(speed float64) string {
	unit := "km/h"
	if b.units == "imperial" {
		unit = "mph"
	}
	return strconv.FormatFloat(speed, 'f', -1, 64) + " " + unit
}
