package raster

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
)

// NoDataValue is written for null cells.
const NoDataValue = -9999

// ReadASCII loads an Esri ASCII grid. Corner and center registered headers
// are both accepted.
func ReadASCII(path string) (*Grid, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raster %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	scanner.Split(bufio.ScanWords)

	header := map[string]float64{}
	var first string
	for scanner.Scan() {
		key := strings.ToLower(scanner.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = key
			break
		}
		if !scanner.Scan() {
			return nil, fmt.Errorf("raster %s: truncated header at %s", path, key)
		}
		value, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("raster %s: invalid header %s: %w", path, key, err)
		}
		header[key] = value
	}

	cols, rows := int(header["ncols"]), int(header["nrows"])
	cellSize := header["cellsize"]
	if cols <= 0 || rows <= 0 || cellSize <= 0 {
		return nil, fmt.Errorf("raster %s: invalid header (ncols %d, nrows %d, cellsize %g)", path, cols, rows, cellSize)
	}
	origin := r2.Point{X: header["xllcorner"], Y: header["yllcorner"]}
	if _, ok := header["xllcenter"]; ok {
		origin.X = header["xllcenter"] - cellSize/2
	}
	if _, ok := header["yllcenter"]; ok {
		origin.Y = header["yllcenter"] - cellSize/2
	}
	noData, hasNoData := header["nodata_value"]

	g := New(cols, rows, origin, cellSize)
	i := 0
	parse := func(token string) error {
		if i >= len(g.Cells) {
			return fmt.Errorf("raster %s: more than %d values", path, len(g.Cells))
		}
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return fmt.Errorf("raster %s: invalid value %q: %w", path, token, err)
		}
		if hasNoData && v == noData {
			v = Null
		}
		g.Cells[i] = v
		i++
		return nil
	}
	if first != "" {
		if err := parse(first); err != nil {
			return nil, err
		}
	}
	for scanner.Scan() {
		if err := parse(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read raster %s: %w", path, err)
	}
	if i != len(g.Cells) {
		return nil, fmt.Errorf("raster %s: expected %d values, got %d", path, len(g.Cells), i)
	}
	return g, nil
}

// WriteASCII stores g as an Esri ASCII grid.
func WriteASCII(path string, g *Grid) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create raster %s: %w", path, err)
	}
	w := bufio.NewWriter(file)

	fmt.Fprintf(w, "ncols %d\nnrows %d\n", g.Cols, g.Rows)
	fmt.Fprintf(w, "xllcorner %s\nyllcorner %s\n", formatValue(g.Origin.X), formatValue(g.Origin.Y))
	fmt.Fprintf(w, "cellsize %s\nNODATA_value %d\n", formatValue(g.CellSize), NoDataValue)
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if col > 0 {
				w.WriteByte(' ')
			}
			v := g.At(col, row)
			if IsNull(v) || math.IsInf(v, 0) {
				w.WriteString(strconv.Itoa(NoDataValue))
				continue
			}
			w.WriteString(formatValue(v))
		}
		w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write raster %s: %w", path, err)
	}
	return file.Close()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
