package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ErrMissingFile is returned when a required file is absent from the zip.
var ErrMissingFile = errors.New("gtfs: required file missing")

var required = []string{"stops.txt", "trips.txt", "stop_times.txt"}

// ParseBytes reads a GTFS zip held in memory.
func ParseBytes(data []byte) (*Feed, error) {
	return Parse(bytes.NewReader(data), int64(len(data)))
}

// LoadFile opens a local GTFS zip.
func LoadFile(path string) (*Feed, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open gtfs %s: %w", path, err)
	}
	defer zr.Close()
	return parseZip(&zr.Reader)
}

// Parse reads a GTFS zip from r.
func Parse(r io.ReaderAt, size int64) (*Feed, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open gtfs zip: %w", err)
	}
	return parseZip(zr)
}

// Fetch downloads a GTFS zip.
func Fetch(ctx context.Context, client *http.Client, url string) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return ParseBytes(data)
}

func parseZip(zr *zip.Reader) (*Feed, error) {
	files := map[string]*zip.File{}
	for _, f := range zr.File {
		name := strings.ToLower(f.Name[strings.LastIndex(f.Name, "/")+1:])
		files[name] = f
	}
	for _, name := range required {
		if files[name] == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, name)
		}
	}
	g := newFeed()
	// trips before stop_times so times attach to known trips
	for _, name := range []string{"agency.txt", "stops.txt", "routes.txt", "trips.txt", "stop_times.txt"} {
		f := files[name]
		if f == nil {
			continue
		}
		if err := g.consumeCSV(name, f); err != nil {
			return nil, fmt.Errorf("gtfs %s: %w", name, err)
		}
	}
	for _, t := range g.trips {
		sort.SliceStable(t.StopTimes, func(i, j int) bool { return t.StopTimes[i].Sequence < t.StopTimes[j].Sequence })
	}
	return g, nil
}

func (g *Feed) consumeCSV(name string, f *zip.File) error {
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	rec, err := csvr.ReadAll()
	if err != nil {
		return err
	}
	if len(rec) == 0 {
		return nil
	}
	head := rec[0]
	if len(head) > 0 {
		head[0] = strings.TrimPrefix(head[0], "\ufeff")
	}
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				return i
			}
		}
		return -1
	}
	field := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	switch name {
	case "agency.txt":
		if len(rec) > 1 {
			g.AgencyID = field(rec[1], idx("agency_id"))
			g.AgencyName = field(rec[1], idx("agency_name"))
			g.AgencyTZ = field(rec[1], idx("agency_timezone"))
		}
	case "stops.txt":
		sID, sN, sLat, sLon := idx("stop_id"), idx("stop_name"), idx("stop_lat"), idx("stop_lon")
		for _, row := range rec[1:] {
			id := field(row, sID)
			if id == "" {
				continue
			}
			lat, _ := strconv.ParseFloat(field(row, sLat), 64)
			lon, _ := strconv.ParseFloat(field(row, sLon), 64)
			g.stops[id] = Stop{ID: id, Name: field(row, sN), Point: orb.Point{lon, lat}}
		}
	case "routes.txt":
		rID, rSN, rLN, rType := idx("route_id"), idx("route_short_name"), idx("route_long_name"), idx("route_type")
		for _, row := range rec[1:] {
			id := field(row, rID)
			if id == "" {
				continue
			}
			typ, _ := strconv.Atoi(field(row, rType))
			g.routes[id] = Route{ID: id, ShortName: field(row, rSN), LongName: field(row, rLN), Type: typ}
		}
	case "trips.txt":
		rID, tID, hs, dir := idx("route_id"), idx("trip_id"), idx("trip_headsign"), idx("direction_id")
		for _, row := range rec[1:] {
			id := field(row, tID)
			if id == "" {
				continue
			}
			g.trips[id] = &Trip{ID: id, RouteID: field(row, rID), Headsign: field(row, hs), Direction: field(row, dir)}
		}
	case "stop_times.txt":
		tID, sID, sq := idx("trip_id"), idx("stop_id"), idx("stop_sequence")
		arr, dep := idx("arrival_time"), idx("departure_time")
		if tID < 0 || sID < 0 || sq < 0 {
			return fmt.Errorf("missing trip_id, stop_id or stop_sequence column")
		}
		for _, row := range rec[1:] {
			t := g.trips[field(row, tID)]
			if t == nil {
				continue
			}
			seq, err := strconv.Atoi(field(row, sq))
			if err != nil {
				return fmt.Errorf("trip %s: bad stop_sequence %q", t.ID, field(row, sq))
			}
			t.StopTimes = append(t.StopTimes, StopTime{
				StopID:    field(row, sID),
				Sequence:  seq,
				Arrival:   ParseClock(field(row, arr)),
				Departure: ParseClock(field(row, dep)),
			})
		}
	}
	return nil
}

// ParseClock converts a GTFS HH:MM:SS time to seconds after midnight.
// Hours may exceed 23 for trips past midnight. It returns -1 for an empty
// or malformed value.
func ParseClock(s string) int {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return -1
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return -1
		}
		v[i] = n
	}
	if v[1] > 59 || v[2] > 59 {
		return -1
	}
	return v[0]*3600 + v[1]*60 + v[2]
}
