package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/spf13/afero"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
)

const (
	DailyFile = "electricity_data_daily.csv"
	TodayFile = "electricity_data_today.csv"
)

// CSV stores both tables as human-readable CSV files under one directory.
// Files are rewritten whole through a temp file and rename.
type CSV struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

func NewCSV(fs afero.Fs, dir string) *CSV {
	return &CSV{fs: fs, dir: dir}
}

func (r *CSV) LoadDaily(_ context.Context) (domain.DailyHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadDaily()
}

func (r *CSV) loadDaily() (domain.DailyHistory, error) {
	data, err := afero.ReadFile(r.fs, filepath.Join(r.dir, DailyFile))
	if errors.Is(err, os.ErrNotExist) {
		return domain.DailyHistory{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read daily history: %w", err)
	}
	return DecodeDaily(bytes.NewReader(data))
}

func (r *CSV) SaveDaily(_ context.Context, day domain.Day, readings map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	history, err := r.loadDaily()
	if err != nil {
		return err
	}
	for id, v := range readings {
		history.Put(id, day, v)
	}
	data, err := EncodeDaily(history)
	if err != nil {
		return err
	}
	return r.writeAtomic(DailyFile, data)
}

func (r *CSV) LoadToday(_ context.Context) (domain.Day, domain.TodaySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := afero.ReadFile(r.fs, filepath.Join(r.dir, TodayFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", domain.TodaySnapshot{}, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("read working set: %w", err)
	}
	return decodeToday(bytes.NewReader(data))
}

func (r *CSV) SaveToday(_ context.Context, day domain.Day, snap domain.TodaySnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := encodeToday(day, snap)
	if err != nil {
		return err
	}
	return r.writeAtomic(TodayFile, data)
}

func (r *CSV) writeAtomic(name string, data []byte) error {
	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := afero.TempFile(r.fs, r.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		r.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		r.fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := r.fs.Rename(tmpName, filepath.Join(r.dir, name)); err != nil {
		r.fs.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// EncodeDaily renders history as "date,<meter...>" rows sorted by date.
func EncodeDaily(h domain.DailyHistory) ([]byte, error) {
	meters := make([]string, 0, len(h))
	daySet := map[domain.Day]struct{}{}
	for id, days := range h {
		meters = append(meters, id)
		for d := range days {
			daySet[d] = struct{}{}
		}
	}
	sort.Strings(meters)
	days := make([]string, 0, len(daySet))
	for d := range daySet {
		days = append(days, string(d))
	}
	sort.Strings(days)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append([]string{"date"}, meters...)); err != nil {
		return nil, err
	}
	for _, d := range days {
		row := make([]string, 0, len(meters)+1)
		row = append(row, d)
		for _, id := range meters {
			if v, ok := h[id][domain.Day(d)]; ok {
				row = append(row, formatReading(v))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// DecodeDaily parses the daily history table. Empty cells mean no reading.
func DecodeDaily(src io.Reader) (domain.DailyHistory, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	history := domain.DailyHistory{}
	header, err := reader.Read()
	if err == io.EOF {
		return history, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read daily header: %w", err)
	}
	if len(header) == 0 || header[0] != "date" {
		return nil, fmt.Errorf("daily history: first column must be date")
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("daily history line %d: %w", line, err)
		}
		day, err := domain.ParseDay(record[0])
		if err != nil {
			return nil, fmt.Errorf("daily history line %d: %w", line, err)
		}
		for i := 1; i < len(record) && i < len(header); i++ {
			if record[i] == "" {
				continue
			}
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, fmt.Errorf("daily history line %d meter %s: %w", line, header[i], err)
			}
			history.Put(header[i], day, v)
		}
	}
	return history, nil
}

func encodeToday(day domain.Day, snap domain.TodaySnapshot) ([]byte, error) {
	meters := make([]string, 0, len(snap))
	slotSet := map[domain.Slot]struct{}{}
	values := map[domain.Slot]map[string]float64{}
	for id, pts := range snap {
		meters = append(meters, id)
		for _, p := range pts {
			slotSet[p.Slot] = struct{}{}
			if values[p.Slot] == nil {
				values[p.Slot] = map[string]float64{}
			}
			values[p.Slot][id] = p.Value
		}
	}
	sort.Strings(meters)
	slots := make([]string, 0, len(slotSet))
	for s := range slotSet {
		slots = append(slots, string(s))
	}
	sort.Strings(slots)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append([]string{"date", "timestamp"}, meters...)); err != nil {
		return nil, err
	}
	for _, s := range slots {
		row := []string{string(day), s}
		for _, id := range meters {
			if v, ok := values[domain.Slot(s)][id]; ok {
				row = append(row, formatReading(v))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func decodeToday(src io.Reader) (domain.Day, domain.TodaySnapshot, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	snap := domain.TodaySnapshot{}
	header, err := reader.Read()
	if err == io.EOF {
		return "", snap, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("read working set header: %w", err)
	}
	if len(header) < 2 || header[0] != "date" || header[1] != "timestamp" {
		return "", nil, fmt.Errorf("working set: header must start with date,timestamp")
	}

	var day domain.Day
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return "", nil, fmt.Errorf("working set line %d: %w", line, err)
		}
		if len(record) < 2 {
			return "", nil, fmt.Errorf("working set line %d: missing timestamp", line)
		}
		d, err := domain.ParseDay(record[0])
		if err != nil {
			return "", nil, fmt.Errorf("working set line %d: %w", line, err)
		}
		if day == "" {
			day = d
		} else if d != day {
			return "", nil, fmt.Errorf("working set line %d: spans days %s and %s", line, day, d)
		}
		slot := domain.Slot(record[1])
		for i := 2; i < len(record) && i < len(header); i++ {
			if record[i] == "" {
				continue
			}
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return "", nil, fmt.Errorf("working set line %d meter %s: %w", line, header[i], err)
			}
			snap[header[i]] = append(snap[header[i]], domain.Point{Slot: slot, Value: v})
		}
	}
	return day, snap, nil
}

func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
