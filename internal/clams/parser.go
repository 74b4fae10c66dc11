// Package clams parses raw CLAMS (Columbus Instruments) indirect
// calorimetry export files into the canonical long-form measurement
// table consumed by the processing pipeline.
//
// A CLAMS export is a single-parameter file in two sections. First a
// metadata header block of key/value lines (comma or tab delimited),
// carrying the parameter name and the cage-to-subject pairings:
//
//	PARAMTER,VO2 (ml/kg/hr)
//	GROUP/CAGE,0001
//	SUBJECT ID,M101
//	...
//	:DATA
//
// Note "PARAMTER" is the instrument's own spelling; both it and the
// corrected form are accepted. After the :DATA marker, decorated by
// optional === separator lines, follows a wide data table anchored on
// the INTERVAL column, with one TIME/CAGE column pair per animal:
//
//	INTERVAL,TIME,CAGE 0001,TIME,CAGE 0002
//	1,01/15/2024 10:00:00 AM,3012.5,01/15/2024 10:00:12 AM,2899.1
//
// The parser is a pure function of the input bytes: it performs no I/O
// beyond the supplied reader and returns either a ParsedFile or a typed
// error naming the offending file, line and column.
package clams

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	apperrors "clamser/internal/errors"
	"clamser/pkg/contracts/domain"
)

// dataMarker separates the metadata header block from the data table.
const dataMarker = ":DATA"

// intervalColumn anchors the data header row. The header is located by
// this column name, never by a fixed row offset, because the amount of
// metadata boilerplate varies between instrument firmware revisions.
const intervalColumn = "INTERVAL"

// timestampLayouts are the instrument's known clock formats, tried in
// order. Both AM/PM and 24-hour exports occur in the wild.
var timestampLayouts = []string{
	"01/02/2006 03:04:05 PM",
	"1/2/2006 3:04:05 PM",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006 03:04 PM",
	"1/2/2006 3:04 PM",
	"01/02/2006 15:04",
}

// Limits bounds worst-case processing on adversarial or malformed
// input. Exceeding either limit is a malformed-input error, not a
// truncation.
type Limits struct {
	MaxBytes int64 // maximum raw file size
	MaxRows  int   // maximum data rows per file
}

// DefaultLimits returns the limits applied when the caller supplies
// none.
func DefaultLimits() Limits {
	return Limits{
		MaxBytes: 32 << 20,
		MaxRows:  500000,
	}
}

// ParsedFile is the outcome of parsing one raw export: the channel the
// file carries, the cage-to-subject pairings found in its header, and
// the extracted measurements in file order.
type ParsedFile struct {
	Source        string            // file identifier, carried into every measurement
	Channel       domain.Channel    // the file's single parameter
	SubjectByCage map[string]string // e.g. "CAGE 0001" -> "M101"
	Measurements  []domain.Measurement
}

// Parser converts raw CLAMS export streams into measurement sequences.
type Parser struct {
	logger *slog.Logger
	limits Limits
}

// NewParser creates a parser. A nil logger falls back to slog.Default;
// zero limits fall back to DefaultLimits.
func NewParser(logger *slog.Logger, limits Limits) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits().MaxBytes
	}
	if limits.MaxRows <= 0 {
		limits.MaxRows = DefaultLimits().MaxRows
	}
	return &Parser{logger: logger, limits: limits}
}

// Parse reads one raw export stream identified by source and returns
// the extracted measurements. Structural problems abort with a typed
// error; non-numeric value cells within otherwise valid rows become
// missing values (nil), never zero, and are kept in the output so that
// downstream aggregation can exclude them explicitly.
func (p *Parser) Parse(r io.Reader, source string) (*ParsedFile, error) {
	lines, size, err := p.readLines(r, source)
	if err != nil {
		return nil, err
	}

	hdr, err := parseHeader(lines, source, p.logger)
	if err != nil {
		return nil, err
	}

	headerIdx, cells, sep, err := locateDataHeader(lines, hdr.dataLine, source)
	if err != nil {
		return nil, err
	}

	pairs, err := pairColumns(cells, headerIdx, source)
	if err != nil {
		return nil, err
	}

	pf := &ParsedFile{
		Source:        source,
		Channel:       hdr.channel,
		SubjectByCage: hdr.subjectByCage,
	}

	seen := make(map[domain.Key]struct{})
	missing := 0
	rows := 0
	for i := headerIdx + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		fields := splitFields(line, sep)
		if len(fields) == 0 {
			continue
		}
		// Rows whose INTERVAL cell is not numeric are instrument
		// trailer boilerplate, not data.
		if _, err := strconv.Atoi(strings.TrimSpace(fields[0])); err != nil {
			continue
		}
		rows++
		if rows > p.limits.MaxRows {
			return nil, &apperrors.MalformedInputError{
				File:   source,
				Line:   i + 1,
				Reason: fmt.Sprintf("data section exceeds the %d row limit", p.limits.MaxRows),
			}
		}

		for _, pc := range pairs {
			ts, value, ok, err := parseCells(fields, pc, source, i+1)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			subject := pf.subjectFor(pc.cage)
			m := domain.Measurement{
				SubjectID: subject,
				Timestamp: ts,
				Channel:   pf.Channel,
				Value:     value,
				Source:    source,
			}
			if _, dup := seen[m.Key()]; dup {
				return nil, &apperrors.DuplicateMeasurementError{
					Key:     m.Key(),
					SourceA: source,
					SourceB: source,
				}
			}
			seen[m.Key()] = struct{}{}
			if value == nil {
				missing++
			}
			pf.Measurements = append(pf.Measurements, m)
		}
	}

	p.logger.Info("parsed CLAMS export",
		slog.String("source", source),
		slog.String("channel", string(pf.Channel)),
		slog.String("size", humanize.Bytes(uint64(size))),
		slog.Int("data_rows", rows),
		slog.Int("measurements", len(pf.Measurements)),
		slog.Int("missing_values", missing),
		slog.Int("cages", len(pairs)))

	return pf, nil
}

// subjectFor maps a normalized cage column name to the subject id from
// the header pairings, falling back to the cage name itself when the
// header did not pair it.
func (pf *ParsedFile) subjectFor(cage string) string {
	if id, ok := pf.SubjectByCage[cage]; ok && id != "" {
		return id
	}
	return cage
}

func (p *Parser) readLines(r io.Reader, source string) ([]string, int64, error) {
	limited := io.LimitReader(r, p.limits.MaxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", source, err)
	}
	if int64(len(data)) > p.limits.MaxBytes {
		return nil, 0, &apperrors.MalformedInputError{
			File:   source,
			Reason: fmt.Sprintf("file exceeds the %s size limit", humanize.Bytes(uint64(p.limits.MaxBytes))),
		}
	}

	var lines []string
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan %s: %w", source, err)
	}
	return lines, int64(len(data)), nil
}

// headerInfo is the outcome of scanning the metadata block.
type headerInfo struct {
	channel       domain.Channel
	subjectByCage map[string]string
	dataLine      int // index of the :DATA marker line
}

func parseHeader(lines []string, source string, logger *slog.Logger) (*headerInfo, error) {
	hdr := &headerInfo{subjectByCage: make(map[string]string), dataLine: -1}
	var pendingCage string
	havePendingCage := false

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.Contains(line, dataMarker) {
			hdr.dataLine = i
			break
		}

		key, value := splitHeaderLine(line)
		switch {
		case strings.Contains(key, "paramter") || strings.Contains(key, "parameter"):
			hdr.channel = domain.Channel(stripUnit(value))
		case strings.Contains(key, "group/cage"):
			pendingCage = strings.TrimLeft(value, "0")
			havePendingCage = true
		case strings.Contains(key, "subject id") && havePendingCage:
			n, err := strconv.Atoi(pendingCage)
			if err != nil {
				// A malformed cage number invalidates only this
				// pairing; the data columns still fall back to the
				// cage name.
				logger.Warn("skipping unparseable cage number in header",
					slog.String("source", source),
					slog.Int("line", i+1),
					slog.String("cage", pendingCage))
			} else if value != "" {
				hdr.subjectByCage[fmt.Sprintf("CAGE %04d", n)] = value
			}
			havePendingCage = false
		}
	}

	if hdr.dataLine < 0 {
		return nil, &apperrors.MalformedInputError{
			File:   source,
			Reason: fmt.Sprintf("data section marker %q not found; not a CLAMS export", dataMarker),
		}
	}
	if hdr.channel == "" {
		return nil, &apperrors.MalformedInputError{
			File:   source,
			Reason: "no PARAMTER line in header; channel unknown",
		}
	}
	return hdr, nil
}

// splitHeaderLine splits a metadata line into a lowercase key and its
// value on the first comma or tab, whichever the line uses.
func splitHeaderLine(line string) (key, value string) {
	sep := ","
	if !strings.Contains(line, ",") && strings.Contains(line, "\t") {
		sep = "\t"
	}
	parts := strings.SplitN(line, sep, 2)
	key = strings.ToLower(strings.TrimSpace(parts[0]))
	if len(parts) > 1 {
		value = strings.TrimSpace(parts[1])
	}
	return key, value
}

// stripUnit removes a trailing "(unit)" suffix from a parameter name:
// "VO2 (ml/kg/hr)" becomes "VO2".
func stripUnit(name string) string {
	if i := strings.Index(name, "("); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// locateDataHeader finds the data table's header row after the :DATA
// marker, skipping blank lines and === decorator lines, and detects the
// delimiter from it.
func locateDataHeader(lines []string, dataLine int, source string) (idx int, cells []string, sep string, err error) {
	for i := dataLine + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "===") {
			continue
		}
		sep = ","
		if strings.Count(line, "\t") > strings.Count(line, ",") {
			sep = "\t"
		}
		cells = splitFields(line, sep)
		for _, c := range cells {
			if strings.EqualFold(c, intervalColumn) {
				return i, cells, sep, nil
			}
		}
		return 0, nil, "", &apperrors.MalformedInputError{
			File:   source,
			Line:   i + 1,
			Column: intervalColumn,
			Reason: "data header row does not contain the INTERVAL column",
		}
	}
	return 0, nil, "", &apperrors.MalformedInputError{
		File:   source,
		Line:   dataLine + 1,
		Reason: "no data header row found after the :DATA marker",
	}
}

// columnPair maps one cage's value column to its nearest preceding TIME
// column. Each cage carries its own clock column because the instrument
// samples cages sequentially.
type columnPair struct {
	cage     string // normalized cage column name, e.g. "CAGE 0001"
	timeIdx  int
	valueIdx int
}

func pairColumns(cells []string, headerLine int, source string) ([]columnPair, error) {
	var pairs []columnPair
	lastTime := -1
	for i, c := range cells {
		name := strings.ToUpper(strings.TrimSpace(c))
		switch {
		case name == "TIME":
			lastTime = i
		case strings.HasPrefix(name, "CAGE"):
			if lastTime < 0 {
				return nil, &apperrors.MalformedInputError{
					File:   source,
					Line:   headerLine + 1,
					Column: name,
					Reason: "cage column has no preceding TIME column",
				}
			}
			pairs = append(pairs, columnPair{cage: normalizeCage(name), timeIdx: lastTime, valueIdx: i})
		}
	}
	if len(pairs) == 0 {
		return nil, &apperrors.MalformedInputError{
			File:   source,
			Line:   headerLine + 1,
			Reason: "no cage data columns found in data header row",
		}
	}
	return pairs, nil
}

// normalizeCage collapses internal whitespace so "CAGE  0001" and
// "CAGE 0001" resolve to the same header pairing.
func normalizeCage(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// parseCells extracts one cage's (timestamp, value) from a data row.
// ok is false when the pair's cells are absent or blank, which happens
// when a cage stopped recording before the others.
func parseCells(fields []string, pc columnPair, source string, line int) (ts time.Time, value *float64, ok bool, err error) {
	if pc.timeIdx >= len(fields) {
		return time.Time{}, nil, false, nil
	}
	rawTime := strings.TrimSpace(fields[pc.timeIdx])
	if rawTime == "" {
		return time.Time{}, nil, false, nil
	}
	ts, terr := parseTimestamp(rawTime)
	if terr != nil {
		return time.Time{}, nil, false, &apperrors.TimestampParseError{File: source, Line: line, Raw: rawTime}
	}

	if pc.valueIdx < len(fields) {
		rawValue := strings.TrimSpace(fields[pc.valueIdx])
		if rawValue != "" {
			if v, verr := strconv.ParseFloat(rawValue, 64); verr == nil {
				value = &v
			}
			// Non-numeric cells are instrument error sentinels:
			// the reading exists but has no usable value.
		}
	}
	return ts, value, true, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("no known timestamp layout matches %q", raw)
}

// splitFields splits a data line on the detected delimiter and trims
// surrounding whitespace from every cell. CLAMS exports never quote
// fields, so a plain split is sufficient.
func splitFields(line, sep string) []string {
	parts := strings.Split(line, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
