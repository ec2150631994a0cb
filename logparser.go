package eprime

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

const (
	markerPrefix = "*** "
	markerSuffix = " ***"
	beginSuffix  = "-Begin"
	endSuffix    = "-End"

	// procedureKey is the default level-naming key: when a frame carries it,
	// its value names the frame's level in disambiguated column names.
	procedureKey = "Procedure"
)

// Scanner wraps a bufio.Scanner with line numbering.
type Scanner struct {
	*bufio.Scanner
	lineNum int
}

// NewScanner creates a new Scanner from an io.Reader.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{Scanner: bufio.NewScanner(r)}
}

// NextLine advances the scanner and returns the current line number and text.
func (s *Scanner) NextLine() (int, string, bool) {
	if !s.Scan() {
		return s.lineNum, "", false
	}
	s.lineNum++
	return s.lineNum, s.Text(), true
}

// LevelNamer produces the human name of a frame's level, used when an
// ambiguous column is renamed to Name[LevelName]. levelName is the name the
// level's begin marker carried, or "" when unknown.
type LevelNamer func(f *Frame, levelName string) string

// defaultLevelNamer names a level after the frame's Procedure value when
// present, else after its marker name, else Level<N>.
func defaultLevelNamer(f *Frame, levelName string) string {
	if v, ok := f.Get(procedureKey); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if levelName != "" {
		return levelName
	}
	return "Level" + strconv.Itoa(f.Level)
}

// LogFrameParser reads the nested, level-tagged key/value log format written
// by the experiment-presentation tool and flattens it into tabular data.
type LogFrameParser struct {
	levelNamer LevelNamer
}

// NewLogFrameParser creates a parser with the default level-naming rule.
func NewLogFrameParser() *LogFrameParser {
	return &LogFrameParser{levelNamer: defaultLevelNamer}
}

// WithLevelNamer configures how a frame's level is named when ambiguous
// columns are renamed.
func (p *LogFrameParser) WithLevelNamer(fn LevelNamer) *LogFrameParser {
	p.levelNamer = fn
	return p
}

// LogFile is the result of parsing one log stream.
type LogFile struct {
	frames     []*Frame // every frame, in begin-marker order
	topFrames  []*Frame
	topLevel   int
	levelNames map[int]string  // level id -> marker name
	skip       map[string]bool // bare names of ambiguous columns
	data       *TabularData
}

// Frames returns every parsed frame in begin-marker order.
func (lf *LogFile) Frames() []*Frame { return lf.frames }

// TopFrames returns the outermost frames.
func (lf *LogFile) TopFrames() []*Frame { return lf.topFrames }

// TopLevel returns the highest (outermost) level number observed.
func (lf *LogFile) TopLevel() int { return lf.topLevel }

// Levels returns the set of level names observed.
func (lf *LogFile) Levels() map[string]bool {
	out := make(map[string]bool, len(lf.levelNames))
	for _, name := range lf.levelNames {
		out[name] = true
	}
	return out
}

// Columns returns the output column order.
func (lf *LogFile) Columns() []string { return lf.data.Columns }

// SkipColumns returns the bare names of ambiguous columns, which are
// excluded from the output.
func (lf *LogFile) SkipColumns() map[string]bool { return lf.skip }

// ToTabularData returns the flattened table: one row per leaf frame, in
// leaf-encounter order.
func (lf *LogFile) ToTabularData() *TabularData { return lf.data }

// CanParse reports whether the first lines of an input look like this log
// format. The dispatcher hands it the first two lines of the stream.
func (p *LogFrameParser) CanParse(firstLines []string) bool {
	for _, line := range firstLines {
		if _, _, ok := splitMarker(line); ok {
			return true
		}
	}
	return false
}

// splitMarker recognizes "*** Name-Begin ***" and "*** Name-End ***" lines.
// It returns the level name and whether the marker opens a frame.
func splitMarker(line string) (name string, begin bool, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, markerPrefix) || !strings.HasSuffix(line, markerSuffix) {
		return "", false, false
	}
	inner := line[len(markerPrefix) : len(line)-len(markerSuffix)]
	switch {
	case strings.HasSuffix(inner, beginSuffix):
		return inner[:len(inner)-len(beginSuffix)], true, true
	case strings.HasSuffix(inner, endSuffix):
		return inner[:len(inner)-len(endSuffix)], false, true
	}
	return "", false, false
}

// Parse consumes the stream to completion and builds the frame tree, the
// level registry and the flattened table. The only structural validation is
// that every opened frame is closed: anything else that fails to parse is
// treated as an ordinary line or skipped.
func (p *LogFrameParser) Parse(r io.Reader) (*LogFile, error) {
	lf := &LogFile{
		levelNames: make(map[int]string),
		skip:       make(map[string]bool),
	}

	var stack []*Frame
	var openLines []int
	ordinalByName := make(map[string]int) // marker name -> first-seen ordinal

	scanner := NewScanner(r)
	for {
		lineNum, line, ok := scanner.NextLine()
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		if name, begin, isMarker := splitMarker(line); isMarker {
			if begin {
				var parent *Frame
				if len(stack) > 0 {
					parent = stack[len(stack)-1]
				}
				f := newFrame(parent)
				ord, seen := ordinalByName[name]
				if !seen {
					ord = len(ordinalByName) + 1
					ordinalByName[name] = ord
				}
				f.Level = ord // first-seen ordinal; inverted after the scan
				stack = append(stack, f)
				openLines = append(openLines, lineNum)
				lf.frames = append(lf.frames, f)
			} else if len(stack) > 0 {
				stack = stack[:len(stack)-1]
				openLines = openLines[:len(openLines)-1]
			}
			continue
		}

		// Key: Value line. Only the first colon delimits, so values may
		// themselves contain colons.
		if len(stack) == 0 {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		stack[len(stack)-1].Set(key, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(stack) > 0 {
		return nil, &DamagedFileError{
			Msg:  "unclosed frame at end of input",
			Line: openLines[len(openLines)-1],
		}
	}

	// Levels attach to marker names, not nesting positions: every frame of
	// one name shares one level. The first name observed is the outermost
	// and carries the highest number.
	total := len(ordinalByName)
	for _, f := range lf.frames {
		f.Level = total + 1 - f.Level
	}
	for name, ord := range ordinalByName {
		lf.levelNames[total+1-ord] = name
	}
	lf.topLevel = total
	for _, f := range lf.frames {
		if f.Level == lf.topLevel {
			lf.topFrames = append(lf.topFrames, f)
		}
	}

	p.resolveAmbiguity(lf)
	lf.data = p.flatten(lf)
	return lf, nil
}

// resolveAmbiguity renames every key observed at more than one level to
// Key[LevelName] and skip-lists the bare name.
func (p *LogFrameParser) resolveAmbiguity(lf *LogFile) {
	keyLevels := make(map[string]map[int]bool)
	for _, f := range lf.frames {
		for _, k := range f.Keys() {
			if keyLevels[k] == nil {
				keyLevels[k] = make(map[int]bool)
			}
			keyLevels[k][f.Level] = true
		}
	}
	// Level names are fixed before any renaming, so renaming the naming key
	// itself cannot perturb later renames.
	frameLevelName := make(map[*Frame]string, len(lf.frames))
	for _, f := range lf.frames {
		frameLevelName[f] = p.levelNamer(f, lf.levelNames[f.Level])
	}
	for key, levels := range keyLevels {
		if len(levels) < 2 {
			continue
		}
		lf.skip[key] = true
		for _, f := range lf.frames {
			if _, ok := f.Get(key); !ok {
				continue
			}
			f.rename(key, key+"["+frameLevelName[f]+"]")
		}
	}
}

// flatten emits one row per leaf frame, walking each leaf's parent chain.
func (p *LogFrameParser) flatten(lf *LogFile) *TabularData {
	data := NewTabularData()
	for _, f := range lf.frames {
		if f.Level != 1 {
			continue
		}
		row, order := f.flatten()
		renameCell(row, order, "Experiment", "ExperimentName")
		data.AddRow(row, order)
	}
	return data
}

// renameCell moves a flattened cell to a new column name in place.
func renameCell(row map[string]string, order []string, from, to string) {
	v, ok := row[from]
	if !ok {
		return
	}
	if _, taken := row[to]; taken {
		return
	}
	delete(row, from)
	row[to] = v
	for i, k := range order {
		if k == from {
			order[i] = to
			break
		}
	}
}
