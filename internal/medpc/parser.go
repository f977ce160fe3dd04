// Package medpc reads MedPC behavioural data files and converts their
// timestamp and event arrays into tables.
package medpc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Variables holds one MedPC session: header fields, scalar variables and
// array variables, keyed by their single-letter names.
type Variables struct {
	Header  map[string]string
	Scalars map[string]float64
	Arrays  map[string][]float64
}

func newVariables() *Variables {
	return &Variables{
		Header:  make(map[string]string),
		Scalars: make(map[string]float64),
		Arrays:  make(map[string][]float64),
	}
}

// Array returns the named array. A scalar of the same name is returned as
// a one element array.
func (v *Variables) Array(name string) ([]float64, error) {
	if arr, ok := v.Arrays[name]; ok {
		return arr, nil
	}
	if s, ok := v.Scalars[name]; ok {
		return []float64{s}, nil
	}
	return nil, fmt.Errorf("variable %q not found", name)
}

var (
	arrayRowRe = regexp.MustCompile(`^\s*(\d+):\s*(.*)$`)
	fieldRe    = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z ]*?)\s*:\s*(.*)$`)
)

// ParseFile parses every session stored in a MedPC data file.
func ParseFile(path string) ([]*Variables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sessions, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%s: no sessions found", path)
	}
	return sessions, nil
}

// Parse reads MedPC sessions from r. A "Start Date" header after any
// variable has been read starts a new session.
func Parse(r io.Reader) ([]*Variables, error) {
	var (
		sessions []*Variables
		cur      *Variables
		array    string
		sawData  bool
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := arrayRowRe.FindStringSubmatch(line); m != nil {
			if cur == nil || array == "" {
				return nil, fmt.Errorf("line %d: array row outside of an array", lineNo)
			}
			for _, field := range strings.Fields(m[2]) {
				val, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid value %q in array %s", lineNo, field, array)
				}
				cur.Arrays[array] = append(cur.Arrays[array], val)
			}
			continue
		}

		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: unrecognised line %q", lineNo, line)
		}
		name, rest := m[1], strings.TrimSpace(m[2])

		if cur == nil || (name == "Start Date" && sawData) {
			cur = newVariables()
			sessions = append(sessions, cur)
			array, sawData = "", false
		}

		if len(name) == 1 && name[0] >= 'A' && name[0] <= 'Z' {
			sawData = true
			if rest == "" {
				array = name
				cur.Arrays[name] = []float64{}
				continue
			}
			val, err := strconv.ParseFloat(rest, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid scalar %s: %q", lineNo, name, rest)
			}
			cur.Scalars[name] = val
			array = ""
			continue
		}

		cur.Header[name] = rest
		array = ""
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
