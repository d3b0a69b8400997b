package yolostream

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

//go:embed coco_80_labels_list.txt
var cocoLabels string

var (
	defaultTable     *ClassTable
	defaultTableOnce sync.Once
)

// ClassTable is the ordered list of class names the Model was trained on.
// It is built once at startup and shared read only by every frame, so hand
// it around by pointer and never copy it per frame
type ClassTable struct {
	names []string
}

// NewClassTable returns a ClassTable holding a copy of the given names
func NewClassTable(names []string) *ClassTable {

	n := make([]string, len(names))
	copy(n, names)

	return &ClassTable{names: n}
}

// DefaultClassTable returns the embedded 80 class COCO table
func DefaultClassTable() *ClassTable {

	defaultTableOnce.Do(func() {
		// the embedded list is known good, reading from memory can't fail
		defaultTable, _ = ReadClassTable(strings.NewReader(cocoLabels))
	})

	return defaultTable
}

// LoadClassTable reads the class names from the given text file.  It should
// contain one name per line.
func LoadClassTable(file string) (*ClassTable, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	return ReadClassTable(f)
}

// ReadClassTable reads class names, one per line, from r.  Names are
// trimmed and blank lines at the end of the input are ignored
func ReadClassTable(r io.Reader) (*ClassTable, error) {

	// create a scanner to read the file.
	scanner := bufio.NewScanner(r)

	var names []string

	// read and trim each line
	for scanner.Scan() {
		names = append(names, strings.TrimSpace(scanner.Text()))
	}

	// check for errors during scanning
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	// drop trailing blank lines so the table length matches the class count
	for len(names) > 0 && names[len(names)-1] == "" {
		names = names[:len(names)-1]
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w: class table is empty", ErrInvalidInput)
	}

	return &ClassTable{names: names}, nil
}

// Len returns the number of classes
func (c *ClassTable) Len() int {
	return len(c.names)
}

// Name returns the class name for the given class ID
func (c *ClassTable) Name(id int) (string, error) {

	if id < 0 || id >= len(c.names) {
		return "", fmt.Errorf("%w: class %d, table has %d classes",
			ErrClassIndexOutOfRange, id, len(c.names))
	}

	return c.names[id], nil
}

// Index returns the class ID for the given name, or -1 if the name is not in
// the table
func (c *ClassTable) Index(name string) int {

	for i, n := range c.names {
		if n == name {
			return i
		}
	}

	return -1
}

// Names returns a copy of the class names
func (c *ClassTable) Names() []string {

	n := make([]string, len(c.names))
	copy(n, c.names)

	return n
}
