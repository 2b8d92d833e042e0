package commands

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/marmos91/objectloader/internal/cli/output"
	"github.com/marmos91/objectloader/pkg/objects"
)

// objectSink receives the objects of a traversal in order.
type objectSink interface {
	Write(base *objects.Base) error
	Close() error
}

// newObjectSink returns a sink for format: json streams one object per line,
// yaml streams one document per object, table prints a summary per
// speckle_type once the traversal is over.
func newObjectSink(w io.Writer, format output.Format) (objectSink, error) {
	if format == output.FormatTable {
		return newSummarySink(w), nil
	}
	stream, err := output.NewStream(w, format)
	if err != nil {
		return nil, err
	}
	return streamSink{stream}, nil
}

func newSummarySink(w io.Writer) *summarySink {
	return &summarySink{w: w, start: time.Now(), types: make(map[string]*typeSummary)}
}

type streamSink struct {
	output.Stream
}

func (s streamSink) Write(base *objects.Base) error {
	return s.Stream.Write(base)
}

type typeSummary struct {
	count  int
	closed int
}

// summarySink counts objects by speckle_type.
type summarySink struct {
	w     io.Writer
	start time.Time
	total int
	types map[string]*typeSummary
}

func (s *summarySink) Write(base *objects.Base) error {
	t := s.types[base.SpeckleType]
	if t == nil {
		t = &typeSummary{}
		s.types[base.SpeckleType] = t
	}
	t.count++
	t.closed += base.ClosureLen()
	s.total++
	return nil
}

func (s *summarySink) Close() error {
	if err := output.PrintTable(s.w, s.table()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(s.w, "\n%d objects in %s\n", s.total, time.Since(s.start).Round(time.Millisecond))
	return err
}

// table sorts types by descending count, then by name.
func (s *summarySink) table() *output.TableData {
	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := s.types[names[i]], s.types[names[j]]
		if a.count != b.count {
			return a.count > b.count
		}
		return names[i] < names[j]
	})

	table := output.NewTableData("SPECKLE TYPE", "OBJECTS", "CLOSURE ENTRIES")
	for _, name := range names {
		t := s.types[name]
		table.AddRow(name, strconv.Itoa(t.count), strconv.Itoa(t.closed))
	}
	return table
}
