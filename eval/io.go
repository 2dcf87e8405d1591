package eval

import (
	"bufio"
	"io"
	"strings"
)

// IO is the host I/O seam spec §5/§6 describes: "All I/O primitives
// delegate to host-provided callbacks; the core does not touch stdin/
// stdout directly." The default prelude binds print/display/println to
// Print and read to ReadLine; a host overrides this to sandbox or
// redirect script I/O.
type IO interface {
	Print(s string)
	ReadLine() (string, error)
}

// StdIO is the stream-backed IO implementation, reading lines from in
// and writing to out; a host passes it to New or WithPrelude. When the
// IO passed there is nil, the evaluator uses discardIO instead.
type StdIO struct {
	r   *bufio.Reader
	out io.Writer
}

// NewStdIO returns an IO backed by the given reader/writer.
func NewStdIO(in io.Reader, out io.Writer) *StdIO {
	return &StdIO{r: bufio.NewReader(in), out: out}
}

func (s *StdIO) Print(str string) {
	io.WriteString(s.out, str)
}

func (s *StdIO) ReadLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// discardIO is used when a host registers no IO at all; reads fail
// immediately rather than blocking on a stream nobody is feeding.
type discardIO struct{}

func (discardIO) Print(string) {}
func (discardIO) ReadLine() (string, error) {
	return "", io.EOF
}
