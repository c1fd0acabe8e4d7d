package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// StatementKind identifies the structural kind of a scanned statement
type StatementKind int

const (
	CreateTable StatementKind = iota
	AlterTable
	CreateIndex
	CreateSequence
	AlterSequence
	Comment
	Unrecognized
)

// String returns the statement kind name
func (k StatementKind) String() string {
	switch k {
	case CreateTable:
		return "CREATE TABLE"
	case AlterTable:
		return "ALTER TABLE"
	case CreateIndex:
		return "CREATE INDEX"
	case CreateSequence:
		return "CREATE SEQUENCE"
	case AlterSequence:
		return "ALTER SEQUENCE"
	case Comment:
		return "COMMENT"
	}
	return "UNRECOGNIZED"
}

// Statement is one top-level SQL statement scanned from the dump
type Statement struct {
	Kind   StatementKind
	Text   string
	Offset int64
	Diag   string
}

// Scanner splits a DDL dump into statements in a single forward pass.
// Data statements (INSERT, COPY) are recognized and skipped without being
// parsed. The scanner is finite and not restartable.
type Scanner struct {
	r      *bufio.Reader
	offset int64
	logger *logrus.Logger
	err    error
}

// NewScanner creates a statement scanner over the given reader
func NewScanner(r io.Reader, logger *logrus.Logger) *Scanner {
	return &Scanner{
		r:      bufio.NewReaderSize(r, 64*1024),
		logger: logger,
	}
}

func (s *Scanner) readRune() (rune, error) {
	ch, size, err := s.r.ReadRune()
	if err != nil {
		return 0, err
	}
	s.offset += int64(size)
	return ch, nil
}

func (s *Scanner) peekByte() (byte, error) {
	b, err := s.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Next returns the next statement, io.EOF at the end of input, or a fatal
// error when a statement boundary cannot be found at all (unterminated
// quoting). One malformed statement is returned as Unrecognized with a
// diagnostic; scanning continues after it.
func (s *Scanner) Next() (*Statement, error) {
	if s.err != nil {
		return nil, s.err
	}
	for {
		stmt, err := s.scanOne()
		if err != nil {
			s.err = err
			return nil, err
		}
		if stmt == nil {
			continue // skipped data statement
		}
		return stmt, nil
	}
}

// scanOne reads one statement. It returns (nil, nil) when the statement was
// a data statement that the scanner discarded.
func (s *Scanner) scanOne() (*Statement, error) {
	if err := s.skipBlank(); err != nil {
		return nil, err
	}

	start := s.offset
	var text strings.Builder
	depth := 0
	unbalanced := false

	for {
		ch, err := s.readRune()
		if err == io.EOF {
			if strings.TrimSpace(text.String()) == "" {
				return nil, io.EOF
			}
			// Trailing statement without a terminator
			return s.finish(text.String(), start, depth != 0, "missing statement terminator"), nil
		}
		if err != nil {
			return nil, err
		}

		switch ch {
		case '-':
			if b, _ := s.peekByte(); b == '-' {
				if err := s.skipLineComment(); err != nil && err != io.EOF {
					return nil, err
				}
				text.WriteRune(' ')
				continue
			}
			text.WriteRune(ch)
		case '/':
			if b, _ := s.peekByte(); b == '*' {
				if err := s.skipBlockComment(start); err != nil {
					return nil, err
				}
				text.WriteRune(' ')
				continue
			}
			text.WriteRune(ch)
		case '\'', '"':
			lit, err := s.readQuoted(ch, start)
			if err != nil {
				return nil, err
			}
			text.WriteRune(ch)
			text.WriteString(lit)
			text.WriteRune(ch)
		case '$':
			body, ok, err := s.readDollarQuoted(start)
			if err != nil {
				return nil, err
			}
			if ok {
				text.WriteString(body)
				continue
			}
			text.WriteRune(ch)
		case '(':
			depth++
			text.WriteRune(ch)
		case ')':
			depth--
			text.WriteRune(ch)
		case ';':
			if depth != 0 {
				unbalanced = true
			}
			stmt := s.finish(text.String(), start, unbalanced, "unbalanced parentheses")
			if stmt == nil {
				return nil, nil
			}
			return stmt, nil
		default:
			text.WriteRune(ch)
		}
	}
}

// finish classifies the collected statement text. It returns nil for data
// statements, which are discarded.
func (s *Scanner) finish(text string, offset int64, malformed bool, diag string) *Statement {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	upper := strings.ToUpper(trimmed)

	if strings.HasPrefix(upper, "INSERT") {
		s.logger.Debugf("skipping INSERT statement at byte %d", offset)
		return nil
	}
	if strings.HasPrefix(upper, "COPY") {
		// COPY ... FROM stdin is followed by raw data rows until a lone "\."
		if strings.Contains(upper, "FROM STDIN") {
			s.skipCopyData()
		}
		s.logger.Debugf("skipping COPY statement at byte %d", offset)
		return nil
	}

	stmt := &Statement{Text: trimmed, Offset: offset}
	if malformed {
		stmt.Kind = Unrecognized
		stmt.Diag = diag
		return stmt
	}
	stmt.Kind = classify(upper)
	return stmt
}

func classify(upper string) StatementKind {
	fields := strings.Fields(upper)
	if len(fields) < 2 {
		return Unrecognized
	}
	switch fields[0] {
	case "CREATE":
		switch fields[1] {
		case "TABLE":
			return CreateTable
		case "SEQUENCE":
			return CreateSequence
		case "INDEX":
			return CreateIndex
		case "UNIQUE":
			if len(fields) > 2 && fields[2] == "INDEX" {
				return CreateIndex
			}
		}
	case "ALTER":
		switch fields[1] {
		case "TABLE":
			return AlterTable
		case "SEQUENCE":
			return AlterSequence
		}
	case "COMMENT":
		if fields[1] == "ON" {
			return Comment
		}
	}
	return Unrecognized
}

// skipBlank consumes whitespace and comments between statements
func (s *Scanner) skipBlank() error {
	for {
		b, err := s.peekByte()
		if err != nil {
			return err
		}
		switch {
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			if _, err := s.readRune(); err != nil {
				return err
			}
		case b == '-':
			peek, err := s.r.Peek(2)
			if err != nil || len(peek) < 2 || peek[1] != '-' {
				return nil
			}
			if err := s.skipLineComment(); err != nil {
				return err
			}
		case b == '/':
			peek, err := s.r.Peek(2)
			if err != nil || len(peek) < 2 || peek[1] != '*' {
				return nil
			}
			if _, err := s.readRune(); err != nil {
				return err
			}
			if err := s.skipBlockComment(s.offset); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (s *Scanner) skipLineComment() error {
	for {
		ch, err := s.readRune()
		if err != nil {
			return err
		}
		if ch == '\n' {
			return nil
		}
	}
}

func (s *Scanner) skipBlockComment(stmtStart int64) error {
	// The leading '/' has been consumed; consume '*' then scan for "*/"
	if _, err := s.readRune(); err != nil {
		return err
	}
	var prev rune
	for {
		ch, err := s.readRune()
		if err == io.EOF {
			return fmt.Errorf("unterminated block comment in statement starting at byte %d", stmtStart)
		}
		if err != nil {
			return err
		}
		if prev == '*' && ch == '/' {
			return nil
		}
		prev = ch
	}
}

// readQuoted reads a quoted literal body after the opening quote has been
// consumed. Doubled quotes are the escape form in both identifier and
// string literals.
func (s *Scanner) readQuoted(quote rune, stmtStart int64) (string, error) {
	var body strings.Builder
	for {
		ch, err := s.readRune()
		if err == io.EOF {
			return "", fmt.Errorf("unterminated %q-quoted literal in statement starting at byte %d", quote, stmtStart)
		}
		if err != nil {
			return "", err
		}
		if ch == quote {
			b, _ := s.peekByte()
			if rune(b) == quote {
				if _, err := s.readRune(); err != nil {
					return "", err
				}
				body.WriteRune(quote)
				body.WriteRune(quote)
				continue
			}
			return body.String(), nil
		}
		body.WriteRune(ch)
	}
}

// readDollarQuoted handles $tag$ ... $tag$ bodies as opaque blobs. The
// leading '$' has been consumed. Returns ok=false when the input is not a
// dollar-quote opener (e.g. a positional parameter), leaving nothing extra
// consumed beyond what is returned in body.
func (s *Scanner) readDollarQuoted(stmtStart int64) (string, bool, error) {
	// Peek enough to find the closing '$' of the opening tag
	peek, err := s.r.Peek(64)
	if err != nil && err != io.EOF {
		return "", false, err
	}
	end := -1
	for i, b := range peek {
		if b == '$' {
			end = i
			break
		}
		if !isTagByte(b) {
			return "", false, nil
		}
	}
	if end == -1 {
		return "", false, nil
	}

	tag := "$" + string(peek[:end]) + "$"
	for i := 0; i < end+1; i++ {
		if _, err := s.readRune(); err != nil {
			return "", false, err
		}
	}

	var body strings.Builder
	body.WriteString(tag)
	var window strings.Builder
	for {
		ch, err := s.readRune()
		if err == io.EOF {
			return "", false, fmt.Errorf("unterminated dollar-quoted body in statement starting at byte %d", stmtStart)
		}
		if err != nil {
			return "", false, err
		}
		body.WriteRune(ch)
		window.WriteRune(ch)
		if window.Len() > len(tag) {
			s2 := window.String()
			window.Reset()
			window.WriteString(s2[len(s2)-len(tag):])
		}
		if window.String() == tag {
			return body.String(), true, nil
		}
	}
}

func isTagByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// skipCopyData consumes COPY data rows up to the "\." terminator line
func (s *Scanner) skipCopyData() {
	for {
		line, err := s.r.ReadString('\n')
		s.offset += int64(len(line))
		if strings.TrimSpace(line) == `\.` || err != nil {
			return
		}
	}
}
