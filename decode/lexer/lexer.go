// Package lexer tokenizes a byte range of a JSON document.
//
// Tokens carry their absolute offset and length in the source, so callers
// can hand sub-ranges to a decoder without copying. The lexer checks token
// shape only; nesting is the caller's concern.
package lexer

import (
	"bufio"
	"io"
	"iter"

	"github.com/wippyai/jsongen/errors"
)

type Kind int

const (
	LBrace Kind = iota
	RBrace
	LBracket
	RBracket
	Comma
	Colon
	String
	Number
	True
	False
	Null
)

func (k Kind) String() string {
	switch k {
	case LBrace:
		return "'{'"
	case RBrace:
		return "'}'"
	case LBracket:
		return "'['"
	case RBracket:
		return "']'"
	case Comma:
		return "','"
	case Colon:
		return "':'"
	case String:
		return "string"
	case Number:
		return "number"
	case True:
		return "true"
	case False:
		return "false"
	case Null:
		return "null"
	}
	return "unknown"
}

// IsValue reports whether k starts or is a JSON value.
func (k Kind) IsValue() bool {
	switch k {
	case LBrace, LBracket, String, Number, True, False, Null:
		return true
	}
	return false
}

type Token struct {
	Kind   Kind
	Offset int64
	Length int64
}

// End returns the offset just past the token.
func (t Token) End() int64 {
	return t.Offset + t.Length
}

// Tokens yields the tokens in src[offset:offset+length].
// Each call rescans from the start of the range.
func Tokens(src io.ReaderAt, offset, length int64) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		s := &scanner{
			r:   bufio.NewReader(io.NewSectionReader(src, offset, length)),
			pos: offset,
		}
		for {
			tok, err := s.next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Token{}, err)
				return
			}
			if !yield(tok, nil) {
				return
			}
		}
	}
}

// All collects the tokens of a range.
func All(src io.ReaderAt, offset, length int64) ([]Token, error) {
	var out []Token
	for tok, err := range Tokens(src, offset, length) {
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

type scanner struct {
	r   *bufio.Reader
	pos int64
}

func (s *scanner) read() (byte, error) {
	b, err := s.r.ReadByte()
	if err != nil {
		return 0, err
	}
	s.pos++
	return b, nil
}

func (s *scanner) unread() {
	_ = s.r.UnreadByte()
	s.pos--
}

func (s *scanner) next() (Token, error) {
	var b byte
	var err error
	for {
		b, err = s.read()
		if err != nil {
			return Token{}, err
		}
		if b != ' ' && b != '\t' && b != '\n' && b != '\r' {
			break
		}
	}

	start := s.pos - 1
	single := func(k Kind) (Token, error) {
		return Token{Kind: k, Offset: start, Length: 1}, nil
	}

	switch b {
	case '{':
		return single(LBrace)
	case '}':
		return single(RBrace)
	case '[':
		return single(LBracket)
	case ']':
		return single(RBracket)
	case ',':
		return single(Comma)
	case ':':
		return single(Colon)
	case '"':
		return s.str(start)
	case 't':
		return s.word(start, "true", True)
	case 'f':
		return s.word(start, "false", False)
	case 'n':
		return s.word(start, "null", Null)
	}
	if b == '-' || isDigit(b) {
		return s.number(start, b)
	}
	return Token{}, syntaxError(start, "unexpected character %q", b)
}

func (s *scanner) str(start int64) (Token, error) {
	for {
		b, err := s.read()
		if err != nil {
			return Token{}, truncated(start, err, "unterminated string")
		}
		switch {
		case b == '"':
			return Token{Kind: String, Offset: start, Length: s.pos - start}, nil
		case b == '\\':
			if _, err := s.read(); err != nil {
				return Token{}, truncated(start, err, "unterminated escape")
			}
		case b < 0x20:
			return Token{}, syntaxError(s.pos-1, "control character in string")
		}
	}
}

func (s *scanner) word(start int64, want string, k Kind) (Token, error) {
	for i := 1; i < len(want); i++ {
		b, err := s.read()
		if err != nil {
			return Token{}, truncated(start, err, "truncated literal")
		}
		if b != want[i] {
			return Token{}, syntaxError(start, "invalid literal, expected %s", want)
		}
	}
	if err := s.delimited(); err != nil {
		return Token{}, err
	}
	return Token{Kind: k, Offset: start, Length: int64(len(want))}, nil
}

func (s *scanner) number(start int64, first byte) (Token, error) {
	digits := isDigit(first)
	for {
		b, err := s.read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Token{}, errors.Runtime(errors.PhaseDecode, "read number", err)
		}
		if isDigit(b) {
			digits = true
			continue
		}
		if b != '.' && b != 'e' && b != 'E' && b != '+' && b != '-' {
			s.unread()
			break
		}
	}
	if !digits {
		return Token{}, syntaxError(start, "invalid number")
	}
	if err := s.delimited(); err != nil {
		return Token{}, err
	}
	return Token{Kind: Number, Offset: start, Length: s.pos - start}, nil
}

// delimited fails when a literal runs into another value character.
func (s *scanner) delimited() error {
	b, err := s.read()
	if err != nil {
		return nil
	}
	s.unread()
	switch b {
	case ' ', '\t', '\n', '\r', ',', ':', ']', '}':
		return nil
	}
	return syntaxError(s.pos, "unexpected character %q after literal", b)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func syntaxError(at int64, format string, args ...any) error {
	return errors.New(errors.PhaseDecode, errors.KindRuntime).
		Value(at).
		Detail("offset %d: "+format, append([]any{at}, args...)...).
		Build()
}

func truncated(at int64, err error, detail string) error {
	if err == io.EOF {
		return syntaxError(at, "%s", detail)
	}
	return errors.Runtime(errors.PhaseDecode, detail, err)
}
