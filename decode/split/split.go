// Package split finds the top-level element boundaries of a JSON list or
// dict without decoding the elements.
package split

import (
	"io"
	"iter"

	"github.com/goccy/go-json"

	"github.com/wippyai/jsongen/decode/lexer"
	"github.com/wippyai/jsongen/errors"
)

// Boundary is a byte range in the source.
type Boundary struct {
	Offset int64
	Length int64
}

// End returns the offset just past the range.
func (b Boundary) End() int64 {
	return b.Offset + b.Length
}

// Field is one key and value range of a dict.
type Field struct {
	Key   string
	Value Boundary
}

// IsNull reports whether the range holds only the null literal.
func IsNull(src io.ReaderAt, offset, length int64) (bool, error) {
	first, rest, err := head(src, offset, length)
	if err != nil {
		return false, err
	}
	return first.Kind == lexer.Null && !rest, nil
}

// List returns the element boundaries of the list in the range.
// ok is false when the range is the null literal.
func List(src io.ReaderAt, offset, length int64) (iter.Seq2[Boundary, error], bool, error) {
	first, rest, err := head(src, offset, length)
	if err != nil {
		return nil, false, err
	}
	if first.Kind == lexer.Null && !rest {
		return nil, false, nil
	}
	if first.Kind != lexer.LBracket {
		return nil, false, unexpected(first, "list")
	}

	seq := func(yield func(Boundary, error) bool) {
		w := walker{next: pull(src, offset, length)}
		defer w.stop()
		w.open()
		for i := 0; ; i++ {
			b, done, err := w.element(i, lexer.RBracket)
			if err != nil {
				yield(Boundary{}, err)
				return
			}
			if done {
				if err := w.trailing(); err != nil {
					yield(Boundary{}, err)
				}
				return
			}
			if !yield(b, nil) {
				return
			}
		}
	}
	return seq, true, nil
}

// Dict returns the key and value boundaries of the dict in the range.
// ok is false when the range is the null literal.
func Dict(src io.ReaderAt, offset, length int64) (iter.Seq2[Field, error], bool, error) {
	first, rest, err := head(src, offset, length)
	if err != nil {
		return nil, false, err
	}
	if first.Kind == lexer.Null && !rest {
		return nil, false, nil
	}
	if first.Kind != lexer.LBrace {
		return nil, false, unexpected(first, "dict")
	}

	seq := func(yield func(Field, error) bool) {
		w := walker{next: pull(src, offset, length)}
		defer w.stop()
		w.open()
		for i := 0; ; i++ {
			key, done, err := w.key(src, i)
			if err != nil {
				yield(Field{}, err)
				return
			}
			if done {
				if err := w.trailing(); err != nil {
					yield(Field{}, err)
				}
				return
			}
			b, _, err := w.value()
			if err != nil {
				yield(Field{}, err)
				return
			}
			if err := w.separator(lexer.RBrace); err != nil {
				yield(Field{}, err)
				return
			}
			if !yield(Field{Key: key, Value: b}, nil) {
				return
			}
		}
	}
	return seq, true, nil
}

// Value returns the boundary of the single value in the range with
// surrounding whitespace trimmed.
func Value(src io.ReaderAt, offset, length int64) (Boundary, lexer.Kind, error) {
	w := walker{next: pull(src, offset, length)}
	defer w.stop()
	b, k, err := w.value()
	if err != nil {
		return Boundary{}, 0, err
	}
	if err := w.trailing(); err != nil {
		return Boundary{}, 0, err
	}
	return b, k, nil
}

func head(src io.ReaderAt, offset, length int64) (lexer.Token, bool, error) {
	next, stop := iter.Pull2(lexer.Tokens(src, offset, length))
	defer stop()

	first, err, ok := next()
	if err != nil {
		return lexer.Token{}, false, err
	}
	if !ok {
		return lexer.Token{}, false, eof(offset)
	}
	_, err, rest := next()
	if err != nil {
		return lexer.Token{}, false, err
	}
	return first, rest, nil
}

type puller struct {
	next func() (lexer.Token, error, bool)
	stop func()
}

func pull(src io.ReaderAt, offset, length int64) puller {
	next, stop := iter.Pull2(lexer.Tokens(src, offset, length))
	return puller{next: next, stop: stop}
}

type walker struct {
	next puller
	last int64
	// closed is set once the container's closing token was consumed by a
	// separator check.
	closed bool
}

func (w *walker) stop() {
	w.next.stop()
}

func (w *walker) token() (lexer.Token, error) {
	tok, err, ok := w.next.next()
	if err != nil {
		return lexer.Token{}, err
	}
	if !ok {
		return lexer.Token{}, eof(w.last)
	}
	w.last = tok.End()
	return tok, nil
}

// open consumes the opening token already checked by head.
func (w *walker) open() {
	_, _ = w.token()
}

// element reads the i-th list element, or reports done at the closing token.
func (w *walker) element(i int, end lexer.Kind) (Boundary, bool, error) {
	if w.closed {
		return Boundary{}, true, nil
	}
	tok, err := w.token()
	if err != nil {
		return Boundary{}, false, err
	}
	if i == 0 && tok.Kind == end {
		return Boundary{}, true, nil
	}
	b, _, err := w.valueFrom(tok)
	if err != nil {
		return Boundary{}, false, err
	}
	if err := w.separator(end); err != nil {
		return Boundary{}, false, err
	}
	return b, false, nil
}

// key reads the i-th dict key and its colon, or reports done at '}'.
func (w *walker) key(src io.ReaderAt, i int) (string, bool, error) {
	if w.closed {
		return "", true, nil
	}
	tok, err := w.token()
	if err != nil {
		return "", false, err
	}
	if i == 0 && tok.Kind == lexer.RBrace {
		return "", true, nil
	}
	if tok.Kind != lexer.String {
		return "", false, unexpected(tok, "dict key")
	}

	raw := make([]byte, tok.Length)
	if _, err := src.ReadAt(raw, tok.Offset); err != nil && err != io.EOF {
		return "", false, errors.Runtime(errors.PhaseDecode, "read dict key", err)
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil {
		return "", false, errors.New(errors.PhaseDecode, errors.KindRuntime).
			Cause(err).
			Detail("offset %d: invalid dict key", tok.Offset).
			Build()
	}

	colon, err := w.token()
	if err != nil {
		return "", false, err
	}
	if colon.Kind != lexer.Colon {
		return "", false, unexpected(colon, "':'")
	}
	return key, false, nil
}

func (w *walker) value() (Boundary, lexer.Kind, error) {
	tok, err := w.token()
	if err != nil {
		return Boundary{}, 0, err
	}
	return w.valueFrom(tok)
}

// valueFrom consumes the value starting at tok, including nested containers.
func (w *walker) valueFrom(tok lexer.Token) (Boundary, lexer.Kind, error) {
	if !tok.Kind.IsValue() {
		return Boundary{}, 0, unexpected(tok, "value")
	}
	if tok.Kind != lexer.LBrace && tok.Kind != lexer.LBracket {
		return Boundary{Offset: tok.Offset, Length: tok.Length}, tok.Kind, nil
	}

	stack := []lexer.Kind{closer(tok.Kind)}
	for len(stack) > 0 {
		t, err := w.token()
		if err != nil {
			return Boundary{}, 0, err
		}
		switch t.Kind {
		case lexer.LBrace, lexer.LBracket:
			stack = append(stack, closer(t.Kind))
		case lexer.RBrace, lexer.RBracket:
			if stack[len(stack)-1] != t.Kind {
				return Boundary{}, 0, unexpected(t, stack[len(stack)-1].String())
			}
			stack = stack[:len(stack)-1]
		}
	}
	return Boundary{Offset: tok.Offset, Length: w.last - tok.Offset}, tok.Kind, nil
}

// separator consumes ',' or the closing token.
func (w *walker) separator(end lexer.Kind) error {
	tok, err := w.token()
	if err != nil {
		return err
	}
	switch tok.Kind {
	case lexer.Comma:
		return nil
	case end:
		w.closed = true
		return nil
	}
	return unexpected(tok, "',' or "+end.String())
}

// trailing fails if anything follows the container.
func (w *walker) trailing() error {
	tok, err, ok := w.next.next()
	if err != nil {
		return err
	}
	if ok {
		return unexpected(tok, "end of input")
	}
	return nil
}

func closer(k lexer.Kind) lexer.Kind {
	if k == lexer.LBrace {
		return lexer.RBrace
	}
	return lexer.RBracket
}

func unexpected(tok lexer.Token, want string) error {
	return errors.New(errors.PhaseDecode, errors.KindRuntime).
		Value(tok.Offset).
		Detail("offset %d: unexpected %s, expected %s", tok.Offset, tok.Kind, want).
		Build()
}

func eof(at int64) error {
	return errors.New(errors.PhaseDecode, errors.KindRuntime).
		Value(at).
		Detail("offset %d: unexpected end of input", at).
		Build()
}
