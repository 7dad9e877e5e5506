package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseDecode,
				Kind:   KindUnexpectedValue,
				Path:   []string{"user", "address", "zip"},
				Type:   "int",
				Detail: "cannot cast",
			},
			contains: []string{"[decode]", "unexpected_value", "user.address.zip", "type int", "cannot cast"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseBuild,
				Kind:  KindCircularReference,
			},
			contains: []string{"[build]", "circular_reference"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseCache,
				Kind:   KindRuntime,
				Detail: "write artifact",
				Cause:  errors.New("disk full"),
			},
			contains: []string{"[cache]", "runtime", "write artifact", "caused by", "disk full"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseCache,
		Kind:  KindRuntime,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseDecode,
		Kind:  KindUnexpectedValue,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseDecode, Kind: KindUnexpectedValue}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseEncode, Kind: KindUnexpectedValue}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseDecode, Kind: KindUnexpectedType}) {
		t.Error("Is should not match different kind")
	}

	t.Run("bare kind", func(t *testing.T) {
		if !errors.Is(err, KindUnexpectedValue) {
			t.Error("errors.Is should match bare kind")
		}
		if errors.Is(err, KindLogic) {
			t.Error("errors.Is should not match other kind")
		}
	})

	t.Run("wrapped", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", err)
		if !errors.Is(wrapped, KindUnexpectedValue) {
			t.Error("errors.Is should match through fmt wrapping")
		}
		var target *Error
		if !errors.As(wrapped, &target) || target.Kind != KindUnexpectedValue {
			t.Error("errors.As should extract *Error")
		}
	})
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseDecode, KindUnexpectedValue).
		Path("user", "name").
		Type("int").
		Value("abc").
		Cause(cause).
		Detail("expected %s, got %s", "int", "string").
		Build()

	if err.Phase != PhaseDecode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseDecode)
	}
	if err.Kind != KindUnexpectedValue {
		t.Errorf("Kind = %v, want %v", err.Kind, KindUnexpectedValue)
	}
	if len(err.Path) != 2 || err.Path[0] != "user" || err.Path[1] != "name" {
		t.Errorf("Path = %v, want [user name]", err.Path)
	}
	if err.Type != "int" {
		t.Errorf("Type = %v, want 'int'", err.Type)
	}
	if err.Value != "abc" {
		t.Errorf("Value = %v, want 'abc'", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected int, got string" {
		t.Errorf("Detail = %v, want 'expected int, got string'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
	}{
		{"UnsupportedType", UnsupportedType(PhaseParse, "A&B", "intersection"), PhaseParse, KindUnsupportedType},
		{"InvalidType", InvalidType(PhaseParse, "list<int", "unbalanced"), PhaseParse, KindInvalidType},
		{"MissingType", MissingType(PhaseBuild, []string{"User", "id"}), PhaseBuild, KindMissingType},
		{"CircularReference", CircularReference([]string{"A", "a"}, "A"), PhaseBuild, KindCircularReference},
		{"Logic", Logic(PhaseBuild, "classes at same hierarchy level"), PhaseBuild, KindLogic},
		{"UnexpectedValue", UnexpectedValue(PhaseDecode, nil, "int", "x", "cast"), PhaseDecode, KindUnexpectedValue},
		{"UnexpectedType", UnexpectedType([]string{"id"}, "int", "x"), PhaseInstantiate, KindUnexpectedType},
		{"InvalidConstructorArgument", InvalidConstructorArgument("User", "id"), PhaseInstantiate, KindInvalidConstructorArgument},
		{"Runtime", Runtime(PhaseDecode, "unexpected EOF", nil), PhaseDecode, KindRuntime},
		{"NotFound", NotFound(PhaseLink, "service", "upper"), PhaseLink, KindNotFound},
		{"InvalidInput", InvalidInput(PhaseEncode, "nil writer"), PhaseEncode, KindInvalidInput},
		{"Wrap", Wrap(PhaseCache, KindRuntime, errors.New("x"), "rename"), PhaseCache, KindRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("Phase = %v, want %v", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestWithPath(t *testing.T) {
	base := UnexpectedValue(PhaseDecode, []string{"id"}, "int", "x", "cast")
	got := WithPath(base, "user")

	var e *Error
	if !errors.As(got, &e) {
		t.Fatalf("WithPath returned %T", got)
	}
	if strings.Join(e.Path, ".") != "user.id" {
		t.Errorf("Path = %v, want user.id", e.Path)
	}
	if strings.Join(base.Path, ".") != "id" {
		t.Errorf("original path mutated: %v", base.Path)
	}

	plain := errors.New("plain")
	if WithPath(plain, "user") != plain {
		t.Error("non-structured errors must pass through")
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Logic(PhaseBuild, "x"))
	if KindOf(err) != KindLogic {
		t.Errorf("KindOf = %q, want %q", KindOf(err), KindLogic)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf plain error should be empty")
	}
}
