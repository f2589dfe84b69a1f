// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestActionableErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{
			name: "operation only",
			err:  &ActionableError{Operation: "acquire update lock"},
			want: "failed to acquire update lock",
		},
		{
			name: "operation and resource",
			err:  &ActionableError{Operation: "back up file", Resource: "/opt/station/.config"},
			want: "failed to back up file: /opt/station/.config",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "restore file",
				Resource:  "/opt/station/mask.bmp",
				Cause:     errors.New("permission denied"),
			},
			want: "failed to restore file: /opt/station/mask.bmp: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorContextBuilder(t *testing.T) {
	cause := errors.New("disk full")
	err := NewErrorContext().
		WithOperation("back up station config").
		WithResource("/backup/.config").
		WithSuggestion("Free up space on the backup filesystem").
		Wrap(cause).
		BuildError()

	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("BuildError did not return an ActionableError: %T", err)
	}
	if !errors.Is(err, cause) {
		t.Error("built error does not unwrap to the cause")
	}

	formatted := ae.Format(false)
	if !strings.Contains(formatted, "Free up space") {
		t.Errorf("Format missing suggestion: %q", formatted)
	}
}

func TestErrorContextRequiresOperation(t *testing.T) {
	if err := NewErrorContext().WithResource("x").BuildError(); err != nil {
		t.Errorf("BuildError without operation = %v, want nil", err)
	}
}

func TestFormatVerboseIncludesChain(t *testing.T) {
	inner := errors.New("read-only filesystem")
	err := WrapWithOperation(errors.Join(errors.New("copy failed"), inner), "transfer file")

	out := err.Format(true)
	if !strings.Contains(out, "Error chain:") {
		t.Errorf("verbose format missing error chain: %q", out)
	}
}

func TestWrapWithOperationNil(t *testing.T) {
	if got := WrapWithOperation(nil, "anything"); got != nil {
		t.Errorf("WrapWithOperation(nil) = %v, want nil", got)
	}
}
