package xerrors

import (
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		desc string
		err  *Error
		want string
	}{
		{
			desc: "no detail",
			err:  New(MalformedKey, "node:port:extra", ""),
			want: "MalformedKey: node:port:extra",
		},
		{
			desc: "with detail",
			err:  New(InvalidArrayIndex, "parent[x]", "index is not a non-negative integer"),
			want: "InvalidArrayIndex: parent[x]: index is not a non-negative integer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindCode(t *testing.T) {
	tests := []struct {
		kind Kind
		want codes.Code
	}{
		{MalformedKey, codes.InvalidArgument},
		{MissingConfig, codes.FailedPrecondition},
		{CycleInHierarchy, codes.FailedPrecondition},
		{InvalidArrayIndex, codes.OutOfRange},
		{StaleEcho, codes.OK},
		{PendingExpired, codes.OK},
		{BufferOverflow, codes.OK},
	}
	for _, tt := range tests {
		if got := tt.kind.Code(); got != tt.want {
			t.Errorf("%s.Code() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestErrorsAggregation(t *testing.T) {
	var errs Errors
	errs = NewErrs(nil)
	if errs != nil {
		t.Errorf("NewErrs(nil) = %v, want nil", errs)
	}

	errs = NewErrs(fmt.Errorf("err1"))
	errs = AppendErr(errs, nil)
	errs = AppendErr(errs, fmt.Errorf("err2"))

	if got, want := errs.Error(), "err1, err2"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got, want := ToString(errs), "err1, err2"; got != want {
		t.Errorf("ToString() = %q, want %q", got, want)
	}
}
