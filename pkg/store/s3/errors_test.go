package s3

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"NoSuchKey", &types.NoSuchKey{}, true},
		{"WrappedNoSuchKey", fmt.Errorf("get: %w", &types.NoSuchKey{}), true},
		{"HeadNotFound", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"AccessDenied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"Plain", errors.New("connection reset"), false},
		{"Nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFoundError(tt.err); got != tt.want {
				t.Errorf("isNotFoundError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNew_DefaultConcurrency(t *testing.T) {
	s := New(nil, Config{Bucket: "b"})
	if s.concurrency != DefaultConcurrency {
		t.Errorf("concurrency = %d, want %d", s.concurrency, DefaultConcurrency)
	}
}
