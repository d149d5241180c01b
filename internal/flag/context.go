package flag

import (
	"context"
	"time"

	"github.com/spf13/pflag"
)

type contextKey struct{}

// NewContext stores fs in ctx so the rest of a command's call tree can
// read flag values without threading *pflag.FlagSet through every
// signature.
func NewContext(ctx context.Context, fs *pflag.FlagSet) context.Context {
	return context.WithValue(ctx, contextKey{}, fs)
}

func FromContext(ctx context.Context) *pflag.FlagSet {
	fs, _ := ctx.Value(contextKey{}).(*pflag.FlagSet)
	return fs
}

// GetString returns the named flag's value, or "" if ctx carries no
// flag set or the flag wasn't registered.
func GetString(ctx context.Context, name string) string {
	fs := FromContext(ctx)
	if fs == nil {
		return ""
	}
	v, _ := fs.GetString(name)
	return v
}

func GetBool(ctx context.Context, name string) bool {
	fs := FromContext(ctx)
	if fs == nil {
		return false
	}
	v, _ := fs.GetBool(name)
	return v
}

func GetInt(ctx context.Context, name string) int {
	fs := FromContext(ctx)
	if fs == nil {
		return 0
	}
	v, _ := fs.GetInt(name)
	return v
}

func GetDuration(ctx context.Context, name string) time.Duration {
	fs := FromContext(ctx)
	if fs == nil {
		return 0
	}
	d, _ := fs.GetDuration(name)
	return d
}

func GetStringSlice(ctx context.Context, name string) []string {
	fs := FromContext(ctx)
	if fs == nil {
		return nil
	}
	v, _ := fs.GetStringSlice(name)
	return v
}
