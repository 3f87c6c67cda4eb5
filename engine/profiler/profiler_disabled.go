//go:build !profile

package profiler

func Init(capacity int) {}

func Start(name string) func() { return func() {} }

func Enabled() bool { return false }

func Scopes() []Scope { return nil }

func Dump(dir string) (string, error) { return "", ErrDisabled }
