package ext2fs

import "github.com/sirupsen/logrus"

// Option configures a Filesystem at mount time, following the teacher's
// functional-options idiom (options.go/writer.go's Option/WriterOption).
type Option func(*Filesystem)

// WithLogger overrides the default logrus.StandardLogger() used for
// best-effort diagnostics such as eviction flush failures.
func WithLogger(l *logrus.Logger) Option {
	return func(fs *Filesystem) {
		if l != nil {
			fs.log = l
		}
	}
}

// WithCacheSize overrides the inode cache's eviction bound (default
// defaultCacheLimit, §4.5). n <= 0 is ignored.
func WithCacheSize(n int) Option {
	return func(fs *Filesystem) {
		if n > 0 {
			fs.cacheLimit = n
		}
	}
}
