package errors

// ErrorCategory routes an error to the part of the build that raised it.
type ErrorCategory string

const (
	CategoryConfig     ErrorCategory = "config"     // unreadable or malformed settings
	CategoryValidation ErrorCategory = "validation" // rejected arguments
	CategoryFileSystem ErrorCategory = "filesystem" // source or output tree access
	CategoryBuild      ErrorCategory = "build"
	CategoryToolchain  ErrorCategory = "toolchain"
	CategorySchema     ErrorCategory = "schema"
	CategoryManifest   ErrorCategory = "manifest"
	CategoryWatch      ErrorCategory = "watch"
	CategoryNotify     ErrorCategory = "notify"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity tells the orchestrator how far an error reaches. A fatal
// error ends the cycle; anything weaker stays with the file or pass that
// raised it.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
	SeverityInfo    ErrorSeverity = "info"
)

// ErrorContext is the structured detail attached to an error and rendered
// as log attributes.
type ErrorContext map[string]any

// Set stores value under key, allocating the map if needed.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = ErrorContext{}
	}
	c[key] = value
	return c
}

func (c ErrorContext) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// Merge returns a new context holding both; keys of other win.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	out := make(ErrorContext, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
