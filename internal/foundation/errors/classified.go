package errors

import (
	stderrors "errors"
	"fmt"
)

// ClassifiedError is an error with a category, a severity and structured
// context. Values are immutable once built.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	message  string
	cause    error
	context  ErrorContext
}

func (e *ClassifiedError) Error() string {
	head := fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
	if e.cause == nil {
		return head
	}
	return head + ": " + e.cause.Error()
}

func (e *ClassifiedError) Unwrap() error           { return e.cause }
func (e *ClassifiedError) Category() ErrorCategory { return e.category }
func (e *ClassifiedError) Severity() ErrorSeverity { return e.severity }
func (e *ClassifiedError) Message() string         { return e.message }
func (e *ClassifiedError) Cause() error            { return e.cause }
func (e *ClassifiedError) Context() ErrorContext   { return e.context }
func (e *ClassifiedError) IsFatal() bool           { return e.severity == SeverityFatal }

// WithContext returns a copy of e with key set.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	c := *e
	c.context = e.context.Merge(ErrorContext{key: value})
	return &c
}

// Is matches a ClassifiedError of the same category and message, so a
// sentinel built with NewError can be compared with errors.Is.
func (e *ClassifiedError) Is(target error) bool {
	other, ok := target.(*ClassifiedError)
	return ok && e.category == other.category && e.message == other.message
}

// ErrorBuilder assembles a ClassifiedError.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts an error of the given category with SeverityError.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{category: category, severity: SeverityError, message: message}}
}

// WrapError starts an error that wraps err.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(err)
}

func (b *ErrorBuilder) WithSeverity(s ErrorSeverity) *ErrorBuilder {
	b.err.severity = s
	return b
}

func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.err.cause = err
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

// Fatal marks the error as ending the current cycle.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// Build returns the error. The builder may keep being used; later changes
// do not leak into errors already built.
func (b *ErrorBuilder) Build() *ClassifiedError {
	e := b.err
	e.context = ErrorContext{}.Merge(b.err.context)
	return &e
}

func ConfigError(message string) *ErrorBuilder     { return NewError(CategoryConfig, message).Fatal() }
func ValidationError(message string) *ErrorBuilder { return NewError(CategoryValidation, message).Fatal() }
func FileSystemError(message string) *ErrorBuilder { return NewError(CategoryFileSystem, message) }
func BuildError(message string) *ErrorBuilder      { return NewError(CategoryBuild, message).Fatal() }
func ToolchainError(message string) *ErrorBuilder  { return NewError(CategoryToolchain, message) }
func SchemaError(message string) *ErrorBuilder     { return NewError(CategorySchema, message) }
func WatchError(message string) *ErrorBuilder      { return NewError(CategoryWatch, message).Fatal() }
func InternalError(message string) *ErrorBuilder   { return NewError(CategoryInternal, message).Fatal() }

// AsClassified finds the first ClassifiedError in err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// HasCategory reports whether the first ClassifiedError in err's chain has
// the given category.
func HasCategory(err error, category ErrorCategory) bool {
	ce, ok := AsClassified(err)
	return ok && ce.category == category
}

func IsFatal(err error) bool {
	ce, ok := AsClassified(err)
	return ok && ce.IsFatal()
}

// GetCategory defaults to CategoryInternal for unclassified errors.
func GetCategory(err error) ErrorCategory {
	if ce, ok := AsClassified(err); ok {
		return ce.category
	}
	return CategoryInternal
}

// GetSeverity defaults to SeverityError for unclassified errors.
func GetSeverity(err error) ErrorSeverity {
	if ce, ok := AsClassified(err); ok {
		return ce.severity
	}
	return SeverityError
}
