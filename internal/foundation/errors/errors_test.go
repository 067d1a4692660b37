package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "missing template root").
			WithContext("path", "templates").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityError, err.Severity())
		assert.Equal(t, "[config:error] missing template root", err.Error())
		path, ok := err.Context().GetString("path")
		require.True(t, ok)
		assert.Equal(t, "templates", path)
	})

	t.Run("Wrapped error keeps cause", func(t *testing.T) {
		err := WrapError(fs.ErrPermission, CategoryFileSystem, "source root unreadable").Fatal().Build()

		assert.True(t, err.IsFatal())
		assert.ErrorIs(t, err, fs.ErrPermission)
		assert.Contains(t, err.Error(), "permission denied")
	})

	t.Run("Found through fmt wrapping", func(t *testing.T) {
		inner := ConfigError("bad yaml").Build()
		wrapped := fmt.Errorf("load: %w", inner)

		classified, ok := AsClassified(wrapped)
		require.True(t, ok)
		assert.Equal(t, CategoryConfig, classified.Category())
		assert.True(t, HasCategory(wrapped, CategoryConfig))
		assert.True(t, IsFatal(wrapped))
	})

	t.Run("Unclassified defaults", func(t *testing.T) {
		err := stderrors.New("plain")
		assert.Equal(t, CategoryInternal, GetCategory(err))
		assert.Equal(t, SeverityError, GetSeverity(err))
		assert.False(t, IsFatal(err))
	})

	t.Run("WithContext does not mutate original", func(t *testing.T) {
		base := BuildError("cycle aborted").Build()
		derived := base.WithContext("cycle_id", "abc")

		_, ok := base.Context().Get("cycle_id")
		assert.False(t, ok)
		id, ok := derived.Context().GetString("cycle_id")
		require.True(t, ok)
		assert.Equal(t, "abc", id)
	})

	t.Run("Convenience constructors", func(t *testing.T) {
		tests := []struct {
			name     string
			builder  *ErrorBuilder
			category ErrorCategory
			severity ErrorSeverity
		}{
			{"ConfigError", ConfigError("x"), CategoryConfig, SeverityFatal},
			{"ValidationError", ValidationError("x"), CategoryValidation, SeverityFatal},
			{"FileSystemError", FileSystemError("x"), CategoryFileSystem, SeverityError},
			{"BuildError", BuildError("x"), CategoryBuild, SeverityFatal},
			{"ToolchainError", ToolchainError("x"), CategoryToolchain, SeverityError},
			{"SchemaError", SchemaError("x"), CategorySchema, SeverityError},
			{"WatchError", WatchError("x"), CategoryWatch, SeverityFatal},
			{"InternalError", InternalError("x"), CategoryInternal, SeverityFatal},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.builder.Build()
				assert.Equal(t, tt.category, err.Category())
				assert.Equal(t, tt.severity, err.Severity())
			})
		}
	})
}

func TestErrorContextMerge(t *testing.T) {
	a := ErrorContext{}.Set("key1", "value1").Set("shared", "original")
	b := ErrorContext{}.Set("key2", "value2").Set("shared", "overridden")

	merged := a.Merge(b)

	v, _ := merged.GetString("key1")
	assert.Equal(t, "value1", v)
	v, _ = merged.GetString("key2")
	assert.Equal(t, "value2", v)
	v, _ = merged.GetString("shared")
	assert.Equal(t, "overridden", v)

	orig, _ := a.GetString("shared")
	assert.Equal(t, "original", orig)
}
