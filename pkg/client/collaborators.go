package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/gengine/core/pkg/domain"
	"github.com/gengine/core/pkg/expr"
)

// TranslationResolver renders the translation texts registered under a
// TranslationVariable, substituting params into each language's template. It is
// a consumed collaborator: the rule catalog only stores translation_id references, the
// actual translation/template store lives behind this interface.
type TranslationResolver interface {
	// Resolve returns language -> rendered text for translationID. A language with no
	// row for translationID falls back to the fallback language's rendered text. When
	// translationID is empty, the result is nil. Any substitution in params that fails
	// to evaluate degrades to the raw, unsubstituted template text rather
	// than failing the call.
	Resolve(ctx context.Context, translationID string, params map[string]expr.Value) (map[string]string, error)
}

// TranslationRepository is the subset of pkg/repository.TranslationRepository the
// resolver needs, declared locally so pkg/client does not import pkg/repository.
type TranslationRepository interface {
	GetLanguages(ctx context.Context) ([]domain.Language, error)
	GetTranslationTexts(ctx context.Context, translationID string) (map[string]string, error)
}

// DBTranslationResolver implements TranslationResolver against a TranslationRepository:
// missing languages are filled from the fallback, and an entirely missing
// translation_id is reported with the "[not_translated]_<id>" sentinel rather than an
// error.
type DBTranslationResolver struct {
	repo TranslationRepository
}

// NewDBTranslationResolver creates a resolver backed by repo.
func NewDBTranslationResolver(repo TranslationRepository) *DBTranslationResolver {
	return &DBTranslationResolver{repo: repo}
}

// Resolve implements TranslationResolver.
func (r *DBTranslationResolver) Resolve(ctx context.Context, translationID string, params map[string]expr.Value) (map[string]string, error) {
	if translationID == "" {
		return nil, nil
	}

	texts, err := r.repo.GetTranslationTexts(ctx, translationID)
	if err != nil {
		return nil, err
	}
	languages, err := r.repo.GetLanguages(ctx)
	if err != nil {
		return nil, err
	}

	fallback := fallbackLanguageCode(languages)

	result := make(map[string]string, len(languages))
	for lang, raw := range texts {
		result[lang] = renderWithParams(raw, params)
	}

	fallbackText, ok := result[fallback]
	if !ok {
		fallbackText = fmt.Sprintf("[not_translated]_%s", translationID)
		result[fallback] = fallbackText
	}

	for _, lang := range languages {
		if _, ok := result[lang.Code]; !ok {
			result[lang.Code] = fallbackText
		}
	}
	return result, nil
}

func fallbackLanguageCode(languages []domain.Language) string {
	for _, lang := range languages {
		if lang.IsFallback {
			return lang.Code
		}
	}
	return "en"
}

// renderWithParams substitutes every `{expr}` segment in source by parsing and
// evaluating expr against params (the same brace-delimited substitution syntax as
// expr.RenderTemplate, generalized to an arbitrary parameter environment instead of a
// single "level" int). A segment that fails to parse or evaluate is left as raw text,
// and if source has no substitutions at all, it passes through unchanged.
func renderWithParams(source string, params map[string]expr.Value) string {
	var sb strings.Builder
	i := 0
	for i < len(source) {
		c := source[i]
		if c != '{' {
			sb.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(source[i:], '}')
		if end < 0 {
			sb.WriteString(source[i:])
			break
		}
		inner := source[i+1 : i+end]
		node, err := expr.Parse(inner)
		if err != nil {
			sb.WriteString(source[i : i+end+1])
			i += end + 1
			continue
		}
		value, err := expr.Eval(node, expr.Env(params))
		if err != nil {
			sb.WriteString(source[i : i+end+1])
		} else {
			sb.WriteString(value.Render())
		}
		i += end + 1
	}
	return sb.String()
}

// PermissionResolver checks whether a requesting user holds a named permission,
// mirroring the consumed `has_perm(request, permission_name)` collaborator. It
// gates admin-only variable increases (variable.increase_permission == "admin").
type PermissionResolver interface {
	HasPermission(ctx context.Context, requestingUserID, permissionName string) bool
}

// SettingsProvider exposes the single boolean flag the evaluation core consults:
// enable_user_authentication. When it is falsy, the permission gate is disabled
// entirely and every increase_value call is allowed regardless of increase_permission.
type SettingsProvider interface {
	Bool(key string) bool
}

// StaticSettingsProvider is a fixed-value SettingsProvider, suitable for tests and for
// deployments that configure the flag once at startup rather than through a dynamic
// settings store.
type StaticSettingsProvider map[string]bool

// Bool implements SettingsProvider.
func (s StaticSettingsProvider) Bool(key string) bool {
	return s[key]
}

// AllowPermissionResolver is a PermissionResolver that grants every permission to
// every user; useful for tests and for deployments that disable authentication
// entirely via SettingsProvider rather than per-request permission checks.
type AllowPermissionResolver struct{}

// HasPermission always returns true.
func (AllowPermissionResolver) HasPermission(ctx context.Context, requestingUserID, permissionName string) bool {
	return true
}
