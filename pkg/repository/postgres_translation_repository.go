package repository

import (
	"context"
	"database/sql"

	"github.com/gengine/core/pkg/domain"
	"github.com/gengine/core/pkg/errors"
)

// PostgresTranslationRepository implements TranslationRepository using PostgreSQL.
type PostgresTranslationRepository struct {
	db *sql.DB
}

// NewPostgresTranslationRepository creates a new PostgreSQL-backed translation
// repository.
func NewPostgresTranslationRepository(db *sql.DB) *PostgresTranslationRepository {
	return &PostgresTranslationRepository{db: db}
}

// GetLanguages returns every defined language.
func (r *PostgresTranslationRepository) GetLanguages(ctx context.Context) ([]domain.Language, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code, is_fallback FROM languages`)
	if err != nil {
		return nil, errors.NewStoreError("get languages", err)
	}
	defer func() { _ = rows.Close() }()

	var languages []domain.Language
	for rows.Next() {
		var lang domain.Language
		if err := rows.Scan(&lang.Code, &lang.IsFallback); err != nil {
			return nil, errors.NewStoreError("scan language", err)
		}
		languages = append(languages, lang)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate languages", err)
	}
	return languages, nil
}

// GetTranslationTexts returns language -> raw template text for translationID.
func (r *PostgresTranslationRepository) GetTranslationTexts(ctx context.Context, translationID string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.language, t.text
		FROM translations t
		JOIN translation_variables tv ON tv.id = t.variable_id
		WHERE tv.id = $1
	`, translationID)
	if err != nil {
		return nil, errors.NewStoreError("get translation texts", err)
	}
	defer func() { _ = rows.Close() }()

	texts := make(map[string]string)
	for rows.Next() {
		var lang, text string
		if err := rows.Scan(&lang, &text); err != nil {
			return nil, errors.NewStoreError("scan translation text", err)
		}
		texts[lang] = text
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate translation texts", err)
	}
	return texts, nil
}
