package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harberts01/Ai-Blog/internal/model"
	"github.com/harberts01/Ai-Blog/internal/store"
)

// RegistryRepo reads tools and posts owned by the content registry.
type RegistryRepo struct {
	pool *pgxpool.Pool
}

func NewRegistryRepo(pool *pgxpool.Pool) *RegistryRepo {
	return &RegistryRepo{pool: pool}
}

func (r *RegistryRepo) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	var p model.Post
	err := r.pool.QueryRow(ctx, `
		SELECT id, tool_id, title, content, category, created_at
		FROM posts WHERE id = $1`, id).Scan(
		&p.ID, &p.ToolID, &p.Title, &p.Content, &p.Category, &p.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *RegistryRepo) ListPostsByCategory(ctx context.Context, category string) ([]model.Post, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tool_id, title, content, category, created_at
		FROM posts WHERE category = $1
		ORDER BY id`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.ToolID, &p.Title, &p.Content, &p.Category, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *RegistryRepo) ListPostCategories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT category FROM posts
		WHERE category <> ''
		ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *RegistryRepo) GetTool(ctx context.Context, id int64) (*model.Tool, error) {
	var t model.Tool
	err := r.pool.QueryRow(ctx, `SELECT id, name, slug, status FROM tools WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Slug, &t.Status)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *RegistryRepo) GetToolBySlug(ctx context.Context, slug string) (*model.Tool, error) {
	var t model.Tool
	err := r.pool.QueryRow(ctx, `SELECT id, name, slug, status FROM tools WHERE slug = $1`, slug).
		Scan(&t.ID, &t.Name, &t.Slug, &t.Status)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *RegistryRepo) ListTools(ctx context.Context) ([]model.Tool, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, slug, status FROM tools ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tools []model.Tool
	for rows.Next() {
		var t model.Tool
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Status); err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, rows.Err()
}

// notFound maps pgx.ErrNoRows onto store.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
