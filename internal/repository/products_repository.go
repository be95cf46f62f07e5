// Package repository provides the Postgres + pgvector catalog backend.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/AndreiKevin/omniquest-api/internal/catalog"
	"github.com/AndreiKevin/omniquest-api/internal/models"
)

var (
	_ catalog.Store  = (*ProductsRepository)(nil)
	_ catalog.Writer = (*ProductsRepository)(nil)
)

// errEmbeddingScanInvalidType is returned when Scan receives a type other than []byte.
var errEmbeddingScanInvalidType = errors.New("embedding: expected []byte")

// nullableEmbedding scans a vector column that may be NULL without panicking
// (pgvector.Vector.Scan panics on empty/NULL).
type nullableEmbedding []float32

func (n *nullableEmbedding) Scan(src any) error {
	if src == nil {
		*n = nil

		return nil
	}

	buf, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("%w: got %T", errEmbeddingScanInvalidType, src)
	}

	if len(buf) == 0 {
		*n = nil

		return nil
	}

	var vec pgvector.Vector

	if err := vec.DecodeBinary(buf); err != nil {
		return fmt.Errorf("embedding decode: %w", err)
	}

	*n = vec.Slice()

	return nil
}

// ProductsRepository handles data access for the products table. It
// implements the same catalog contract as the flat in-memory store, pushing
// filtering, sorting, and the page window down into SQL.
type ProductsRepository struct {
	db             *pgxpool.Pool
	dimension      int
	acquireTimeout time.Duration
}

// NewProductsRepository creates a new products repository. dimension is the
// embedding column dimension and must match the embedding provider.
// acquireTimeout bounds how long an operation waits for a free pooled
// connection when the pool is saturated; zero disables the bound.
func NewProductsRepository(db *pgxpool.Pool, dimension int, acquireTimeout time.Duration) *ProductsRepository {
	return &ProductsRepository{db: db, dimension: dimension, acquireTimeout: acquireTimeout}
}

// acquireContext derives the context used while waiting for a pooled
// connection. With all connections busy, pgxpool parks Acquire on the
// caller's context; request contexts carry no deadline, so without this bound
// a saturated pool would queue requests indefinitely.
func acquireContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, timeout)
}

// acquire checks a connection out of the pool, waiting at most acquireTimeout.
// The returned connection is not bound by the timeout; callers run their
// statements on their own context and must Release it.
func (r *ProductsRepository) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx, cancel := acquireContext(ctx, r.acquireTimeout)
	defer cancel()

	conn, err := r.db.Acquire(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	return conn, nil
}

// EnsureSchema creates the vector extension, the products table, and its
// indexes if they do not exist. The composite (category, price) index backs
// combined filter+sort listings; the IVFFlat index backs cosine-distance
// nearest-neighbor queries.
func (r *ProductsRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS products (
				id text PRIMARY KEY,
				name text NOT NULL,
				brand text NOT NULL DEFAULT '',
				category text NOT NULL,
				price double precision NOT NULL,
				quantity integer NOT NULL DEFAULT 0,
				image text NOT NULL DEFAULT '',
				embedding vector(%d)
			)`, r.dimension),
		`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category)`,
		`CREATE INDEX IF NOT EXISTS idx_products_price ON products (price)`,
		`CREATE INDEX IF NOT EXISTS idx_products_category_price ON products (category, price)`,
		`CREATE INDEX IF NOT EXISTS idx_products_embedding ON products
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
	}

	conn, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, stmt := range statements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}

const productColumns = "id, name, brand, category, price, quantity, image"

// buildListQuery renders the listing SELECT for the given params. The window
// (LIMIT/OFFSET) and all conditions run in the database; ordering always ends
// with id so pages are deterministic and identical to the flat store.
func buildListQuery(params models.ListParams) (query string, args []any) {
	var sb strings.Builder

	sb.WriteString("SELECT " + productColumns + " FROM products")

	argCount := 1

	if len(params.Categories) > 0 {
		sb.WriteString(fmt.Sprintf(" WHERE category = ANY($%d)", argCount))
		args = append(args, params.Categories)
		argCount++
	}

	switch params.Sort {
	case models.SortPriceAsc:
		sb.WriteString(" ORDER BY price ASC, id ASC")
	case models.SortPriceDesc:
		sb.WriteString(" ORDER BY price DESC, id ASC")
	case models.SortNone:
		sb.WriteString(" ORDER BY id ASC")
	}

	sb.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1))
	args = append(args, params.Limit, params.Offset)

	return sb.String(), args
}

// buildCountQuery renders the filtered COUNT for the same params.
func buildCountQuery(params models.ListParams) (query string, args []any) {
	query = "SELECT count(*) FROM products"

	if len(params.Categories) > 0 {
		query += " WHERE category = ANY($1)"
		args = append(args, params.Categories)
	}

	return query, args
}

// List returns one window of the filtered, sorted catalog plus the filtered total.
func (r *ProductsRepository) List(ctx context.Context, params models.ListParams) (models.ProductPage, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return models.ProductPage{}, err
	}
	defer conn.Release()

	countQuery, countArgs := buildCountQuery(params)

	var total int
	if err := conn.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return models.ProductPage{}, fmt.Errorf("count products: %w", err)
	}

	query, args := buildListQuery(params)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return models.ProductPage{}, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	items, err := scanProducts(rows)
	if err != nil {
		return models.ProductPage{}, err
	}

	return models.ProductPage{Items: items, Total: total}, nil
}

// Categories returns the sorted set of distinct category strings.
func (r *ProductsRepository) Categories(ctx context.Context) ([]string, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT DISTINCT category FROM products ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []string{}

	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}

		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating categories: %w", err)
	}

	return categories, nil
}

// GetByIDs returns the records for the given ids, preserving the order of ids.
// Unknown ids are skipped.
func (r *ProductsRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx,
		"SELECT "+productColumns+", embedding FROM products WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Product, len(ids))

	for rows.Next() {
		var p models.Product

		var emb nullableEmbedding

		err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Price, &p.Quantity, &p.Image, &emb)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}

		p.Embedding = emb
		byID[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}

	ordered := make([]models.Product, 0, len(ids))

	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}

	return ordered, nil
}

// SearchNearest delegates nearest-neighbor ranking to pgvector: cosine
// distance via the <=> operator, ascending, with id as the deterministic
// tie-break. Rows with a NULL embedding are never candidates.
func (r *ProductsRepository) SearchNearest(ctx context.Context, query []float32, k int) ([]string, error) {
	if len(query) != r.dimension {
		return nil, fmt.Errorf("products search: query embedding has %d dimensions, want %d", len(query), r.dimension)
	}

	if k <= 0 {
		return []string{}, nil
	}

	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	queryVec := pgvector.NewVector(query)

	rows, err := conn.Query(ctx, `
		SELECT id FROM products
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1, id
		LIMIT $2`, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("nearest products: %w", err)
	}
	defer rows.Close()

	ids := []string{}

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nearest: %w", err)
	}

	return ids, nil
}

// ExistingIDs returns the set of product ids already present in the table.
func (r *ProductsRepository) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT id FROM products`)
	if err != nil {
		return nil, fmt.Errorf("list product ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}

		ids[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product ids: %w", err)
	}

	return ids, nil
}

// InsertWithEmbeddings inserts records paired with their embeddings in one
// transaction: a crash mid-run commits nothing, so a retry cannot duplicate ids.
func (r *ProductsRepository) InsertWithEmbeddings(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	conn, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin insert products: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, p := range products {
		var embedding any
		if p.Embedding != nil {
			embedding = pgvector.NewVector(p.Embedding)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO products (id, name, brand, category, price, quantity, image, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, p.Name, p.Brand, p.Category, p.Price, p.Quantity, p.Image, embedding,
		)
		if err != nil {
			return fmt.Errorf("insert product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert products: %w", err)
	}

	return nil
}

// scanProducts drains a listing result set.
func scanProducts(rows pgx.Rows) ([]models.Product, error) {
	items := []models.Product{}

	for rows.Next() {
		var p models.Product

		err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Price, &p.Quantity, &p.Image)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}

		items = append(items, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}

	return items, nil
}
