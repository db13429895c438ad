package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"product-relay/internal/models"
)

type CatalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

// SaveEntry upserts the product and every matched listing, then links them.
// Saving the same entry twice leaves one row of each.
func (r *CatalogRepo) SaveEntry(ctx context.Context, entry *models.CatalogEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin catalog transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertProduct(ctx, tx, &entry.Product); err != nil {
		return err
	}

	for i := range entry.Matches {
		listing := &entry.Matches[i]
		if err := upsertAmazonProduct(ctx, tx, listing); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO product_matches (product_id, amazon_product_id)
			VALUES ($1, $2)
			ON CONFLICT (product_id, amazon_product_id) DO NOTHING`,
			entry.Product.ID, listing.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to link product %d to %s: %w", entry.Product.ID, listing.ASIN, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit catalog entry: %w", err)
	}
	return nil
}

func upsertProduct(ctx context.Context, tx pgx.Tx, p *models.Product) error {
	query := `INSERT INTO products (title, image_urls, product_url, source, last_seen_price, in_stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_url) DO UPDATE SET
			last_seen_price = COALESCE(EXCLUDED.last_seen_price, products.last_seen_price),
			in_stock = EXCLUDED.in_stock,
			updated_date = NOW()
		RETURNING id, created_date, updated_date`

	err := tx.QueryRow(ctx, query,
		p.Title, p.ImageURLs, p.ProductURL, p.Source, p.LastSeenPrice, p.InStock,
	).Scan(&p.ID, &p.CreatedDate, &p.UpdatedDate)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ProductURL, err)
	}
	return nil
}

func upsertAmazonProduct(ctx context.Context, tx pgx.Tx, a *models.AmazonProduct) error {
	query := `INSERT INTO amazon_products (asin, title, product_url, image_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (asin) DO UPDATE SET updated_date = NOW()
		RETURNING id, created_date, updated_date`

	err := tx.QueryRow(ctx, query, a.ASIN, a.Title, a.ProductURL, a.ImageURL).
		Scan(&a.ID, &a.CreatedDate, &a.UpdatedDate)
	if err != nil {
		return fmt.Errorf("failed to upsert amazon product %s: %w", a.ASIN, err)
	}
	return nil
}
