package checkout

import (
	"context"

	"dahlia_back_end/internal/models"
	"dahlia_back_end/internal/stock"

	"github.com/gocql/gocql"
)

// ScyllaCatalog lit les produits dans le keyspace products.
type ScyllaCatalog struct {
	session *gocql.Session
}

func NewScyllaCatalog(session *gocql.Session) *ScyllaCatalog {
	return &ScyllaCatalog{session: session}
}

func (c *ScyllaCatalog) Product(ctx context.Context, id gocql.UUID) (models.Product, error) {
	var p models.Product
	err := c.session.Query(`
		SELECT product_id, name, description, price, stock, low_stock_threshold,
		       image_url, tags, is_active, created_at, updated_at
		FROM products WHERE product_id = ?`, id,
	).WithContext(ctx).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.LowStockThreshold, &p.ImageURL, &p.Tags, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err == gocql.ErrNotFound {
		return models.Product{}, stock.ErrProductNotFound
	}
	return p, err
}

// ScyllaAddressBook lit les adresses dans le keyspace users.
type ScyllaAddressBook struct {
	session *gocql.Session
}

func NewScyllaAddressBook(session *gocql.Session) *ScyllaAddressBook {
	return &ScyllaAddressBook{session: session}
}

func (b *ScyllaAddressBook) Address(ctx context.Context, id gocql.UUID) (models.Address, error) {
	var a models.Address
	err := b.session.Query(`
		SELECT id, user_id, full_name, phone, street, city, zone, is_default, created_at
		FROM addresses WHERE id = ?`, id,
	).WithContext(ctx).Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Street,
		&a.City, &a.Zone, &a.IsDefault, &a.CreatedAt)
	return a, err
}
