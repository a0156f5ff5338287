package license

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
//
// Seat accounting relies on LockLicense taking a SELECT ... FOR UPDATE row
// lock inside InTx, so two concurrent activations against the same license
// cannot both pass the seat-limit check.
type PostgresStore struct {
	db *sql.DB // nil when this store is a transactional view
	q  querier
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

// ---------- Transactions ----------

func (p *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if p.db == nil {
		// Already inside a transaction; join it.
		return fn(p)
	}

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&PostgresStore{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique violation on
// the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
	}
	return false
}

// ---------- Brands ----------

func (p *PostgresStore) CreateBrand(ctx context.Context, b *Brand) error {
	_, err := p.q.ExecContext(ctx, `
		INSERT INTO brands (id, name, api_key_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.Name, b.APIKeyHash, b.IsActive, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "brands_name_key") {
			return ErrBrandExists
		}
		return fmt.Errorf("insert brand: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetBrand(ctx context.Context, id string) (*Brand, error) {
	return scanBrand(p.q.QueryRowContext(ctx, `
		SELECT id, name, api_key_hash, is_active, created_at, updated_at
		FROM brands WHERE id = $1`, id))
}

func (p *PostgresStore) GetBrandByKeyHash(ctx context.Context, hash string) (*Brand, error) {
	return scanBrand(p.q.QueryRowContext(ctx, `
		SELECT id, name, api_key_hash, is_active, created_at, updated_at
		FROM brands WHERE api_key_hash = $1`, hash))
}

func scanBrand(row *sql.Row) (*Brand, error) {
	b := &Brand{}
	err := row.Scan(&b.ID, &b.Name, &b.APIKeyHash, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBrandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan brand: %w", err)
	}
	return b, nil
}

// ---------- Products ----------

func (p *PostgresStore) CreateProduct(ctx context.Context, pr *Product) error {
	_, err := p.q.ExecContext(ctx, `
		INSERT INTO products (id, brand_id, name, slug, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pr.ID, pr.BrandID, pr.Name, pr.Slug, pr.IsActive, pr.CreatedAt, pr.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "products_brand_id_slug_key") {
			return ErrProductExists
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	return scanProduct(p.q.QueryRowContext(ctx, `
		SELECT id, brand_id, name, slug, is_active, created_at, updated_at
		FROM products WHERE id = $1`, id))
}

func (p *PostgresStore) GetActiveProductBySlug(ctx context.Context, brandID, slug string) (*Product, error) {
	return scanProduct(p.q.QueryRowContext(ctx, `
		SELECT id, brand_id, name, slug, is_active, created_at, updated_at
		FROM products WHERE brand_id = $1 AND slug = $2 AND is_active = TRUE`,
		brandID, slug))
}

func scanProduct(row *sql.Row) (*Product, error) {
	pr := &Product{}
	err := row.Scan(&pr.ID, &pr.BrandID, &pr.Name, &pr.Slug, &pr.IsActive, &pr.CreatedAt, &pr.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return pr, nil
}

// ---------- License keys ----------

func (p *PostgresStore) CreateLicenseKey(ctx context.Context, k *LicenseKey) error {
	_, err := p.q.ExecContext(ctx, `
		INSERT INTO license_keys (id, key, brand_id, customer_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		k.ID, k.Key, k.BrandID, k.CustomerEmail, k.CreatedAt, k.UpdatedAt,
	)
	if err != nil {
		// Covers both the key-string and the (brand_id, customer_email)
		// constraints; Provision retries and reuses the committed key.
		if isUniqueViolation(err, "") {
			return ErrLicenseKeyExists
		}
		return fmt.Errorf("insert license key: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetLicenseKey(ctx context.Context, id string) (*LicenseKey, error) {
	return scanLicenseKey(p.q.QueryRowContext(ctx, `
		SELECT id, key, brand_id, customer_email, created_at, updated_at
		FROM license_keys WHERE id = $1`, id))
}

func (p *PostgresStore) GetLicenseKeyByKey(ctx context.Context, key string) (*LicenseKey, error) {
	return scanLicenseKey(p.q.QueryRowContext(ctx, `
		SELECT id, key, brand_id, customer_email, created_at, updated_at
		FROM license_keys WHERE key = $1`, key))
}

func (p *PostgresStore) GetLicenseKeyForCustomer(ctx context.Context, brandID, email string) (*LicenseKey, error) {
	return scanLicenseKey(p.q.QueryRowContext(ctx, `
		SELECT id, key, brand_id, customer_email, created_at, updated_at
		FROM license_keys WHERE brand_id = $1 AND customer_email = $2`,
		brandID, email))
}

func (p *PostgresStore) LicenseKeyExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := p.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM license_keys WHERE key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check license key: %w", err)
	}
	return exists, nil
}

func (p *PostgresStore) ListLicenseKeysByEmail(ctx context.Context, email string) ([]*LicenseKey, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT id, key, brand_id, customer_email, created_at, updated_at
		FROM license_keys WHERE customer_email = $1
		ORDER BY created_at`, email)
	if err != nil {
		return nil, fmt.Errorf("list license keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []*LicenseKey
	for rows.Next() {
		k := &LicenseKey{}
		if err := rows.Scan(&k.ID, &k.Key, &k.BrandID, &k.CustomerEmail, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan license key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func scanLicenseKey(row *sql.Row) (*LicenseKey, error) {
	k := &LicenseKey{}
	err := row.Scan(&k.ID, &k.Key, &k.BrandID, &k.CustomerEmail, &k.CreatedAt, &k.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrLicenseKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan license key: %w", err)
	}
	return k, nil
}

// ---------- Licenses ----------

const licenseColumns = `id, license_key_id, product_id, status, expiration_date, max_seats, created_at, updated_at`

func (p *PostgresStore) CreateLicense(ctx context.Context, l *License) error {
	_, err := p.q.ExecContext(ctx, `
		INSERT INTO licenses (`+licenseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.LicenseKeyID, l.ProductID, string(l.Status),
		nullTime(l.ExpirationDate), nullInt(l.MaxSeats), l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "licenses_license_key_id_product_id_key") {
			return ErrLicenseExists
		}
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetLicense(ctx context.Context, id string) (*License, error) {
	return scanLicense(p.q.QueryRowContext(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE id = $1`, id))
}

func (p *PostgresStore) GetLicenseByKeyAndProduct(ctx context.Context, keyID, productID string) (*License, error) {
	return scanLicense(p.q.QueryRowContext(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE license_key_id = $1 AND product_id = $2`,
		keyID, productID))
}

func (p *PostgresStore) LockLicense(ctx context.Context, id string) (*License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE id = $1`
	if p.db == nil {
		// Inside a transaction: take the row lock.
		query += ` FOR UPDATE`
	}
	return scanLicense(p.q.QueryRowContext(ctx, query, id))
}

func (p *PostgresStore) UpdateLicense(ctx context.Context, l *License) error {
	l.UpdatedAt = time.Now().UTC()
	result, err := p.q.ExecContext(ctx, `
		UPDATE licenses SET status = $1, expiration_date = $2, max_seats = $3, updated_at = $4
		WHERE id = $5`,
		string(l.Status), nullTime(l.ExpirationDate), nullInt(l.MaxSeats), l.UpdatedAt, l.ID,
	)
	if err != nil {
		return fmt.Errorf("update license: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update license: %w", err)
	}
	if rows == 0 {
		return ErrLicenseNotFound
	}
	return nil
}

func (p *PostgresStore) ListLicensesByKey(ctx context.Context, keyID string) ([]*License, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE license_key_id = $1 ORDER BY created_at`, keyID)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var licenses []*License
	for rows.Next() {
		l, err := scanLicenseRows(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, l)
	}
	return licenses, rows.Err()
}

func scanLicense(row *sql.Row) (*License, error) {
	l := &License{}
	var (
		status   string
		expires  sql.NullTime
		maxSeats sql.NullInt64
	)
	err := row.Scan(&l.ID, &l.LicenseKeyID, &l.ProductID, &status, &expires, &maxSeats,
		&l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan license: %w", err)
	}
	fillLicense(l, status, expires, maxSeats)
	return l, nil
}

func scanLicenseRows(rows *sql.Rows) (*License, error) {
	l := &License{}
	var (
		status   string
		expires  sql.NullTime
		maxSeats sql.NullInt64
	)
	err := rows.Scan(&l.ID, &l.LicenseKeyID, &l.ProductID, &status, &expires, &maxSeats,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan license: %w", err)
	}
	fillLicense(l, status, expires, maxSeats)
	return l, nil
}

func fillLicense(l *License, status string, expires sql.NullTime, maxSeats sql.NullInt64) {
	l.Status = Status(status)
	if expires.Valid {
		t := expires.Time
		l.ExpirationDate = &t
	}
	if maxSeats.Valid {
		n := int(maxSeats.Int64)
		l.MaxSeats = &n
	}
}

// ---------- Activations ----------

func (p *PostgresStore) CreateActivation(ctx context.Context, a *Activation) error {
	_, err := p.q.ExecContext(ctx, `
		INSERT INTO activations (id, license_id, instance_id, activated_at, deactivated_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.LicenseID, a.InstanceID, a.ActivatedAt, nullTime(a.DeactivatedAt), a.IsActive,
	)
	if err != nil {
		return fmt.Errorf("insert activation: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetActiveActivation(ctx context.Context, licenseID, instanceID string) (*Activation, error) {
	a := &Activation{}
	var deactivated sql.NullTime
	err := p.q.QueryRowContext(ctx, `
		SELECT id, license_id, instance_id, activated_at, deactivated_at, is_active
		FROM activations
		WHERE license_id = $1 AND instance_id = $2 AND is_active = TRUE`,
		licenseID, instanceID,
	).Scan(&a.ID, &a.LicenseID, &a.InstanceID, &a.ActivatedAt, &deactivated, &a.IsActive)
	if err == sql.ErrNoRows {
		return nil, ErrActivationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan activation: %w", err)
	}
	if deactivated.Valid {
		t := deactivated.Time
		a.DeactivatedAt = &t
	}
	return a, nil
}

func (p *PostgresStore) CountActiveActivations(ctx context.Context, licenseID string) (int, error) {
	var count int
	err := p.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activations WHERE license_id = $1 AND is_active = TRUE`,
		licenseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count activations: %w", err)
	}
	return count, nil
}

func (p *PostgresStore) UpdateActivation(ctx context.Context, a *Activation) error {
	result, err := p.q.ExecContext(ctx, `
		UPDATE activations SET deactivated_at = $1, is_active = $2
		WHERE id = $3`,
		nullTime(a.DeactivatedAt), a.IsActive, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update activation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update activation: %w", err)
	}
	if rows == 0 {
		return ErrActivationNotFound
	}
	return nil
}

// ---------- Helpers ----------

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}
