package repository

import (
	"context"
	"database/sql"
	"errors"
	"net/netip"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"rirranges/internal/model"
)

const schema = `
    CREATE TABLE IF NOT EXISTS ip_ranges (
        id           BIGSERIAL PRIMARY KEY,
        network      INET NOT NULL UNIQUE,
        country_code CHAR(2) NOT NULL,
        ip_version   SMALLINT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS ip_ranges_country_idx ON ip_ranges (country_code, ip_version);
    CREATE INDEX IF NOT EXISTS ip_ranges_network_idx ON ip_ranges USING gist (network inet_ops);
`

type PostgresRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewPostgresRepository(db *sqlx.DB, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Publish replaces the stored ranges of one country and family.
func (r *PostgresRepository) Publish(ctx context.Context, country string, family model.Family, cidrs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM ip_ranges WHERE country_code = $1 AND ip_version = $2",
		country, family.Version()); err != nil {
		return err
	}

	query := `
        INSERT INTO ip_ranges (network, country_code, ip_version)
        VALUES ($1, $2, $3)
        ON CONFLICT (network)
        DO UPDATE SET
            country_code = EXCLUDED.country_code,
            ip_version = EXCLUDED.ip_version
    `

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, cidr := range cidrs {
		ipRange := model.IPRange{
			Network:     cidr,
			CountryCode: country,
			Version:     family.Version(),
		}
		_, err = stmt.ExecContext(ctx,
			ipRange.Network,
			ipRange.CountryCode,
			ipRange.Version)
		if err != nil {
			r.logger.Error("failed to insert IP range",
				zap.String("network", ipRange.Network),
				zap.Error(err))
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresRepository) FindCountryForIP(ctx context.Context, ip netip.Addr) (string, error) {
	query := `
        SELECT country_code
        FROM ip_ranges
        WHERE network >>= $1
        ORDER BY masklen(network) DESC
        LIMIT 1
    `

	var countryCode string
	err := r.db.GetContext(ctx, &countryCode, query, ip.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "ZZ", nil // ZZ for unknown/not found
		}

		r.logger.Error("failed to find country for IP",
			zap.String("ip", ip.String()),
			zap.Error(err))
		return "", err
	}

	return countryCode, nil
}
