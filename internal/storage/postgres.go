package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/privsynth/pkg/errors"
	"github.com/inferloop/privsynth/pkg/models"
)

// PostgresConfig locates a categorical table in Postgres.
type PostgresConfig struct {
	DSN     string   `json:"dsn"`
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

// LoadPostgres reads the configured columns of a Postgres table into a
// label-encoded dataset. Every value is read as text; NULLs become the
// empty label.
func LoadPostgres(ctx context.Context, config *PostgresConfig, logger *logrus.Logger) (*models.Dataset, Codec, error) {
	if config == nil || config.DSN == "" || config.Table == "" || len(config.Columns) == 0 {
		return nil, nil, errors.NewConfigurationError(errors.CodeReadFailed,
			"postgres loader needs a DSN, table, and column list")
	}
	if logger == nil {
		logger = logrus.New()
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"failed to open postgres connection")
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"failed to reach postgres")
	}

	quoted := make([]string, len(config.Columns))
	for i, col := range config.Columns {
		quoted[i] = fmt.Sprintf("%s::text", pq.QuoteIdentifier(col))
	}
	query := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(quoted, ", "), pq.QuoteIdentifier(config.Table))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("failed to query table %s", config.Table))
	}
	defer rows.Close()

	var data [][]string
	values := make([]sql.NullString, len(config.Columns))
	scan := make([]interface{}, len(config.Columns))
	for i := range values {
		scan[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
				"failed to scan row")
		}
		row := make([]string, len(values))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"row iteration failed")
	}
	if len(data) == 0 {
		return nil, nil, errors.NewStorageError(errors.CodeEmptyDataset,
			fmt.Sprintf("table %s has no rows", config.Table))
	}

	dataset, codec, err := encodeColumns(config.Columns, data)
	if err != nil {
		return nil, nil, err
	}

	logger.WithFields(logrus.Fields{
		"table":      config.Table,
		"records":    dataset.Records(),
		"attributes": len(config.Columns),
	}).Info("Loaded postgres dataset")

	return dataset, codec, nil
}
