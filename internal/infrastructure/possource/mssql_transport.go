package possource

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

// MssqlTransport reads the stock query over a direct SQL Server connection.
// The driver is registered by the caller (cmd imports go-mssqldb).
type MssqlTransport struct {
	db         *sql.DB
	stockQuery string
}

func NewMssqlTransport(db *sql.DB, stockQuery string) *MssqlTransport {
	return &MssqlTransport{db: db, stockQuery: stockQuery}
}

func (t *MssqlTransport) Name() string { return "mssql" }

func (t *MssqlTransport) Ping(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

func (t *MssqlTransport) QueryStock(ctx context.Context) ([]domain.StockRow, error) {
	rows, err := t.db.QueryContext(ctx, t.stockQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []domain.StockRow
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		byName := make(map[string]string, len(cols))
		for i, c := range cols {
			if values[i].Valid {
				byName[c] = strings.TrimSpace(values[i].String)
			}
		}
		result = append(result, stockRowFromColumns(byName))
	}
	return result, rows.Err()
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	// some drivers hand back decimals for integer columns
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
