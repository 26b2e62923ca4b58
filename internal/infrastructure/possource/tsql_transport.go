package possource

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

// TsqlTransport shells out to the FreeTDS tsql binary. It exists because
// some hosts (Mac ARM without ODBC drivers) cannot load the native SQL
// Server client, while FreeTDS builds everywhere.
type TsqlTransport struct {
	Path       string
	Host       string
	Port       int
	Database   string
	User       string
	Password   string
	StockQuery string
}

func (t *TsqlTransport) Name() string { return "tsql" }

func (t *TsqlTransport) Ping(ctx context.Context) error {
	rows, err := t.run(ctx, "SELECT 1 as test")
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("tsql probe returned no rows")
	}
	return nil
}

func (t *TsqlTransport) QueryStock(ctx context.Context) ([]domain.StockRow, error) {
	rows, err := t.run(ctx, t.StockQuery)
	if err != nil {
		return nil, err
	}

	result := make([]domain.StockRow, 0, len(rows))
	for _, cols := range rows {
		result = append(result, stockRowFromColumns(cols))
	}
	return result, nil
}

func (t *TsqlTransport) run(ctx context.Context, query string) ([]map[string]string, error) {
	path := t.Path
	if path == "" {
		path = "tsql"
	}

	cmd := exec.CommandContext(ctx, path,
		"-H", t.Host,
		"-p", strconv.Itoa(t.Port),
		"-U", t.User,
		"-P", t.Password,
		"-D", t.Database,
	)
	cmd.Env = append(cmd.Environ(), "LANG=en_US.UTF-8")
	cmd.Stdin = strings.NewReader(query + "\nGO\nEXIT\n")

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tsql command failed: %w: %s", err, strings.TrimSpace(out.String()))
	}

	return parseTsqlOutput(strings.Split(out.String(), "\n")), nil
}

var promptPrefix = regexp.MustCompile(`^(\d+>\s*)+`)

// parseTsqlOutput turns the tabular tsql output into rows keyed by the
// header line. tsql mixes prompts, locale chatter and row-count lines into
// stdout; everything that is not header or data gets skipped.
func parseTsqlOutput(lines []string) []map[string]string {
	var results []map[string]string
	var headers []string
	headerParsed := false

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "locale") || strings.HasPrefix(line, "using default") {
			continue
		}

		line = promptPrefix.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "Setting") && strings.Contains(line, "default database") {
			continue
		}
		if strings.Contains(line, "affected") {
			continue
		}

		if !headerParsed {
			headers = splitColumns(line, -1)
			headerParsed = true
			continue
		}

		values := splitColumns(line, len(headers))
		if len(values) != len(headers) {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			row[h] = values[i]
		}
		results = append(results, row)
	}

	return results
}

// splitColumns prefers tabs and falls back to whitespace runs, capping the
// number of fields so product names with spaces survive when last.
func splitColumns(line string, n int) []string {
	if strings.Contains(line, "\t") {
		parts := strings.Split(line, "\t")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	if n > 0 {
		return regexp.MustCompile(`\s+`).Split(line, n)
	}
	return strings.Fields(line)
}
