package catalog

import (
	"fmt"
	"sort"
	"strings"
)

const productsTable = "tiny.produtos"

// selectColumns is the row subset the pipeline reads. COALESCE keeps
// scanning simple on sparsely filled rows.
const selectColumns = "id, COALESCE(codigo_sku,''), COALESCE(descricao,''), " +
	"COALESCE(preco,0), COALESCE(preco_de_custo,0), COALESCE(tipo_do_produto,''), " +
	"COALESCE(situacao,''), COALESCE(gtin_ean,'')"

// allowedColumns is the whitelist for direct per-column filters.
// Anything not listed is silently ignored.
var allowedColumns = map[string]bool{
	"id":                   true,
	"codigo_sku":           true,
	"descricao":            true,
	"unidade":              true,
	"classificacao_fiscal": true,
	"origem":               true,
	"preco":                true,
	"situacao":             true,
	"estoque":              true,
	"preco_de_custo":       true,
	"cod_do_fornecedor":    true,
	"fornecedor":           true,
	"gtin_ean":             true,
	"categoria":            true,
	"codigo_do_pai":        true,
	"marca":                true,
	"tipo_do_produto":      true,
	"preco_promocional":    true,
}

// globalSearchColumns participate in the cross-column substring search.
var globalSearchColumns = []string{
	"id",
	"codigo_sku",
	"descricao",
	"cod_do_fornecedor",
	"fornecedor",
	"gtin_ean",
	"categoria",
	"marca",
}

// SearchOptions parameterizes a catalog search. String filters match as
// case-insensitive substrings, other types by equality. Global searches
// across the text column set.
type SearchOptions struct {
	Filters map[string]any
	Global  string
	Limit   int
	Offset  int
}

// ExactSKU switches codigo_sku filtering from substring to equality.
// Substring matching can bind a prefix SKU to the wrong row.
type ExactSKU string

// buildSearchQuery renders the parameterized SELECT. Filter columns are
// applied in sorted order so the output is deterministic.
func buildSearchQuery(opts SearchOptions) (string, []any) {
	limit := opts.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	var where []string
	var args []any

	if term := strings.TrimSpace(opts.Global); term != "" {
		args = append(args, "%"+term+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		parts := make([]string, 0, len(globalSearchColumns))
		for _, col := range globalSearchColumns {
			parts = append(parts, fmt.Sprintf("%s::text ILIKE %s", col, placeholder))
		}
		where = append(where, "("+strings.Join(parts, " OR ")+")")
	}

	columns := make([]string, 0, len(opts.Filters))
	for column := range opts.Filters {
		if allowedColumns[column] {
			columns = append(columns, column)
		}
	}
	sort.Strings(columns)

	for _, column := range columns {
		value := opts.Filters[column]
		if value == nil || value == "" {
			continue
		}
		switch v := value.(type) {
		case ExactSKU:
			args = append(args, string(v))
			where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
		case string:
			args = append(args, "%"+v+"%")
			where = append(where, fmt.Sprintf("%s::text ILIKE $%d", column, len(args)))
		default:
			args = append(args, value)
			where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", selectColumns, productsTable)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY id LIMIT $%d", len(args))
	args = append(args, offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	return sb.String(), args
}
