package rawsql

import (
	"fmt"
	"strings"
)

// Insertion point tokens. When present in the statement they override
// clause detection and mark exactly where extra expressions go.
const (
	tokenWhere     = "${where}"
	tokenAndWhere  = "${andwhere}"
	tokenHaving    = "${having}"
	tokenAndHaving = "${andhaving}"
)

// parsedColumn is one select-clause column before mapping resolution.
type parsedColumn struct {
	column string
	alias  string
}

type parseResult struct {
	sql     *Sql
	columns []parsedColumn
}

// clausePos holds the byte offsets of the top-level clause keywords,
// -1 when absent. Offsets point at the first character of the keyword.
type clausePos struct {
	from     int
	where    int
	group    int
	having   int
	order    int
	orderEnd int // offset just past "order by"
}

// parseStatement splits a select statement into its sections, removes
// any ${where}/${andWhere}/${having}/${andHaving} tokens, strips the
// trailing top-level ORDER BY and computes the insertion points.
func parseStatement(stmt string) (*parseResult, error) {
	s := strings.TrimSpace(stmt)
	if s == "" {
		return nil, fmt.Errorf("rawsql: empty sql statement")
	}
	if !hasKeywordAt(s, 0, "select") {
		return nil, fmt.Errorf("rawsql: statement must begin with SELECT")
	}

	s, wherePos, whereAnd, err := extractToken(s, tokenWhere, tokenAndWhere)
	if err != nil {
		return nil, err
	}
	var havingPos int
	var havingAnd bool
	s, havingPos, havingAnd, err = extractToken(s, tokenHaving, tokenAndHaving)
	if err != nil {
		return nil, err
	}

	cp := scanClauses(s)
	if cp.from < 0 {
		return nil, fmt.Errorf("rawsql: no top-level FROM clause in %q", stmt)
	}

	// Select clause, between SELECT [DISTINCT] and FROM.
	selStart := len("select")
	rest := s[selStart:cp.from]
	distinct := false
	trimmed := strings.TrimLeft(rest, " \t\r\n")
	if hasKeywordAt(trimmed, 0, "distinct") {
		distinct = true
		trimmed = trimmed[len("distinct"):]
	}
	columns, err := parseSelectColumns(trimmed)
	if err != nil {
		return nil, err
	}

	// Strip the trailing ORDER BY, keep it as the default ordering.
	body := s
	orderBy := ""
	if cp.order >= 0 {
		orderBy = strings.TrimSpace(s[cp.orderEnd:])
		body = strings.TrimRight(s[:cp.order], " \t\r\n")
		if wherePos > len(body) || havingPos > len(body) {
			return nil, fmt.Errorf("rawsql: insertion token after ORDER BY in %q", stmt)
		}
	}

	sql := &Sql{
		Body:     body,
		Distinct: distinct,
		Parsed:   true,
		OrderBy:  orderBy,
	}

	// Where insertion point: explicit token wins, otherwise just before
	// GROUP BY / HAVING, or at the end of the body.
	switch {
	case wherePos >= 0:
		if whereAnd && cp.where < 0 {
			return nil, fmt.Errorf("rawsql: %s used but statement has no WHERE clause", tokenAndWhere)
		}
		if !whereAnd && cp.where >= 0 {
			return nil, fmt.Errorf("rawsql: %s used but statement already has a WHERE clause", tokenWhere)
		}
		sql.WherePos = wherePos
		sql.WhereAnd = whereAnd
	case cp.group >= 0:
		sql.WherePos = beforeClause(body, cp.group)
		sql.WhereAnd = cp.where >= 0
	case cp.having >= 0:
		sql.WherePos = beforeClause(body, cp.having)
		sql.WhereAnd = cp.where >= 0
	default:
		sql.WherePos = len(body)
		sql.WhereAnd = cp.where >= 0
	}

	// Having insertion point: explicit token, else end of body when a
	// GROUP BY exists. Without GROUP BY an injected HAVING cannot be
	// placed, so the point stays disabled.
	switch {
	case havingPos >= 0:
		if havingAnd && cp.having < 0 {
			return nil, fmt.Errorf("rawsql: %s used but statement has no HAVING clause", tokenAndHaving)
		}
		if !havingAnd && cp.having >= 0 {
			return nil, fmt.Errorf("rawsql: %s used but statement already has a HAVING clause", tokenHaving)
		}
		sql.HavingPos = havingPos
		sql.HavingAnd = havingAnd
	case cp.group >= 0:
		sql.HavingPos = len(body)
		sql.HavingAnd = cp.having >= 0
	default:
		sql.HavingPos = -1
	}

	return &parseResult{sql: sql, columns: columns}, nil
}

// extractToken removes the first occurrence of either token variant and
// returns the cleaned string plus the removal offset (-1 when absent).
func extractToken(s, plain, and string) (string, int, bool, error) {
	lower := strings.ToLower(s)
	pp := strings.Index(lower, plain)
	ap := strings.Index(lower, and)
	if pp >= 0 && ap >= 0 {
		return "", 0, false, fmt.Errorf("rawsql: statement contains both %s and %s", plain, and)
	}
	pos, tok, isAnd := pp, plain, false
	if ap >= 0 {
		pos, tok, isAnd = ap, and, true
	}
	if pos < 0 {
		return s, -1, false, nil
	}
	if strings.Contains(lower[pos+len(tok):], plain) || strings.Contains(lower[pos+len(tok):], and) {
		return "", 0, false, fmt.Errorf("rawsql: duplicate %s token", tok)
	}
	// Collapse the whitespace around the token so removal leaves a
	// single clean joint; the joint offset is the insertion point.
	left := strings.TrimRight(s[:pos], " \t")
	right := strings.TrimLeft(s[pos+len(tok):], " \t")
	if right == "" {
		return left, len(left), isAnd, nil
	}
	return left + " " + right, len(left), isAnd, nil
}

// beforeClause backs the offset up over the whitespace run preceding a
// clause keyword so injected text lands between the clauses.
func beforeClause(body string, kwPos int) int {
	for kwPos > 0 && (body[kwPos-1] == ' ' || body[kwPos-1] == '\t' || body[kwPos-1] == '\n' || body[kwPos-1] == '\r') {
		kwPos--
	}
	return kwPos
}

// scanClauses finds the top-level clause keywords: paren depth zero,
// outside string literals and quoted identifiers. Only the first
// occurrence of each is recorded, except ORDER BY where the last one
// wins.
func scanClauses(s string) clausePos {
	cp := clausePos{from: -1, where: -1, group: -1, having: -1, order: -1}
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			continue
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		switch {
		case cp.from < 0 && hasKeywordAt(s, i, "from"):
			cp.from = i
		case cp.where < 0 && hasKeywordAt(s, i, "where"):
			cp.where = i
		case cp.group < 0 && hasKeywordAt(s, i, "group") && nextWordIs(s, i+len("group"), "by"):
			cp.group = i
		case cp.having < 0 && hasKeywordAt(s, i, "having"):
			cp.having = i
		case hasKeywordAt(s, i, "order") && nextWordIs(s, i+len("order"), "by"):
			cp.order = i
			cp.orderEnd = wordEnd(s, i+len("order"), "by")
		}
	}
	return cp
}

// parseSelectColumns splits the select clause on top-level commas and
// peels off "AS alias" suffixes.
func parseSelectColumns(sel string) ([]parsedColumn, error) {
	parts := splitTopLevel(sel, ',')
	if len(parts) == 0 {
		return nil, fmt.Errorf("rawsql: empty select clause")
	}
	columns := make([]parsedColumn, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("rawsql: empty column in select clause %q", sel)
		}
		col := parsedColumn{column: p}
		if asPos := lastTopLevelKeyword(p, "as"); asPos >= 0 {
			col.column = strings.TrimSpace(p[:asPos])
			col.alias = strings.TrimSpace(p[asPos+len("as"):])
		}
		columns = append(columns, col)
	}
	return columns, nil
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// lastTopLevelKeyword returns the offset of the last occurrence of the
// keyword at paren depth zero with word boundaries, or -1.
func lastTopLevelKeyword(s, kw string) int {
	depth := 0
	var quote byte
	last := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			continue
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if depth == 0 && hasKeywordAt(s, i, kw) {
			last = i
		}
	}
	return last
}

// hasKeywordAt reports a case-insensitive keyword match at offset i with
// word boundaries on both sides.
func hasKeywordAt(s string, i int, kw string) bool {
	if i+len(kw) > len(s) {
		return false
	}
	if !strings.EqualFold(s[i:i+len(kw)], kw) {
		return false
	}
	if i > 0 && isWordChar(s[i-1]) {
		return false
	}
	if i+len(kw) < len(s) && isWordChar(s[i+len(kw)]) {
		return false
	}
	return true
}

// nextWordIs skips whitespace from offset i and matches the next word.
func nextWordIs(s string, i int, word string) bool {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return hasKeywordAt(s, i, word)
}

// wordEnd returns the offset just past the word following offset i.
func wordEnd(s string, i int, word string) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i + len(word)
}

func isWordChar(c byte) bool {
	return c == '_' || c == '.' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
