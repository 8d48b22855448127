package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BjarniRunar/moggie/intset"
	"github.com/BjarniRunar/moggie/query/ast"
	"github.com/BjarniRunar/moggie/query/parser"
	"github.com/BjarniRunar/moggie/termmagic"
)

// Search parses and evaluates a boolean query string against the index,
// per spec §4.4. Unless the query explicitly mentions "is:deleted", the
// engine's tombstone set is subtracted from the result.
func (e *Engine) Search(query string) (*intset.IntSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tree, err := e.expandQuery(query)
	if err != nil {
		return nil, newErr(InvalidQuery, "parse query", err)
	}
	return e.evalLocked(tree)
}

// Explain parses query and renders its expanded operator tree as a
// parenthesized boolean expression, for debugging and the CLI's
// --explain flag.
func (e *Engine) Explain(query string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tree, err := e.expandQuery(query)
	if err != nil {
		return "", newErr(InvalidQuery, "parse query", err)
	}
	return ast.Explain(tree), nil
}

// expandQuery parses query, rewrites every magic term, and (unless the
// query already mentions is:deleted) wraps the result so deleted messages
// are excluded by default.
func (e *Engine) expandQuery(query string) (ast.Node, error) {
	tree, err := parser.Parse(query)
	if err != nil {
		return nil, err
	}
	tree = e.expandTerms(tree)
	if !mentionsDeleted(tree) {
		tree = ast.And(ast.Not(ast.Term{Value: "is:deleted"}), tree)
	}
	return tree, nil
}

func mentionsDeleted(n ast.Node) bool {
	switch t := n.(type) {
	case ast.Term:
		return t.Value == "is:deleted"
	case ast.Op:
		for _, a := range t.Args {
			if mentionsDeleted(a) {
				return true
			}
		}
	}
	return false
}

// expandTerms walks the tree, rewriting every magic Term leaf in place.
func (e *Engine) expandTerms(n ast.Node) ast.Node {
	switch t := n.(type) {
	case ast.Term:
		return e.expandTerm(t.Value)
	case ast.Op:
		args := make([]ast.Node, len(t.Args))
		for i, a := range t.Args {
			args[i] = e.expandTerms(a)
		}
		return ast.Op{Kind: t.Kind, Args: args}
	}
	return n
}

// expandTerm rewrites a single raw term per spec §4.4's magic-term table.
// A term that doesn't match any family is left as a plain keyword.
func (e *Engine) expandTerm(raw string) ast.Node {
	switch {
	case raw == "all:mail" || raw == "*" || raw == "":
		return ast.Term{Value: "all:mail"}
	case strings.HasPrefix(raw, "is:"):
		return expandIs(raw[len("is:"):])
	case strings.HasPrefix(raw, "dates:"):
		return expandDateRange(raw[len("dates:"):], "date")
	case strings.HasPrefix(raw, "date:"):
		return ast.Term{Value: raw}
	case strings.HasPrefix(raw, "vdates:"):
		return expandDateRange(raw[len("vdates:"):], "vdate")
	case strings.HasPrefix(raw, "vdate:"):
		return ast.Term{Value: raw}
	case strings.HasPrefix(raw, "version:"):
		return expandVersion(raw[len("version:"):])
	case strings.HasPrefix(raw, "message-id:"):
		return ast.Term{Value: "msgid:" + termmagic.MsgIDHash(raw[len("message-id:"):])}
	case strings.HasPrefix(raw, "msgid:"):
		body := raw[len("msgid:"):]
		if termmagic.LooksLikeMessageID(body) {
			return ast.Term{Value: "msgid:" + termmagic.MsgIDHash(body)}
		}
		return ast.Term{Value: raw}
	case (strings.HasPrefix(raw, "tag:") || strings.HasPrefix(raw, "in:")) && strings.Contains(raw, "@"):
		at := strings.LastIndexByte(raw, '@')
		return ast.Term{Value: normalizeKeyword(raw[:at], "") + raw[at:]}
	case strings.HasPrefix(raw, "tag:"):
		return ast.Term{Value: normalizeKeyword(raw, "")}
	case strings.HasPrefix(raw, "in:"):
		return ast.Term{Value: normalizeKeyword(raw, "")}
	default:
		return ast.Term{Value: raw}
	}
}

func expandIs(what string) ast.Node {
	switch what {
	case "deleted":
		return ast.Term{Value: "is:deleted"}
	case "unread":
		return ast.Not(ast.Term{Value: "in:read"})
	case "read":
		return ast.Term{Value: "in:read"}
	default:
		return ast.Term{Value: "is:" + what}
	}
}

// expandDateRange expands "dates:2012..2013" (or "vdates:...") into an OR
// of the kwFamily:YYYY keyword TsToKeywords produces for each year in the
// range. A range whose ends are not both four-digit years is not expanded
// into months or days: it becomes an OR of its two endpoint keywords only
// (kwFamily:lo, kwFamily:hi).
func expandDateRange(body, family string) ast.Node {
	parts := strings.SplitN(body, "..", 2)
	if len(parts) != 2 {
		return ast.Term{Value: fmt.Sprintf("%s:%s", family, body)}
	}
	lo, hi := parts[0], parts[1]
	if len(lo) == 4 && len(hi) == 4 {
		loYear, errLo := strconv.Atoi(lo)
		hiYear, errHi := strconv.Atoi(hi)
		if errLo == nil && errHi == nil && loYear <= hiYear {
			var args []ast.Node
			for y := loYear; y <= hiYear; y++ {
				args = append(args, ast.Term{Value: fmt.Sprintf("%s:%04d", family, y)})
			}
			return ast.Or(args...)
		}
	}
	return ast.Or(ast.Term{Value: fmt.Sprintf("%s:%s", family, lo)}, ast.Term{Value: fmt.Sprintf("%s:%s", family, hi)})
}

func expandVersion(body string) ast.Node {
	if strings.HasPrefix(body, ">=") {
		n, err := strconv.ParseUint(body[2:], 10, 64)
		if err == nil {
			return ast.Term{Value: fmt.Sprintf("version:>=%d", n)}
		}
	}
	return ast.Term{Value: "version:" + body}
}

// evalLocked evaluates an expanded tree against the index. e.mu must
// already be held.
func (e *Engine) evalLocked(n ast.Node) (*intset.IntSet, error) {
	switch t := n.(type) {
	case ast.Term:
		return e.evalTermLocked(t.Value)
	case ast.Op:
		switch t.Kind {
		case ast.KindAnd:
			result := intset.All(e.maxint + 1)
			for _, a := range t.Args {
				s, err := e.evalLocked(a)
				if err != nil {
					return nil, err
				}
				result = intset.And(result, s)
			}
			return result, nil
		case ast.KindOr:
			result := intset.New()
			for _, a := range t.Args {
				s, err := e.evalLocked(a)
				if err != nil {
					return nil, err
				}
				result = intset.Or(result, s)
			}
			return result, nil
		case ast.KindNot:
			inner, err := e.evalLocked(t.Args[0])
			if err != nil {
				return nil, err
			}
			return intset.Sub(intset.All(e.maxint+1), inner), nil
		}
	}
	return intset.New(), nil
}

func (e *Engine) evalTermLocked(kw string) (*intset.IntSet, error) {
	if kw == "all:mail" {
		return intset.All(e.maxint + 1), nil
	}
	if strings.HasPrefix(kw, "id:") || strings.HasPrefix(kw, "mid:") {
		body := kw[strings.IndexByte(kw, ':')+1:]
		s, err := parseIDList(body)
		if err != nil {
			return nil, newErr(InvalidQuery, "parse id list", err)
		}
		return s, nil
	}
	if kw == "is:deleted" {
		return e.deleted.Copy(), nil
	}
	idx, ok, err := e.keywordIndexLocked(kw, preferL1For(kw, nil), false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return intset.New(), nil
	}
	bucket, err := e.loadBucket(idx)
	if err != nil {
		return nil, err
	}
	set := bucket.Get([]byte(kw))
	if set == nil {
		return intset.New(), nil
	}
	return set.Copy(), nil
}

// parseIDList parses a comma-separated "id:"/"mid:" body, where each
// segment is either a single integer or an inclusive "a..b" range.
func parseIDList(body string) (*intset.IntSet, error) {
	out := intset.New()
	for _, seg := range strings.Split(body, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if strings.Contains(seg, "..") {
			parts := strings.SplitN(seg, "..", 2)
			lo, err := strconv.ParseUint(parts[0], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("search: invalid id range %q: %w", seg, err)
			}
			hi, err := strconv.ParseUint(parts[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("search: invalid id range %q: %w", seg, err)
			}
			for i := lo; i <= hi; i++ {
				out.Add(uint32(i))
			}
			continue
		}
		v, err := strconv.ParseUint(seg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("search: invalid id %q: %w", seg, err)
		}
		out.Add(uint32(v))
	}
	return out, nil
}

// touchTimestamp returns the date/vdate keywords for ts, used by callers
// building an Entry's keyword list from a message's Date: header
// (kwDate "date") or its indexing time (kwDate "vdate").
func touchTimestamp(ts time.Time, kwDate string) []string {
	return termmagic.TsToKeywords(ts, kwDate)
}
