package main

import (
	"fmt"
	"go/ast"
	"go/token"
	"path/filepath"
	"sort"
)

// Repos whose rows only the wallet aggregate may write.
var guardedRepos = map[string]bool{
	"ResourceWalletRepo":  true,
	"SeatTransactionRepo": true,
}

// Repo methods that insert, update or lock rows.
var repoWriteMethods = map[string]bool{
	"Create":          true,
	"CreateIfMissing": true,
	"UpdateFields":    true,
	"UpdateBalances":  true,
	"Upsert":          true,
	"Delete":          true,
	"LockByUserID":    true,
}

var aggregateWriteMethods = map[string]bool{
	"EnsureWallet": true,
	"Debit":        true,
	"Credit":       true,
}

// callsite is one s.field.Method(...) call inside a service method.
type callsite struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Call    string `json:"call"`
	Pos     string `json:"pos"`

	file string
	line int
}

type auditReport struct {
	DirectLedgerWrites []callsite `json:"direct_ledger_writes"`
	AggregateWrites    []callsite `json:"aggregate_writes"`
	GuardedFields      []string   `json:"guarded_fields"`
}

type fieldKind int

const (
	guardedRepoField fieldKind = iota + 1
	aggregateField
)

// auditor collects, per service struct, which fields hold a guarded repo or
// a domain aggregate, then classifies every call through those fields.
type auditor struct {
	fset   *token.FileSet
	root   string
	fields map[string]map[string]fieldKind
	report auditReport
}

func newAuditor(fset *token.FileSet, root string) *auditor {
	return &auditor{fset: fset, root: root, fields: map[string]map[string]fieldKind{}}
}

func (a *auditor) indexStructs(file *ast.File) {
	ast.Inspect(file, func(n ast.Node) bool {
		ts, ok := n.(*ast.TypeSpec)
		if !ok {
			return true
		}
		st, ok := ts.Type.(*ast.StructType)
		if !ok {
			return false
		}
		for _, f := range st.Fields.List {
			kind := classifyField(f.Type)
			if kind == 0 {
				continue
			}
			for _, name := range f.Names {
				if a.fields[ts.Name.Name] == nil {
					a.fields[ts.Name.Name] = map[string]fieldKind{}
				}
				a.fields[ts.Name.Name][name.Name] = kind
			}
		}
		return false
	})
}

func classifyField(expr ast.Expr) fieldKind {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return 0
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok {
		return 0
	}
	switch {
	case pkg.Name == "repos" && guardedRepos[sel.Sel.Name]:
		return guardedRepoField
	case pkg.Name == "domainagg" && sel.Sel.Name == "WalletAggregate":
		return aggregateField
	}
	return 0
}

func (a *auditor) scanMethods(file *ast.File) {
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Body == nil || fd.Recv == nil || len(fd.Recv.List) != 1 {
			continue
		}
		recv, service := receiver(fd.Recv.List[0])
		fields := a.fields[service]
		if recv == "" || fields == nil {
			continue
		}
		ast.Inspect(fd.Body, func(n ast.Node) bool {
			field, method, ok := fieldCall(n, recv)
			if !ok {
				return true
			}
			site := callsite{
				Service: service,
				Method:  fd.Name.Name,
				Call:    field + "." + method,
			}
			site.file, site.line = a.position(n.Pos())
			site.Pos = fmt.Sprintf("%s:%d", site.file, site.line)
			switch fields[field] {
			case guardedRepoField:
				if repoWriteMethods[method] {
					a.report.DirectLedgerWrites = append(a.report.DirectLedgerWrites, site)
				}
			case aggregateField:
				if aggregateWriteMethods[method] {
					a.report.AggregateWrites = append(a.report.AggregateWrites, site)
				}
			}
			return true
		})
	}
}

// fieldCall matches recv.field.method(...).
func fieldCall(n ast.Node, recv string) (field, method string, ok bool) {
	call, isCall := n.(*ast.CallExpr)
	if !isCall {
		return "", "", false
	}
	outer, isSel := call.Fun.(*ast.SelectorExpr)
	if !isSel {
		return "", "", false
	}
	inner, isSel := outer.X.(*ast.SelectorExpr)
	if !isSel {
		return "", "", false
	}
	if id, isIdent := inner.X.(*ast.Ident); !isIdent || id.Name != recv {
		return "", "", false
	}
	return inner.Sel.Name, outer.Sel.Name, true
}

func receiver(f *ast.Field) (name, typ string) {
	if len(f.Names) == 0 {
		return "", ""
	}
	t := f.Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	id, ok := t.(*ast.Ident)
	if !ok {
		return "", ""
	}
	return f.Names[0].Name, id.Name
}

func (a *auditor) position(p token.Pos) (string, int) {
	pos := a.fset.Position(p)
	name := pos.Filename
	if rel, err := filepath.Rel(a.root, name); err == nil {
		name = rel
	}
	return filepath.ToSlash(name), pos.Line
}

func (a *auditor) finish() auditReport {
	for service, fields := range a.fields {
		for name, kind := range fields {
			if kind == guardedRepoField {
				a.report.GuardedFields = append(a.report.GuardedFields, service+"."+name)
			}
		}
	}
	sort.Strings(a.report.GuardedFields)
	byPos := func(s []callsite) {
		sort.Slice(s, func(i, j int) bool {
			if s[i].file != s[j].file {
				return s[i].file < s[j].file
			}
			return s[i].line < s[j].line
		})
	}
	byPos(a.report.DirectLedgerWrites)
	byPos(a.report.AggregateWrites)
	return a.report
}
