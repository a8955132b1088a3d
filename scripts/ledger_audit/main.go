// Command ledger_audit reports which service methods write wallet or ledger
// rows directly instead of going through the wallet aggregate.
//
//	go run ./scripts/ledger_audit [-strict] [root]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
)

func main() {
	strict := flag.Bool("strict", false, "exit 1 when a service writes ledger rows directly")
	flag.Parse()

	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}

	report, err := auditServices(root)
	if err != nil {
		exitf("%v", err)
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exitf("marshal report: %v", err)
	}
	fmt.Println(string(out))

	if *strict && len(report.DirectLedgerWrites) > 0 {
		exitf("%d direct ledger write(s) outside the wallet aggregate", len(report.DirectLedgerWrites))
	}
}

func auditServices(root string) (auditReport, error) {
	servicesDir := filepath.Join(root, "internal", "services")
	fset := token.NewFileSet()

	pkgs, err := parser.ParseDir(fset, servicesDir, func(fi os.FileInfo) bool {
		name := fi.Name()
		return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
	}, 0)
	if err != nil {
		return auditReport{}, fmt.Errorf("parse dir: %w", err)
	}
	pkg, ok := pkgs["services"]
	if !ok {
		return auditReport{}, fmt.Errorf("services package not found in %s", servicesDir)
	}

	// Struct fields must be indexed across every file before methods are scanned.
	a := newAuditor(fset, root)
	for _, f := range pkg.Files {
		a.indexStructs(f)
	}
	for _, f := range pkg.Files {
		a.scanMethods(f)
	}
	return a.finish(), nil
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
