package algebra

import (
	"fmt"

	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// Verify checks that every column of s resolves to a table of the select
// that uses it or of an enclosing select. A failure is a translator bug.
func Verify(s *Select) error {
	return verifySelect(s, nil)
}

func verifySelect(s *Select, outer []TableSource) error {
	if len(s.Tables) == 0 && len(s.Projection) == 0 {
		return domain.Errorf(domain.ErrInternal, "select", "", "select has neither a FROM source nor a projection")
	}
	scope := append([]TableSource{}, outer...)
	for _, j := range s.Tables {
		// Tables see the outer scope and the tables joined before them.
		for _, e := range TableExprs(j.Table) {
			if err := verifyExpr(e, scope); err != nil {
				return err
			}
		}
		for _, sub := range TableSelects(j.Table) {
			if err := verifySelect(sub, scope); err != nil {
				return err
			}
		}
		scope = append(scope, j.Table)
	}
	for _, e := range s.Expressions() {
		if err := verifyExpr(e, scope); err != nil {
			return err
		}
	}
	for _, id := range s.Identifier {
		if err := verifyExpr(id, scope); err != nil {
			return err
		}
	}
	return nil
}

func verifyExpr(e SQLExpr, scope []TableSource) error {
	var err error
	var visit func(SQLExpr) bool
	visit = func(n SQLExpr) bool {
		if err != nil {
			return false
		}
		switch x := n.(type) {
		case *Column:
			if !inScope(x.Table, scope) {
				err = domain.Errorf(domain.ErrInternal, "column "+x.Name, "", "table %s is not in scope", describeTable(x.Table))
			}
		case *Star:
			if x.Table != nil && !inScope(x.Table, scope) {
				err = domain.Errorf(domain.ErrInternal, "*", "", "table %s is not in scope", describeTable(x.Table))
			}
		}
		if err != nil {
			return false
		}
		_, selects := Children(n)
		for _, sub := range selects {
			if e := verifySelect(sub, scope); e != nil {
				err = e
				return false
			}
		}
		return true
	}
	InspectExpr(e, visit)
	return err
}

func inScope(t TableSource, scope []TableSource) bool {
	for _, s := range scope {
		if s == t {
			return true
		}
	}
	return false
}

func describeTable(t TableSource) string {
	switch n := t.(type) {
	case *TableExpr:
		return n.Name
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("%T", t)
}
