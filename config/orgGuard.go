package config

import (
	"context"
	"strings"

	"github.com/gastrodata/mercuriale_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrganizationGuardPlugin enforces multi-tenant isolation by automatically scoping
// queries/updates/deletes to the request's organization_id when the model has an
// organization_id column.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include organization_id manually.
type OrganizationGuardPlugin struct{}

func NewOrganizationGuardPlugin() *OrganizationGuardPlugin { return &OrganizationGuardPlugin{} }

func (p *OrganizationGuardPlugin) Name() string { return "organization_guard" }

func (p *OrganizationGuardPlugin) Initialize(db *gorm.DB) error {
	// Query
	if err := db.Callback().Query().Before("gorm:query").Register("organization_guard:query", organizationGuardCallback); err != nil {
		return err
	}
	// Row (First/Take)
	if err := db.Callback().Row().Before("gorm:row").Register("organization_guard:row", organizationGuardCallback); err != nil {
		return err
	}
	// Update
	if err := db.Callback().Update().Before("gorm:update").Register("organization_guard:update", organizationGuardCallback); err != nil {
		return err
	}
	// Delete
	if err := db.Callback().Delete().Before("gorm:delete").Register("organization_guard:delete", organizationGuardCallback); err != nil {
		return err
	}
	return nil
}

func organizationGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	organizationID := organizationIdFromContext(ctx)
	if organizationID == "" {
		return
	}

	// Only apply if the current model/table includes an organization_id column.
	if db.Statement.Schema == nil {
		return
	}
	hasOrganizationID := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "organization_id") {
			hasOrganizationID = true
			break
		}
	}
	if !hasOrganizationID {
		return
	}

	// Don't duplicate an explicit tenant filter.
	if whereHasOrganizationID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "organization_id"},
				Value:  organizationID,
			},
		},
	})
}

func organizationIdFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(appctx.ContextKeyOrganizationId).(string); ok && v != "" {
		return v
	}
	return ""
}

func whereHasOrganizationID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasOrganizationID(e) {
			return true
		}
	}
	return false
}

func exprHasOrganizationID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsOrganizationID(v.Column)
	case clause.Neq:
		return colIsOrganizationID(v.Column)
	case clause.IN:
		return colIsOrganizationID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasOrganizationID(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasOrganizationID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "organization_id")
	default:
		return false
	}
}

func colIsOrganizationID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "organization_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "organization_id")
	default:
		return false
	}
}
