package assistant

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gorm.io/gorm"
)

// RowData is one result row keyed by column name; values are already
// JSON-safe (see EncodeValue). Column order travels separately.
type RowData map[string]any

// Executor runs validated read-only queries against the tenant's data
// store. Every attempt, including rejected ones, writes exactly one
// QueryAudit row.
type Executor struct {
	db   *gorm.DB
	repo *Repo
}

func NewExecutor(db *gorm.DB, repo *Repo) *Executor {
	return &Executor{db: db, repo: repo}
}

func (e *Executor) Execute(ctx context.Context, query string, companyID, userID uint64, messageID *uint64) ([]string, []RowData, error) {
	audit := &QueryAudit{
		CompanyID: companyID,
		UserID:    userID,
		MessageID: messageID,
		Query:     query,
	}
	if err := e.repo.CreateQueryAudit(ctx, audit); err != nil {
		return nil, nil, err
	}

	if verr := ValidateQuery(query); verr != nil {
		e.finalizeFailure(ctx, audit, verr.Error(), nil)
		return nil, nil, verr
	}

	start := time.Now()

	sqlRows, err := e.db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		e.finalizeFailure(ctx, audit, err.Error(), durationMS(start))
		return nil, nil, err
	}
	defer sqlRows.Close()

	cols, err := sqlRows.Columns()
	if err != nil {
		e.finalizeFailure(ctx, audit, err.Error(), durationMS(start))
		return nil, nil, err
	}
	colTypes, err := sqlRows.ColumnTypes()
	if err != nil {
		e.finalizeFailure(ctx, audit, err.Error(), durationMS(start))
		return nil, nil, err
	}
	typeNames := make([]string, len(cols))
	for i, ct := range colTypes {
		typeNames[i] = ct.DatabaseTypeName()
	}

	data := make([]RowData, 0, 16)
	for sqlRows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := sqlRows.Scan(ptrs...); err != nil {
			e.finalizeFailure(ctx, audit, err.Error(), durationMS(start))
			return nil, nil, err
		}
		row := make(RowData, len(cols))
		for i, col := range cols {
			row[col] = EncodeValue(typeNames[i], vals[i])
		}
		data = append(data, row)
	}
	if err := sqlRows.Err(); err != nil {
		e.finalizeFailure(ctx, audit, err.Error(), durationMS(start))
		return nil, nil, err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		e.finalizeFailure(ctx, audit, err.Error(), durationMS(start))
		return nil, nil, err
	}
	result := string(payload)

	audit.Success = true
	audit.Result = &result
	audit.DurationMS = durationMS(start)
	if err := e.repo.FinalizeQueryAudit(ctx, audit); err != nil {
		log.Printf("query audit finalize failed id=%d err=%v", audit.ID, err)
	}

	return cols, data, nil
}

func (e *Executor) finalizeFailure(ctx context.Context, audit *QueryAudit, errText string, durMS *int64) {
	audit.Success = false
	audit.Error = &errText
	audit.DurationMS = durMS
	if err := e.repo.FinalizeQueryAudit(ctx, audit); err != nil {
		log.Printf("query audit finalize failed id=%d err=%v", audit.ID, err)
	}
}

func durationMS(start time.Time) *int64 {
	ms := time.Since(start).Milliseconds()
	return &ms
}
