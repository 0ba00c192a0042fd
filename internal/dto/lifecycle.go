package dto

import "encoding/json"

// TransitionRequest applies one action to one record. Fields carries the
// variant payload for edit and the optional publish_at for schedule.
type TransitionRequest struct {
	Action string          `json:"action" validate:"required,max=32"`
	Fields json.RawMessage `json:"fields"`
}

// BulkRequest applies one action to a set of records.
type BulkRequest struct {
	IDs    []string        `json:"ids" validate:"required,min=1,max=500,dive,required"`
	Action string          `json:"action" validate:"required,max=32"`
	Fields json.RawMessage `json:"fields"`
}

// BulkRejection explains why one id of a batch was skipped.
type BulkRejection struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BulkResult lists the outcome of a batch. Ids outside the caller's tenant
// appear in neither list.
type BulkResult struct {
	Succeeded []string        `json:"succeeded"`
	Rejected  []BulkRejection `json:"rejected"`
}

// RecordQuery mirrors the supported listing filters.
type RecordQuery struct {
	Status   string `form:"status"`
	OwnerID  string `form:"ownerId"`
	NewsID   string `form:"newsId"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// CreatedResponse returns the id of a new row.
type CreatedResponse struct {
	ID string `json:"id"`
}
